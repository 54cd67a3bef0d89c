package ui

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/skalibog/whalewatch/internal/broadcast"
	"github.com/skalibog/whalewatch/internal/config"
	"github.com/skalibog/whalewatch/pkg/logger"
	"github.com/skalibog/whalewatch/pkg/models"
)

// Стили UI
var (
	// Основные цвета
	primaryColor   = lipgloss.Color("#0077cc")
	secondaryColor = lipgloss.Color("#333333")
	errorColor     = lipgloss.Color("#cc3300")
	successColor   = lipgloss.Color("#33cc33")
	warningColor   = lipgloss.Color("#cccc00")

	appStyle = lipgloss.NewStyle().
			Padding(1, 2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor)
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffffff")).
			Background(primaryColor).
			Padding(0, 1).
			Align(lipgloss.Center)
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffffff")).
			Background(secondaryColor).
			Padding(0, 1)
	sectionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(secondaryColor).
			Padding(0, 1)
	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#999999")).
			Padding(0, 1)
	selectedStyle = lipgloss.NewStyle().Background(lipgloss.Color("#222222"))
)

const maxLogs = 50

// Регулярное выражение для удаления ANSI-цветов
var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// assetView последнее известное состояние актива
type assetView struct {
	info    models.AssetInfo
	metrics models.Metrics
	last    models.Trade
	whales  []models.WhaleEvent
}

// TermUI терминальный интерфейс, читающий события из рассылки
type TermUI struct {
	cfg     config.UIConfig
	hub     *broadcast.Hub
	logFile string

	mu       sync.RWMutex
	symbols  []string
	assets   map[string]*assetView
	logs     []string
	selected int
	width    int
	height   int
}

// Сообщения для обновления UI
type tickMsg time.Time

// bubbleModel - модель для bubbletea
type bubbleModel struct {
	ui *TermUI
}

// NewTermUI создает интерфейс; logFile — JSON журнал для панели логов
func NewTermUI(cfg config.UIConfig, hub *broadcast.Hub, symbols []string, logFile string) *TermUI {
	if cfg.RefreshRate <= 0 {
		cfg.RefreshRate = 500
	}
	if cfg.WhaleRows <= 0 {
		cfg.WhaleRows = 10
	}
	ui := &TermUI{
		cfg:     cfg,
		hub:     hub,
		logFile: logFile,
		symbols: append([]string(nil), symbols...),
		assets:  make(map[string]*assetView, len(symbols)),
		logs:    []string{"Whalewatch запущен. Ожидание данных..."},
		width:   120,
		height:  40,
	}
	for _, s := range symbols {
		ui.assets[s] = &assetView{info: models.AssetInfo{Symbol: s}}
	}
	return ui
}

// Run показывает интерфейс до выхода пользователя или отмены ctx
func (ui *TermUI) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sub := ui.hub.Subscribe(broadcast.AllAssets)
	defer ui.hub.Unsubscribe(sub)

	go ui.pump(ctx, sub)

	program := tea.NewProgram(bubbleModel{ui: ui}, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("ошибка запуска UI: %w", err)
	}
	return nil
}

// pump применяет события рассылки и периодически перечитывает журнал
func (ui *TermUI) pump(ctx context.Context, sub *broadcast.Subscription) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			ui.Apply(ev)
		case <-ticker.C:
			if err := ui.loadLogsFromFile(); err != nil {
				logger.Warn("Ошибка загрузки логов", zap.Error(err))
			}
		}
	}
}

// Apply обновляет состояние интерфейса по событию
func (ui *TermUI) Apply(ev models.Event) {
	ui.mu.Lock()
	defer ui.mu.Unlock()

	if ev.Type == models.EventAvailableAssets {
		if symbols, ok := ev.Data.([]string); ok {
			ui.symbols = append(ui.symbols[:0], symbols...)
			for _, s := range symbols {
				ui.view(s)
			}
			if ui.selected >= len(ui.symbols) {
				ui.selected = 0
			}
		}
		return
	}
	if ev.Asset == "" {
		return
	}

	v := ui.view(ev.Asset)
	switch data := ev.Data.(type) {
	case models.AssetInfo:
		v.info = data
	case models.Metrics:
		v.metrics = data
	case models.Trade:
		v.last = data
	case models.WhaleEvent:
		v.whales = append(v.whales, data)
		if len(v.whales) > ui.cfg.WhaleRows {
			v.whales = v.whales[len(v.whales)-ui.cfg.WhaleRows:]
		}
	}
}

// view вызывается под ui.mu
func (ui *TermUI) view(symbol string) *assetView {
	v, ok := ui.assets[symbol]
	if !ok {
		v = &assetView{info: models.AssetInfo{Symbol: symbol}}
		ui.assets[symbol] = v
		ui.symbols = appendUnique(ui.symbols, symbol)
	}
	return v
}

func appendUnique(list []string, s string) []string {
	for _, x := range list {
		if x == s {
			return list
		}
	}
	return append(list, s)
}

// Чтение журнала из JSON файла
func (ui *TermUI) loadLogsFromFile() error {
	if ui.logFile == "" {
		return nil
	}
	file, err := os.Open(ui.logFile)
	if err != nil {
		if os.IsNotExist(err) {
			// Файл не существует, это не ошибка
			return nil
		}
		return err
	}
	defer file.Close()

	var logs []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		logs = append(logs, formatLogLine(scanner.Text()))
		if len(logs) > maxLogs {
			logs = logs[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	if len(logs) > 0 {
		ui.mu.Lock()
		ui.logs = logs
		ui.mu.Unlock()
	}
	return nil
}

// formatLogLine превращает JSON запись zap в строку панели логов
func formatLogLine(line string) string {
	var zapLog map[string]interface{}
	if err := json.Unmarshal([]byte(line), &zapLog); err != nil {
		return line
	}

	level, _ := zapLog["level"].(string)
	ts, _ := zapLog["ts"].(string)
	msg, _ := zapLog["msg"].(string)
	level = ansiRegex.ReplaceAllString(level, "")

	timestamp := ""
	if t, err := time.Parse("02.01.2006 - 15:04:05.999999999Z07:00", ts); err == nil {
		timestamp = t.Format("15:04:05")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] [%s] %s", timestamp, level, msg)
	for _, k := range []string{"symbol", "category", "value", "reason", "error"} {
		if v, ok := zapLog[k]; ok {
			fmt.Fprintf(&sb, " (%s: %v)", k, v)
		}
	}
	return sb.String()
}

// Методы для bubbletea
func (m bubbleModel) Init() tea.Cmd {
	return m.tick()
}

func (m bubbleModel) tick() tea.Cmd {
	return tea.Tick(time.Duration(m.ui.cfg.RefreshRate)*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m bubbleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "up", "k":
			m.ui.move(-1)
		case "down", "j":
			m.ui.move(1)
		}

	case tea.WindowSizeMsg:
		m.ui.mu.Lock()
		m.ui.width = msg.Width
		m.ui.height = msg.Height
		m.ui.mu.Unlock()

	case tickMsg:
		return m, m.tick()
	}

	return m, nil
}

func (ui *TermUI) move(delta int) {
	ui.mu.Lock()
	defer ui.mu.Unlock()
	if len(ui.symbols) == 0 {
		return
	}
	ui.selected = (ui.selected + delta + len(ui.symbols)) % len(ui.symbols)
}

// Selected выбранный актив
func (ui *TermUI) Selected() string {
	ui.mu.RLock()
	defer ui.mu.RUnlock()
	if len(ui.symbols) == 0 {
		return ""
	}
	return ui.symbols[ui.selected]
}

func (m bubbleModel) View() string {
	return m.ui.render()
}

func (ui *TermUI) render() string {
	ui.mu.RLock()
	defer ui.mu.RUnlock()

	title := titleStyle.Render("WHALEWATCH - мониторинг крупных сделок")
	footer := footerStyle.Render("Клавиши: ↑/↓ - выбор актива, Q - выход")

	return appStyle.Render(
		lipgloss.JoinVertical(lipgloss.Left,
			title,
			"\n",
			ui.renderAssets(),
			"\n",
			ui.renderWhales(),
			"\n",
			renderLogsSection(ui.logs),
			"\n",
			footer,
		),
	)
}

func (ui *TermUI) renderAssets() string {
	header := headerStyle.Render("АКТИВЫ")
	content := strings.Builder{}

	if len(ui.symbols) == 0 {
		content.WriteString("  Ожидание данных...\n")
	}
	for i, symbol := range ui.symbols {
		v := ui.assets[symbol]
		m := v.metrics

		low := "-"
		if m.HasData() {
			low = fmt.Sprintf("%.2f", m.Low1h)
		}
		line := fmt.Sprintf("  %-10s Цена: %-12.2f H: %-12.2f L: %-12s Объём: %-14.4f Киты: %-4d Давление: %-9s RSI: %.1f",
			symbol, m.LastPrice, m.High1h, low, m.Volume1h, m.WhaleCount, pressureText(m.WhalePressure), m.RSI)

		if i == ui.selected {
			line = selectedStyle.Render("> " + line[2:])
		}
		content.WriteString(line + "\n")
	}

	return sectionStyle.Render(lipgloss.JoinVertical(lipgloss.Left, header, content.String()))
}

func (ui *TermUI) renderWhales() string {
	symbol := ""
	if len(ui.symbols) > 0 {
		symbol = ui.symbols[ui.selected]
	}
	header := headerStyle.Render("КИТЫ " + symbol)
	content := strings.Builder{}

	v, ok := ui.assets[symbol]
	if !ok || len(v.whales) == 0 {
		content.WriteString("  Китов пока нет\n")
	} else {
		for i := len(v.whales) - 1; i >= 0; i-- {
			w := v.whales[i]
			category := w.CategoryLabel
			if w.CategoryColor != "" {
				category = lipgloss.NewStyle().Foreground(lipgloss.Color(w.CategoryColor)).Render(category)
			}
			side := lipgloss.NewStyle().Foreground(successColor).Render("BUY ")
			if w.IsBuyerMaker {
				side = lipgloss.NewStyle().Foreground(errorColor).Render("SELL")
			}
			line := fmt.Sprintf("  %s %s $%-14.0f %s", time.UnixMilli(w.Timestamp).Format("15:04:05"), side, w.TradeValue, category)
			if a := w.Analysis; a != nil {
				line += fmt.Sprintf("  %s | %s | %s",
					a.Pattern.Name, a.WhaleType.Type, actionText(a.Recommendation))
			}
			content.WriteString(line + "\n")
		}
	}

	return sectionStyle.Render(lipgloss.JoinVertical(lipgloss.Left, header, content.String()))
}

func renderLogsSection(logs []string) string {
	header := headerStyle.Render("ЛОГИ")
	content := strings.Builder{}

	start := 0
	if len(logs) > 8 {
		start = len(logs) - 8
	}
	for _, log := range logs[start:] {
		// Выделение по уровню логирования
		switch {
		case strings.Contains(log, "[ERROR]"):
			log = lipgloss.NewStyle().Foreground(errorColor).Render(log)
		case strings.Contains(log, "[WARN]"):
			log = lipgloss.NewStyle().Foreground(warningColor).Render(log)
		case strings.Contains(log, "[INFO]"):
			log = lipgloss.NewStyle().Foreground(successColor).Render(log)
		case strings.Contains(log, "[DEBUG]"):
			log = lipgloss.NewStyle().Foreground(lipgloss.Color("#9999ff")).Render(log)
		}
		content.WriteString("  " + log + "\n")
	}

	return sectionStyle.Render(lipgloss.JoinVertical(lipgloss.Left, header, content.String()))
}

func pressureText(p string) string {
	var style lipgloss.Style
	switch p {
	case "Extreme", "High":
		style = lipgloss.NewStyle().Foreground(errorColor).Bold(true)
	case "Moderate":
		style = lipgloss.NewStyle().Foreground(warningColor)
	case "":
		return "-"
	default:
		style = lipgloss.NewStyle().Foreground(successColor)
	}
	return style.Render(p)
}

func actionText(r models.Recommendation) string {
	var style lipgloss.Style
	switch r.Action {
	case "BUY":
		style = lipgloss.NewStyle().Foreground(successColor).Bold(true)
	case "SELL":
		style = lipgloss.NewStyle().Foreground(errorColor).Bold(true)
	default:
		style = lipgloss.NewStyle().Foreground(warningColor)
	}
	return style.Render(fmt.Sprintf("%s %d%% (%s)", r.Action, r.Confidence, r.RiskLevel))
}
