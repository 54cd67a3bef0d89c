// Package tracker ведёт состояние одного инструмента и координирует трекеры всех активов
package tracker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/skalibog/whalewatch/internal/analysis/candles"
	"github.com/skalibog/whalewatch/internal/analysis/forecast"
	"github.com/skalibog/whalewatch/internal/analysis/metrics"
	"github.com/skalibog/whalewatch/internal/analysis/whale"
	"github.com/skalibog/whalewatch/internal/analysis/window"
	"github.com/skalibog/whalewatch/internal/config"
	"github.com/skalibog/whalewatch/internal/exchange"
	"github.com/skalibog/whalewatch/internal/observability"
	"github.com/skalibog/whalewatch/pkg/logger"
	"github.com/skalibog/whalewatch/pkg/models"
)

// State состояние подключения трекера
type State string

const (
	StateConnecting   State = "connecting"
	StateStreaming    State = "streaming"
	StateReconnecting State = "reconnecting"
	StateStopped      State = "stopped"
)

var allStates = []string{string(StateConnecting), string(StateStreaming), string(StateReconnecting), string(StateStopped)}

// Число последних китов, отправляемых новому подписчику
const recentAlerts = 20

// Publisher получатель событий трекера
type Publisher interface {
	PublishAll(events []models.Event)
}

// Options параметры окон и таймеров
type Options struct {
	Window          time.Duration
	CandleDuration  time.Duration
	CandleRetention int
	WhaleHistory    int
	RSIPeriod       int
	ReconnectDelay  time.Duration
	MetricsInterval time.Duration
	ChartInterval   time.Duration
	Clock           func() time.Time
}

// OptionsFrom переводит конфигурацию в Options
func OptionsFrom(t config.TrackingConfig) Options {
	return Options{
		Window:          t.Window(),
		CandleDuration:  t.CandleDuration(),
		CandleRetention: t.CandleRetention,
		WhaleHistory:    t.WhaleHistory,
		RSIPeriod:       t.RSIPeriod,
		ReconnectDelay:  t.ReconnectDelay(),
		MetricsInterval: time.Duration(t.MetricsIntervalSeconds) * time.Second,
		ChartInterval:   time.Duration(t.ChartIntervalSeconds) * time.Second,
	}
}

// Tracker владеет подключением и состоянием одного актива.
// Все изменения состояния идут из одной горутины Run; мьютекс нужен
// только для читателей (HTTP, новые подписчики).
type Tracker struct {
	asset   config.AssetConfig
	opts    Options
	stream  exchange.TradeStream
	pub     Publisher
	metrics *observability.Metrics
	printer *message.Printer

	mu      sync.Mutex
	state   State
	info    models.AssetInfo
	table   whale.Table
	window  *window.Store
	candles *candles.Aggregator
	calc    *metrics.Calculator
	engine  *forecast.Engine
	whales  []models.WhaleEvent

	raw  chan exchange.RawTrade
	quit chan struct{}
	once sync.Once
}

// New создает трекер актива
func New(asset config.AssetConfig, opts Options, stream exchange.TradeStream, pub Publisher, m *observability.Metrics) *Tracker {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.WhaleHistory <= 0 {
		opts.WhaleHistory = forecast.DefaultCapacity
	}
	if opts.MetricsInterval <= 0 {
		opts.MetricsInterval = 5 * time.Second
	}
	if opts.ChartInterval <= 0 {
		opts.ChartInterval = 10 * time.Second
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = 5 * time.Second
	}
	return &Tracker{
		asset:   asset,
		opts:    opts,
		stream:  stream,
		pub:     pub,
		metrics: m,
		printer: message.NewPrinter(language.English),
		state:   StateConnecting,
		info:    exchange.Fallback(asset),
		table:   whale.NewTable(asset.Categories),
		window:  window.New(opts.Window),
		candles: candles.NewAggregator(opts.CandleDuration, opts.CandleRetention),
		calc:    metrics.NewCalculator(opts.RSIPeriod),
		engine:  forecast.NewEngine(opts.WhaleHistory, asset.CirculatingSupply),
		raw:     make(chan exchange.RawTrade, 1024),
		quit:    make(chan struct{}),
	}
}

// Symbol символ актива
func (t *Tracker) Symbol() string {
	return t.asset.Symbol
}

// ErrStaleTrade сделка старше скользящего окна или хранимых свечей
var ErrStaleTrade = errors.New("сделка старше окна")

// Ingest проводит сделку через конвейер и возвращает события для публикации.
// Невалидная или запоздавшая сделка отклоняется, состояние не меняется.
func (t *Tracker) Ingest(trade models.Trade) ([]models.Event, error) {
	if err := validate(trade); err != nil {
		t.reject(err)
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.opts.Clock()
	if trade.Timestamp <= now.UnixMilli()-t.opts.Window.Milliseconds() || t.candles.Expired(trade.Timestamp, now) {
		err := fmt.Errorf("%w: %d", ErrStaleTrade, trade.Timestamp)
		t.reject(err)
		return nil, err
	}

	trade.Symbol = t.asset.Symbol
	// Стоимость всегда выводится из цены и количества
	trade.TradeValue = trade.Price * trade.Quantity
	trade = whale.Apply(trade, t.table)

	t.window.Record(trade)
	t.window.Prune(now)
	t.candles.Ingest(trade)
	t.candles.Evict(now)

	events := make([]models.Event, 0, 4)

	if trade.IsWhale {
		analysis := t.engine.Analyze(trade, now)
		ev := models.WhaleEvent{
			Trade:    trade,
			Analysis: &analysis,
			Message:  t.whaleMessage(trade),
		}
		t.pushWhale(ev)

		events = append(events,
			models.Event{Type: models.EventWhaleAlert, Asset: trade.Symbol, Data: ev},
			models.Event{Type: models.EventAIPrediction, Asset: trade.Symbol, Data: models.AIPrediction{
				Symbol:    trade.Symbol,
				Timestamp: trade.Timestamp,
				Analysis:  &analysis,
			}},
		)

		if t.metrics != nil {
			t.metrics.WhalesDetected.WithLabelValues(trade.Symbol, trade.Category).Inc()
		}
		logger.Info("Обнаружен кит",
			zap.String("symbol", trade.Symbol),
			zap.String("category", trade.Category),
			zap.Float64("value", trade.TradeValue),
			zap.String("pattern", analysis.Pattern.Name),
			zap.String("action", analysis.Recommendation.Action))
	}

	events = append(events,
		models.Event{Type: models.EventTradeUpdate, Asset: trade.Symbol, Data: trade},
		models.Event{Type: models.EventMetricsUpdate, Asset: trade.Symbol, Data: t.computeMetrics(now)},
	)

	if t.metrics != nil {
		t.metrics.TradesProcessed.WithLabelValues(trade.Symbol).Inc()
	}
	return events, nil
}

func (t *Tracker) whaleMessage(trade models.Trade) string {
	return t.printer.Sprintf("🐋 WHALE DETECTED: $%.0f %s trade!", trade.TradeValue, t.info.Symbol)
}

// pushWhale добавляет событие в историю с вытеснением самого старого
func (t *Tracker) pushWhale(ev models.WhaleEvent) {
	if len(t.whales) == t.opts.WhaleHistory {
		copy(t.whales, t.whales[1:])
		t.whales = t.whales[:len(t.whales)-1]
	}
	t.whales = append(t.whales, ev)
}

// computeMetrics вызывается под t.mu
func (t *Tracker) computeMetrics(now time.Time) models.Metrics {
	return t.calc.Compute(t.asset.Symbol, t.window.All(), t.candles.Closes(), now)
}

// Metrics пересчитывает метрики на текущий момент
func (t *Tracker) Metrics() models.Metrics {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.opts.Clock()
	t.window.Prune(now)
	return t.computeMetrics(now)
}

// Candles снимок свечей по возрастанию времени
func (t *Tracker) Candles() []models.Candle {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.candles.Evict(t.opts.Clock())
	return t.candles.Snapshot()
}

// WhaleHistory копия ограниченной истории китов, от старых к новым
func (t *Tracker) WhaleHistory() []models.WhaleEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]models.WhaleEvent, len(t.whales))
	copy(out, t.whales)
	return out
}

// Summary сводка по китам за последние period
func (t *Tracker) Summary(period time.Duration) models.WhaleSummary {
	t.mu.Lock()
	defer t.mu.Unlock()

	from := t.opts.Clock().Add(-period).UnixMilli()
	s := models.WhaleSummary{Symbol: t.asset.Symbol}
	for _, w := range t.whales {
		if w.Timestamp < from {
			continue
		}
		s.Count++
		s.Total += w.TradeValue
		if w.TradeValue > s.Max {
			s.Max = w.TradeValue
		}
	}
	if s.Count > 0 {
		s.Average = s.Total / float64(s.Count)
	}
	return s
}

// Categories таблица порогов актива
func (t *Tracker) Categories() []models.WhaleCategory {
	out := make([]models.WhaleCategory, len(t.table))
	copy(out, t.table)
	return out
}

// Info метаданные актива
func (t *Tracker) Info() models.AssetInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.info
}

// SetInfo обновляет метаданные актива
func (t *Tracker) SetInfo(info models.AssetInfo) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.info = info
}

// State текущее состояние подключения
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Tracker) setState(s State) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
	if t.metrics != nil {
		t.metrics.SetState(t.asset.Symbol, string(s), allStates)
	}
}

// Snapshot события начальной синхронизации нового подписчика
func (t *Tracker) Snapshot() []models.Event {
	sym := t.asset.Symbol
	events := []models.Event{
		{Type: models.EventAssetInfo, Asset: sym, Data: t.Info()},
		{Type: models.EventWhaleCategories, Asset: sym, Data: t.Categories()},
		{Type: models.EventMetricsUpdate, Asset: sym, Data: t.Metrics()},
	}
	if c := t.Candles(); len(c) > 0 {
		events = append(events, models.Event{Type: models.EventChartData, Asset: sym, Data: c})
	}

	history := t.WhaleHistory()
	if len(history) > recentAlerts {
		history = history[len(history)-recentAlerts:]
	}
	for _, w := range history {
		events = append(events, models.Event{Type: models.EventWhaleAlert, Asset: sym, Data: w})
	}
	return events
}

// Run держит подключение к потоку сделок до отмены ctx.
// Приём сделок, периодические рассылки и переподключение
// выполняются в одной горутине, поэтому порядок сделок сохраняется.
func (t *Tracker) Run(ctx context.Context) error {
	defer t.once.Do(func() { close(t.quit) })

	metricsTicker := time.NewTicker(t.opts.MetricsInterval)
	defer metricsTicker.Stop()
	chartTicker := time.NewTicker(t.opts.ChartInterval)
	defer chartTicker.Stop()

	var (
		done   <-chan struct{}
		stop   func()
		retry  *time.Timer
		retryC <-chan time.Time
	)

	scheduleRetry := func() {
		retry = time.NewTimer(t.opts.ReconnectDelay)
		retryC = retry.C
	}

	connect := func() {
		t.setState(StateConnecting)
		d, s, err := t.stream.SubscribeTrades(t.asset.Symbol, t.onRaw, t.onError)
		if err != nil {
			logger.Warn("Не удалось подключиться к потоку сделок, повтор через задержку",
				zap.String("symbol", t.asset.Symbol),
				zap.Duration("delay", t.opts.ReconnectDelay),
				zap.Error(err))
			t.setState(StateReconnecting)
			if t.metrics != nil {
				t.metrics.Reconnects.WithLabelValues(t.asset.Symbol).Inc()
			}
			scheduleRetry()
			return
		}
		done, stop = d, s
		t.setState(StateStreaming)
		logger.Info("Подключено к потоку сделок Binance", zap.String("symbol", t.asset.Symbol))
	}

	connect()

	for {
		select {
		case <-ctx.Done():
			if stop != nil {
				stop()
			}
			if retry != nil {
				retry.Stop()
			}
			t.setState(StateStopped)
			return nil

		case raw := <-t.raw:
			t.handleRaw(raw)

		case <-done:
			if stop != nil {
				stop()
			}
			done, stop = nil, nil
			t.setState(StateReconnecting)
			if t.metrics != nil {
				t.metrics.Reconnects.WithLabelValues(t.asset.Symbol).Inc()
			}
			logger.Warn("Поток сделок закрыт, переподключение",
				zap.String("symbol", t.asset.Symbol),
				zap.Duration("delay", t.opts.ReconnectDelay))
			scheduleRetry()

		case <-retryC:
			retry, retryC = nil, nil
			connect()

		case <-metricsTicker.C:
			t.pub.PublishAll([]models.Event{{Type: models.EventMetricsUpdate, Asset: t.asset.Symbol, Data: t.Metrics()}})

		case <-chartTicker.C:
			if c := t.Candles(); len(c) > 0 {
				t.pub.PublishAll([]models.Event{{Type: models.EventChartData, Asset: t.asset.Symbol, Data: c}})
			}
		}
	}
}

// onRaw вызывается из горутины клиента биржи
func (t *Tracker) onRaw(raw exchange.RawTrade) {
	select {
	case t.raw <- raw:
	case <-t.quit:
	}
}

func (t *Tracker) onError(err error) {
	logger.Warn("Ошибка потока сделок", zap.String("symbol", t.asset.Symbol), zap.Error(err))
}

func (t *Tracker) handleRaw(raw exchange.RawTrade) {
	trade, err := exchange.ParseTrade(t.asset.Symbol, raw)
	if err != nil {
		t.reject(err)
		return
	}
	// Ingest сам учитывает отклонённые сделки
	if events, err := t.Ingest(trade); err == nil {
		t.pub.PublishAll(events)
	}
}

func validate(trade models.Trade) error {
	if !(trade.Price > 0) || math.IsInf(trade.Price, 0) {
		return fmt.Errorf("%w: %v", exchange.ErrInvalidPrice, trade.Price)
	}
	if !(trade.Quantity > 0) || math.IsInf(trade.Quantity, 0) {
		return fmt.Errorf("%w: %v", exchange.ErrInvalidQuantity, trade.Quantity)
	}
	return nil
}

// reject учитывает отброшенную сделку в метриках и логе
func (t *Tracker) reject(err error) {
	reason := "malformed"
	switch {
	case errors.Is(err, exchange.ErrInvalidPrice):
		reason = "invalid_price"
	case errors.Is(err, exchange.ErrInvalidQuantity):
		reason = "invalid_quantity"
	case errors.Is(err, ErrStaleTrade):
		reason = "stale"
	}
	if t.metrics != nil {
		t.metrics.TradesRejected.WithLabelValues(t.asset.Symbol, reason).Inc()
	}
	logger.Warn("Сделка отброшена", zap.String("symbol", t.asset.Symbol), zap.String("reason", reason), zap.Error(err))
}
