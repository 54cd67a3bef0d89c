package ui

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skalibog/whalewatch/internal/broadcast"
	"github.com/skalibog/whalewatch/internal/config"
	"github.com/skalibog/whalewatch/pkg/models"
)

func newTestUI(logFile string) *TermUI {
	return NewTermUI(config.UIConfig{WhaleRows: 2}, broadcast.NewHub(8, nil), []string{"BTCUSDT", "ETHUSDT"}, logFile)
}

func TestApplyEvents(t *testing.T) {
	ui := newTestUI("")

	ui.Apply(models.Event{Type: models.EventMetricsUpdate, Asset: "BTCUSDT", Data: models.Metrics{
		Symbol: "BTCUSDT", LastPrice: 65000, High1h: 66000, Low1h: 64000, WhaleCount: 3, WhalePressure: "High", RSI: 61.5,
	}})
	ui.Apply(models.Event{Type: models.EventMetricsUpdate, Asset: "ETHUSDT", Data: models.Metrics{Symbol: "ETHUSDT", Low1h: math.Inf(1)}})
	for i := 0; i < 3; i++ {
		ui.Apply(models.Event{Type: models.EventWhaleAlert, Asset: "BTCUSDT", Data: models.WhaleEvent{
			Trade: models.Trade{Timestamp: int64(i), TradeValue: float64(100000 * (i + 1)), IsWhale: true, CategoryLabel: "Whale"},
			Analysis: &models.AIAnalysis{
				Pattern:        models.Pattern{Name: "Insufficient Data"},
				Recommendation: models.Recommendation{Action: "WAIT", Confidence: 20, RiskLevel: "HIGH"},
			},
		}})
	}

	ui.mu.RLock()
	btc := ui.assets["BTCUSDT"]
	require.Len(t, btc.whales, 2)
	assert.Equal(t, int64(1), btc.whales[0].Timestamp)
	assert.Equal(t, 65000.0, btc.metrics.LastPrice)
	ui.mu.RUnlock()

	out := ui.render()
	assert.Contains(t, out, "BTCUSDT")
	assert.Contains(t, out, "65000.00")
	assert.Contains(t, out, "Insufficient Data")
	assert.Contains(t, out, "300000")
}

func TestApplyAddsUnknownAsset(t *testing.T) {
	ui := newTestUI("")
	ui.Apply(models.Event{Type: models.EventTradeUpdate, Asset: "SOLUSDT", Data: models.Trade{Price: 150}})
	ui.Apply(models.Event{Type: models.EventAvailableAssets, Data: []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}})

	ui.mu.RLock()
	defer ui.mu.RUnlock()
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}, ui.symbols)
	assert.Equal(t, 150.0, ui.assets["SOLUSDT"].last.Price)
}

func TestKeysMoveSelection(t *testing.T) {
	ui := newTestUI("")
	m := bubbleModel{ui: ui}
	assert.Equal(t, "BTCUSDT", ui.Selected())

	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, "ETHUSDT", ui.Selected())
	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, "BTCUSDT", ui.Selected())
	m.Update(tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, "ETHUSDT", ui.Selected())

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestLoadLogsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.json.log")
	content := `{"level":"INFO","ts":"02.01.2025 - 15:04:05.000000000+00:00","msg":"Обнаружен кит","symbol":"BTCUSDT"}
plain line
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	ui := newTestUI(path)
	require.NoError(t, ui.loadLogsFromFile())

	ui.mu.RLock()
	defer ui.mu.RUnlock()
	require.Len(t, ui.logs, 2)
	assert.Equal(t, "[15:04:05] [INFO] Обнаружен кит (symbol: BTCUSDT)", ui.logs[0])
	assert.Equal(t, "plain line", ui.logs[1])
}

func TestLoadLogsMissingFile(t *testing.T) {
	ui := newTestUI(filepath.Join(t.TempDir(), "missing.log"))
	assert.NoError(t, ui.loadLogsFromFile())
}
