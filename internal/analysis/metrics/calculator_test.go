package metrics

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skalibog/whalewatch/pkg/models"
)

func TestComputeEmptyWindow(t *testing.T) {
	c := NewCalculator(14)
	m := c.Compute("BTCUSDT", nil, nil, time.UnixMilli(0))

	assert.Zero(t, m.High1h)
	assert.True(t, math.IsInf(m.Low1h, 1))
	assert.False(t, m.HasData())
	assert.Zero(t, m.Volume1h)
	assert.Zero(t, m.WhaleCount)
	assert.Equal(t, PressureNeutral, m.WhalePressure)
	assert.Equal(t, 50.0, m.RSI)

	data, err := json.Marshal(m)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Nil(t, decoded["low1h"])
	assert.Contains(t, decoded, "low1h")
}

func TestComputeExtremaAndWhales(t *testing.T) {
	now := time.UnixMilli(10 * 60_000)
	trades := []models.Trade{
		{Timestamp: 0, Price: 100, Quantity: 1, TradeValue: 100},
		{Timestamp: 60_000, Price: 120, Quantity: 2, TradeValue: 240},
		{Timestamp: 7 * 60_000, Price: 90, Quantity: 1000, TradeValue: 90_000, IsWhale: true},
		{Timestamp: 9 * 60_000, Price: 110, Quantity: 1000, TradeValue: 110_000, IsWhale: true},
	}

	m := NewCalculator(14).Compute("BTCUSDT", trades, nil, now)

	assert.Equal(t, 120.0, m.High1h)
	assert.Equal(t, 90.0, m.Low1h)
	assert.Equal(t, 2003.0, m.Volume1h)
	assert.Equal(t, 2, m.WhaleCount)
	assert.Equal(t, 110_000.0, m.MaxWhaleAmount)
	assert.Equal(t, 110.0, m.LastPrice)
	assert.Equal(t, 4, m.TradeCount)
	// кит на 7-й минуте старше 5 минут относительно 10-й
	assert.Equal(t, PressureLow, m.WhalePressure)

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"low1h":90`)
}

func TestPressureTiers(t *testing.T) {
	tests := []struct {
		count int
		want  string
	}{
		{0, PressureNeutral},
		{1, PressureLow},
		{2, PressureModerate},
		{3, PressureHigh},
		{4, PressureHigh},
		{5, PressureExtreme},
		{50, PressureExtreme},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Pressure(tt.count), "count=%d", tt.count)
	}
}

func TestRSI(t *testing.T) {
	c := NewCalculator(14)
	assert.Equal(t, 50.0, c.RSI(make([]float64, 14)))

	rising := make([]float64, 30)
	for i := range rising {
		rising[i] = 100 + float64(i)
	}
	assert.InDelta(t, 100.0, c.RSI(rising), 1e-6)

	falling := make([]float64, 30)
	for i := range falling {
		falling[i] = 100 - float64(i)
	}
	assert.InDelta(t, 0.0, c.RSI(falling), 1e-6)
}
