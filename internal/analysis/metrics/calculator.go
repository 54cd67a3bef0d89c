// Package metrics рассчитывает статистику по содержимому скользящего окна
package metrics

import (
	"math"
	"time"

	"github.com/markcheno/go-talib"

	"github.com/skalibog/whalewatch/pkg/models"
)

// Уровни давления китов по частоте за последние PressureWindow
const (
	PressureNeutral  = "Neutral"
	PressureLow      = "Low"
	PressureModerate = "Moderate"
	PressureHigh     = "High"
	PressureExtreme  = "Extreme"
)

// PressureWindow интервал подсчёта китов для WhalePressure
const PressureWindow = 5 * time.Minute

const neutralRSI = 50

// Calculator рассчитывает Metrics
type Calculator struct {
	rsiPeriod int
}

// NewCalculator создает калькулятор; rsiPeriod — период RSI по свечам
func NewCalculator(rsiPeriod int) *Calculator {
	return &Calculator{rsiPeriod: rsiPeriod}
}

// Compute считает метрики по сделкам окна и ценам закрытия свечей.
// При пустом окне High1h = 0, Low1h = +Inf: это "нет данных", а не ровный рынок.
func (c *Calculator) Compute(symbol string, trades []models.Trade, closes []float64, now time.Time) models.Metrics {
	m := models.Metrics{
		Symbol:        symbol,
		High1h:        0,
		Low1h:         math.Inf(1),
		WhalePressure: PressureNeutral,
		RSI:           c.RSI(closes),
	}

	pressureFrom := now.Add(-PressureWindow).UnixMilli()
	recentWhales := 0

	for _, t := range trades {
		if t.Price > m.High1h {
			m.High1h = t.Price
		}
		if t.Price < m.Low1h {
			m.Low1h = t.Price
		}
		m.Volume1h += t.Quantity
		m.LastPrice = t.Price

		if t.IsWhale {
			m.WhaleCount++
			if t.TradeValue > m.MaxWhaleAmount {
				m.MaxWhaleAmount = t.TradeValue
			}
			if t.Timestamp > pressureFrom {
				recentWhales++
			}
		}
	}
	m.TradeCount = len(trades)
	m.WhalePressure = Pressure(recentWhales)

	return m
}

// Pressure переводит число китов за последние 5 минут в уровень
func Pressure(recentWhales int) string {
	switch {
	case recentWhales >= 5:
		return PressureExtreme
	case recentWhales >= 3:
		return PressureHigh
	case recentWhales == 2:
		return PressureModerate
	case recentWhales == 1:
		return PressureLow
	default:
		return PressureNeutral
	}
}

// RSI последнее значение RSI по ценам закрытия; 50 при нехватке данных
func (c *Calculator) RSI(closes []float64) float64 {
	if c.rsiPeriod < 2 || len(closes) <= c.rsiPeriod {
		return neutralRSI
	}
	rsi := talib.Rsi(closes, c.rsiPeriod)
	last := rsi[len(rsi)-1]
	if math.IsNaN(last) || math.IsInf(last, 0) {
		return neutralRSI
	}
	return last
}
