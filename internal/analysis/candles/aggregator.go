// Package candles собирает сделки в OHLCV свечи фиксированной длительности
package candles

import (
	"sort"
	"time"

	"github.com/skalibog/whalewatch/pkg/models"
)

// Aggregator свечи одного актива, ключ — начало интервала в миллисекундах
type Aggregator struct {
	bucket    int64
	retention int64
	candles   map[int64]*models.Candle
}

// NewAggregator создает агрегатор с длительностью свечи bucket и хранением retention свечей
func NewAggregator(bucket time.Duration, retention int) *Aggregator {
	return &Aggregator{
		bucket:    bucket.Milliseconds(),
		retention: int64(retention),
		candles:   make(map[int64]*models.Candle),
	}
}

// BucketKey усекает timestamp (мс) до начала интервала.
// Для отрицательных значений усечение идёт вниз, а не к нулю.
func BucketKey(ts, bucket int64) int64 {
	k := ts / bucket * bucket
	if ts < 0 && k != ts {
		k -= bucket
	}
	return k
}

// Ingest добавляет сделку в свечу её интервала и возвращает копию свечи
func (a *Aggregator) Ingest(trade models.Trade) models.Candle {
	key := BucketKey(trade.Timestamp, a.bucket)

	c, ok := a.candles[key]
	if !ok {
		c = &models.Candle{
			Time:   key,
			Open:   trade.Price,
			High:   trade.Price,
			Low:    trade.Price,
			Close:  trade.Price,
			Volume: trade.Quantity,
		}
		a.candles[key] = c
		return *c
	}

	if trade.Price > c.High {
		c.High = trade.Price
	}
	if trade.Price < c.Low {
		c.Low = trade.Price
	}
	c.Close = trade.Price
	c.Volume += trade.Quantity
	return *c
}

// EvictOlderThan удаляет свечи с ключом меньше cutoff
func (a *Aggregator) EvictOlderThan(cutoff int64) int {
	removed := 0
	for key := range a.candles {
		if key < cutoff {
			delete(a.candles, key)
			removed++
		}
	}
	return removed
}

// Evict оставляет только retention последних интервалов относительно now
func (a *Aggregator) Evict(now time.Time) int {
	return a.EvictOlderThan(a.Cutoff(now))
}

// Cutoff ключ самой старой сохраняемой свечи
func (a *Aggregator) Cutoff(now time.Time) int64 {
	return BucketKey(now.UnixMilli(), a.bucket) - a.retention*a.bucket
}

// Expired сообщает, что свеча сделки с временем ts уже вытеснена бы Evict(now)
func (a *Aggregator) Expired(ts int64, now time.Time) bool {
	return BucketKey(ts, a.bucket) < a.Cutoff(now)
}

// Snapshot возвращает свечи по возрастанию времени
func (a *Aggregator) Snapshot() []models.Candle {
	out := make([]models.Candle, 0, len(a.candles))
	for _, c := range a.candles {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out
}

// Closes цены закрытия в порядке времени, для индикаторов
func (a *Aggregator) Closes() []float64 {
	snap := a.Snapshot()
	closes := make([]float64, len(snap))
	for i, c := range snap {
		closes[i] = c.Close
	}
	return closes
}

// Len число хранимых свечей
func (a *Aggregator) Len() int {
	return len(a.candles)
}
