// Package forecast выводит эвристический анализ из ограниченной истории китов
package forecast

import (
	"time"

	"github.com/skalibog/whalewatch/pkg/models"
)

// DefaultCapacity размер истории китов по умолчанию
const DefaultCapacity = 100

// Record запись истории, нужная анализу
type Record struct {
	Timestamp int64
	Value     float64
	Price     float64
	Quantity  float64
	Category  string
}

// RecordOf строит запись истории из сделки
func RecordOf(t models.Trade) Record {
	return Record{
		Timestamp: t.Timestamp,
		Value:     t.TradeValue,
		Price:     t.Price,
		Quantity:  t.Quantity,
		Category:  t.Category,
	}
}

// Engine история китов одного актива. Не потокобезопасен:
// владелец (трекер) вызывает его последовательно.
type Engine struct {
	capacity int
	supply   float64
	history  []Record
}

// NewEngine создает движок. supply — циркулирующее предложение актива,
// market cap оценивается как price*supply.
func NewEngine(capacity int, supply float64) *Engine {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Engine{
		capacity: capacity,
		supply:   supply,
		history:  make([]Record, 0, capacity),
	}
}

// Analyze добавляет кита в историю и полностью пересчитывает анализ
func (e *Engine) Analyze(whale models.Trade, now time.Time) models.AIAnalysis {
	e.push(RecordOf(whale))

	pattern := DetectPattern(e.history)
	whaleType := ClassifyWhaleType(e.history)

	return models.AIAnalysis{
		Pattern:         pattern,
		WhaleType:       whaleType,
		PriceImpact:     PredictPriceImpact(whale.Price, whale.TradeValue, e.supply),
		NextWhaleTiming: PredictNextWhale(e.history, now),
		Sentiment:       MarketSentiment(e.history),
		Recommendation:  Recommend(pattern, whaleType),
	}
}

// push добавляет запись, вытесняя самую старую при переполнении (FIFO)
func (e *Engine) push(r Record) {
	if len(e.history) == e.capacity {
		copy(e.history, e.history[1:])
		e.history = e.history[:len(e.history)-1]
	}
	e.history = append(e.history, r)
}

// History копия истории, от старых к новым
func (e *Engine) History() []Record {
	out := make([]Record, len(e.history))
	copy(out, e.history)
	return out
}

// Len размер истории
func (e *Engine) Len() int {
	return len(e.history)
}

func tail(h []Record, n int) []Record {
	if len(h) <= n {
		return h
	}
	return h[len(h)-n:]
}
