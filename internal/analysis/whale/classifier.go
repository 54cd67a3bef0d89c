// Package whale сопоставляет стоимость сделки с категорией кита
package whale

import (
	"sort"

	"github.com/skalibog/whalewatch/pkg/models"
)

// Table таблица порогов, упорядоченная по убыванию Min
type Table []models.WhaleCategory

// NewTable копирует категории и упорядочивает их от старшей к младшей
func NewTable(categories []models.WhaleCategory) Table {
	t := make(Table, len(categories))
	copy(t, categories)
	sort.SliceStable(t, func(i, j int) bool { return t[i].Min > t[j].Min })
	return t
}

// Threshold минимальная стоимость, начиная с которой сделка считается китом
func (t Table) Threshold() float64 {
	if len(t) == 0 {
		return 0
	}
	return t[len(t)-1].Min
}

// Classify возвращает первую категорию, для которой value >= Min.
// Таблица должна быть упорядочена (см. NewTable).
func Classify(value float64, table Table) (models.WhaleCategory, bool) {
	for _, c := range table {
		if value >= c.Min {
			return c, true
		}
	}
	return models.WhaleCategory{}, false
}

// Apply заполняет поля классификации сделки
func Apply(trade models.Trade, table Table) models.Trade {
	c, ok := Classify(trade.TradeValue, table)
	if !ok {
		return trade
	}
	trade.IsWhale = true
	trade.Category = c.Name
	trade.CategoryLabel = c.Label
	trade.CategoryColor = c.Color
	return trade
}
