// Package window хранит сделки за скользящий интервал времени
package window

import (
	"time"

	"github.com/skalibog/whalewatch/pkg/models"
)

// Store буфер сделок в порядке поступления.
// Пока сделки приходят по возрастанию времени, устаревшие записи
// отрезаются с головы и стоимость Prune пропорциональна числу удалённых.
type Store struct {
	horizon int64
	trades  []models.Trade
	head    int
	// unordered поднимается, если в окне есть сделка старше предыдущей
	unordered bool
}

// New создает хранилище с заданным горизонтом
func New(horizon time.Duration) *Store {
	return &Store{horizon: horizon.Milliseconds()}
}

// Record добавляет сделку в конец окна
func (s *Store) Record(trade models.Trade) {
	if n := len(s.trades); n > s.head && trade.Timestamp < s.trades[n-1].Timestamp {
		s.unordered = true
	}
	s.trades = append(s.trades, trade)
}

// Prune удаляет записи с timestamp <= now - horizon и возвращает их число.
// Порядок оставшихся записей сохраняется.
func (s *Store) Prune(now time.Time) int {
	cutoff := now.UnixMilli() - s.horizon
	if s.unordered {
		return s.filter(cutoff)
	}
	removed := 0
	for s.head < len(s.trades) && s.trades[s.head].Timestamp <= cutoff {
		s.trades[s.head] = models.Trade{}
		s.head++
		removed++
	}
	s.compact()
	return removed
}

// filter полный проход для окна с запоздавшими сделками
func (s *Store) filter(cutoff int64) int {
	live := s.trades[:0]
	ordered := true
	for _, t := range s.trades[s.head:] {
		if t.Timestamp <= cutoff {
			continue
		}
		if n := len(live); n > 0 && t.Timestamp < live[n-1].Timestamp {
			ordered = false
		}
		live = append(live, t)
	}
	removed := len(s.trades) - s.head - len(live)
	for i := len(live); i < len(s.trades); i++ {
		s.trades[i] = models.Trade{}
	}
	s.trades = live
	s.head = 0
	s.unordered = !ordered
	return removed
}

// compact переносит живые записи в начало, когда мёртвая голова занимает больше половины
func (s *Store) compact() {
	if s.head == 0 {
		return
	}
	if s.head == len(s.trades) {
		s.trades = s.trades[:0]
		s.head = 0
		return
	}
	if s.head*2 < len(s.trades) {
		return
	}
	n := copy(s.trades, s.trades[s.head:])
	s.trades = s.trades[:n]
	s.head = 0
}

// All возвращает копию содержимого окна в порядке поступления
func (s *Store) All() []models.Trade {
	out := make([]models.Trade, len(s.trades)-s.head)
	copy(out, s.trades[s.head:])
	return out
}

// Each обходит окно без копирования
func (s *Store) Each(fn func(models.Trade)) {
	for _, t := range s.trades[s.head:] {
		fn(t)
	}
}

// Len число сделок в окне
func (s *Store) Len() int {
	return len(s.trades) - s.head
}

// Horizon горизонт окна
func (s *Store) Horizon() time.Duration {
	return time.Duration(s.horizon) * time.Millisecond
}
