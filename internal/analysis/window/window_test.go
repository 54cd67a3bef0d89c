package window

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skalibog/whalewatch/pkg/models"
)

func trade(ts int64, price float64) models.Trade {
	return models.Trade{Timestamp: ts, Price: price, Quantity: 1, TradeValue: price}
}

func TestRecordKeepsArrivalOrder(t *testing.T) {
	s := New(time.Hour)
	s.Record(trade(3000, 3))
	s.Record(trade(1000, 1))
	s.Record(trade(2000, 2))

	all := s.All()
	require.Len(t, all, 3)
	assert.Equal(t, []float64{3, 1, 2}, []float64{all[0].Price, all[1].Price, all[2].Price})
}

func TestPruneBoundaryIsInclusive(t *testing.T) {
	s := New(time.Minute)
	s.Record(trade(0, 1))
	s.Record(trade(1, 2))

	// cutoff = 60_000 - 60_000 = 0, запись с ts=0 удаляется
	removed := s.Prune(time.UnixMilli(60_000))
	assert.Equal(t, 1, removed)
	require.Equal(t, 1, s.Len())
	assert.Equal(t, int64(1), s.All()[0].Timestamp)
}

func TestPruneIsIdempotent(t *testing.T) {
	s := New(time.Minute)
	for i := int64(0); i < 100; i++ {
		s.Record(trade(i*1000, float64(i)))
	}
	now := time.UnixMilli(120_000)

	s.Prune(now)
	once := s.All()
	removed := s.Prune(now)
	assert.Zero(t, removed)
	assert.Equal(t, once, s.All())
}

func TestPruneEverything(t *testing.T) {
	s := New(time.Minute)
	s.Record(trade(0, 1))
	s.Record(trade(10, 1))
	s.Prune(time.UnixMilli(10 * 60_000))
	assert.Zero(t, s.Len())
	assert.Empty(t, s.All())

	s.Record(trade(10*60_000, 5))
	assert.Equal(t, 1, s.Len())
}

func TestPruneAfterCompaction(t *testing.T) {
	s := New(time.Second)
	for i := int64(0); i < 10; i++ {
		s.Record(trade(i*100, float64(i)))
	}
	// cutoff = 1_600 - 1_000 = 600: удаляются 0..600
	assert.Equal(t, 7, s.Prune(time.UnixMilli(1_600)))
	s.Record(trade(1_000, 10))

	all := s.All()
	require.Len(t, all, 4)
	assert.Equal(t, int64(700), all[0].Timestamp)
	assert.Equal(t, int64(1_000), all[3].Timestamp)
}

func TestPruneRemovesLateArrivals(t *testing.T) {
	s := New(time.Minute)
	s.Record(trade(50_000, 1))
	s.Record(trade(10_000, 2))
	s.Record(trade(55_000, 3))

	// cutoff = 70_000 - 60_000 = 10_000: запоздавшая сделка в середине тоже удаляется
	assert.Equal(t, 1, s.Prune(time.UnixMilli(70_000)))
	all := s.All()
	require.Len(t, all, 2)
	assert.Equal(t, []float64{1, 3}, []float64{all[0].Price, all[1].Price})

	// cutoff = 52_000: дальше окно снова упорядочено и режется с головы
	assert.Equal(t, 1, s.Prune(time.UnixMilli(112_000)))
	require.Equal(t, 1, s.Len())
	assert.Equal(t, int64(55_000), s.All()[0].Timestamp)
	assert.False(t, s.unordered)
}

func TestEach(t *testing.T) {
	s := New(time.Hour)
	s.Record(trade(1, 1))
	s.Record(trade(2, 2))
	var sum float64
	s.Each(func(tr models.Trade) { sum += tr.Price })
	assert.Equal(t, 3.0, sum)
	assert.Equal(t, time.Hour, s.Horizon())
}
