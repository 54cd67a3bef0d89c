package candles

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skalibog/whalewatch/pkg/models"
)

func tr(ts int64, price, qty float64) models.Trade {
	return models.Trade{Timestamp: ts, Price: price, Quantity: qty}
}

func TestBucketKey(t *testing.T) {
	assert.Equal(t, int64(0), BucketKey(59_999, 60_000))
	assert.Equal(t, int64(60_000), BucketKey(60_000, 60_000))
	assert.Equal(t, int64(1_700_000_040_000), BucketKey(1_700_000_099_999, 60_000))
	assert.Equal(t, int64(-60_000), BucketKey(-1, 60_000))
}

func TestIngestInvariants(t *testing.T) {
	a := NewAggregator(time.Minute, 60)

	a.Ingest(tr(1_000, 100, 1))
	a.Ingest(tr(2_000, 105, 2))
	a.Ingest(tr(3_000, 95, 1))
	c := a.Ingest(tr(4_000, 101, 0.5))

	assert.Equal(t, int64(0), c.Time)
	assert.Equal(t, 100.0, c.Open)
	assert.Equal(t, 105.0, c.High)
	assert.Equal(t, 95.0, c.Low)
	assert.Equal(t, 101.0, c.Close)
	assert.InDelta(t, 4.5, c.Volume, 1e-9)
}

func TestHighLowEnvelopeOpenClose(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	a := NewAggregator(time.Minute, 1_000)

	for i := 0; i < 5_000; i++ {
		ts := int64(rng.Intn(30 * 60_000))
		a.Ingest(tr(ts, 50+rng.Float64()*100, rng.Float64()))
	}

	for _, c := range a.Snapshot() {
		assert.GreaterOrEqual(t, c.High, max(c.Open, c.Close))
		assert.LessOrEqual(t, c.Low, min(c.Open, c.Close))
	}
}

func TestSnapshotIsSortedAscending(t *testing.T) {
	a := NewAggregator(time.Minute, 200)
	base := int64(1_700_000_000_000)
	for i := 0; i < 99; i++ {
		a.Ingest(tr(base+int64(i)*60_000, 100+float64(i), 1))
	}

	snap := a.Snapshot()
	require.Len(t, snap, 99)
	for i := 1; i < len(snap); i++ {
		assert.Less(t, snap[i-1].Time, snap[i].Time)
	}
}

func TestEvictRetention(t *testing.T) {
	a := NewAggregator(time.Minute, 60)
	for i := int64(0); i < 100; i++ {
		a.Ingest(tr(i*60_000, 1, 1))
	}

	now := time.UnixMilli(99*60_000 + 30_000)
	a.Evict(now)

	snap := a.Snapshot()
	require.Len(t, snap, 61)
	assert.Equal(t, int64(39*60_000), snap[0].Time)
}

func TestEvictIsIdempotent(t *testing.T) {
	a := NewAggregator(time.Minute, 10)
	for i := int64(0); i < 30; i++ {
		a.Ingest(tr(i*60_000, float64(i), 1))
	}
	cutoff := int64(15 * 60_000)

	a.EvictOlderThan(cutoff)
	once := a.Snapshot()
	assert.Zero(t, a.EvictOlderThan(cutoff))
	assert.Equal(t, once, a.Snapshot())
}

func TestCloses(t *testing.T) {
	a := NewAggregator(time.Minute, 60)
	a.Ingest(tr(120_000, 3, 1))
	a.Ingest(tr(0, 1, 1))
	a.Ingest(tr(60_000, 2, 1))
	assert.Equal(t, []float64{1, 2, 3}, a.Closes())
	assert.Equal(t, 3, a.Len())
}
