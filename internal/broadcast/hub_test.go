package broadcast

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/skalibog/whalewatch/internal/observability"
	"github.com/skalibog/whalewatch/pkg/logger"
	"github.com/skalibog/whalewatch/pkg/models"
)

func TestMain(m *testing.M) {
	logger.SetLogger(zap.NewNop())
	os.Exit(m.Run())
}

func drain(sub *Subscription) []models.Event {
	var out []models.Event
	for {
		select {
		case ev := <-sub.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestPublishFiltersByAsset(t *testing.T) {
	h := NewHub(16, nil)
	btc := h.Subscribe("BTCUSDT")
	eth := h.Subscribe("ETHUSDT")
	all := h.Subscribe(AllAssets)

	h.Publish(models.Event{Type: models.EventTradeUpdate, Asset: "BTCUSDT"})
	h.Publish(models.Event{Type: models.EventTradeUpdate, Asset: "ETHUSDT"})
	h.Publish(models.Event{Type: models.EventAvailableAssets})

	btcEvents := drain(btc)
	require.Len(t, btcEvents, 2)
	assert.Equal(t, "BTCUSDT", btcEvents[0].Asset)
	assert.Equal(t, models.EventAvailableAssets, btcEvents[1].Type)

	ethEvents := drain(eth)
	require.Len(t, ethEvents, 2)
	assert.Equal(t, "ETHUSDT", ethEvents[0].Asset)

	assert.Len(t, drain(all), 3)
}

func TestSelectSwitchesAsset(t *testing.T) {
	h := NewHub(16, nil)
	sub := h.Subscribe("BTCUSDT")
	h.Select(sub, "ETHUSDT")
	assert.Equal(t, "ETHUSDT", sub.Asset())

	h.Publish(models.Event{Type: models.EventTradeUpdate, Asset: "BTCUSDT"})
	h.Publish(models.Event{Type: models.EventTradeUpdate, Asset: "ETHUSDT"})

	events := drain(sub)
	require.Len(t, events, 1)
	assert.Equal(t, "ETHUSDT", events[0].Asset)
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	m := observability.NewMetrics()
	h := NewHub(2, m)
	slow := h.Subscribe(AllAssets)
	fast := h.Subscribe(AllAssets)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			h.Publish(models.Event{Type: models.EventTradeUpdate, Asset: "BTCUSDT", Data: i})
			<-fast.Events()
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish заблокирован медленным подписчиком")
	}

	assert.Len(t, drain(slow), 2)
	assert.Equal(t, uint64(98), slow.Dropped())
	assert.Zero(t, fast.Dropped())
	assert.Equal(t, 98.0, testutil.ToFloat64(m.EventsDropped.WithLabelValues(string(models.EventTradeUpdate))))
}

func TestOrderPreservedPerSubscriber(t *testing.T) {
	h := NewHub(1000, nil)
	sub := h.Subscribe("BTCUSDT")

	events := make([]models.Event, 500)
	for i := range events {
		events[i] = models.Event{Type: models.EventTradeUpdate, Asset: "BTCUSDT", Data: i}
	}
	h.PublishAll(events)

	got := drain(sub)
	require.Len(t, got, 500)
	for i, ev := range got {
		assert.Equal(t, i, ev.Data)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	m := observability.NewMetrics()
	h := NewHub(4, m)
	sub := h.Subscribe(AllAssets)
	assert.Equal(t, 1, h.Count())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Subscribers))

	h.Unsubscribe(sub)
	h.Unsubscribe(sub)
	_, ok := <-sub.Events()
	assert.False(t, ok)
	assert.Zero(t, h.Count())

	h.Publish(models.Event{Type: models.EventTradeUpdate})
	h.Deliver(sub, models.Event{Type: models.EventTradeUpdate})
}

func TestDeliverIgnoresFilter(t *testing.T) {
	h := NewHub(4, nil)
	sub := h.Subscribe("BTCUSDT")
	h.Deliver(sub, models.Event{Type: models.EventChartData, Asset: "ETHUSDT"})
	assert.Len(t, drain(sub), 1)
}

func TestConcurrentPublishAndUnsubscribe(t *testing.T) {
	h := NewHub(8, nil)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				h.Publish(models.Event{Type: models.EventTradeUpdate, Asset: "BTCUSDT"})
			}
		}()
	}
	for i := 0; i < 20; i++ {
		sub := h.Subscribe(AllAssets)
		h.Unsubscribe(sub)
	}
	wg.Wait()
	h.Close()
	h.Close()
	assert.Zero(t, h.Count())

	late := h.Subscribe(AllAssets)
	_, ok := <-late.Events()
	assert.False(t, ok)
}
