// Package broadcast рассылает события трекеров подписчикам
package broadcast

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/skalibog/whalewatch/internal/observability"
	"github.com/skalibog/whalewatch/pkg/logger"
	"github.com/skalibog/whalewatch/pkg/models"
)

// AllAssets подписка без фильтра по активу
const AllAssets = ""

// Subscription подписчик с собственным буфером
type Subscription struct {
	ID string

	ch      chan models.Event
	asset   atomic.Value
	dropped atomic.Uint64
}

// Events канал событий; закрывается при отписке
func (s *Subscription) Events() <-chan models.Event {
	return s.ch
}

// Asset выбранный актив, пустая строка — все
func (s *Subscription) Asset() string {
	v, _ := s.asset.Load().(string)
	return v
}

// Dropped число событий, потерянных из-за переполнения буфера
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

func (s *Subscription) wants(ev models.Event) bool {
	if ev.Asset == "" {
		return true
	}
	asset := s.Asset()
	return asset == AllAssets || asset == ev.Asset
}

// Hub рассылка без блокировок: отправитель никогда не ждёт медленного подписчика
type Hub struct {
	mu      sync.RWMutex
	subs    map[string]*Subscription
	buffer  int
	metrics *observability.Metrics
	closed  bool
}

// NewHub создает рассылку; buffer — размер очереди каждого подписчика
func NewHub(buffer int, metrics *observability.Metrics) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{
		subs:    make(map[string]*Subscription),
		buffer:  buffer,
		metrics: metrics,
	}
}

// Subscribe регистрирует подписчика на события актива (AllAssets — на все)
func (h *Hub) Subscribe(asset string) *Subscription {
	sub := &Subscription{
		ID: uuid.NewString(),
		ch: make(chan models.Event, h.buffer),
	}
	sub.asset.Store(asset)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(sub.ch)
		return sub
	}
	h.subs[sub.ID] = sub
	h.setGauge()

	logger.Debug("Подписчик подключен", zap.String("id", sub.ID), zap.String("asset", asset))
	return sub
}

// Select меняет актив подписчика
func (h *Hub) Select(sub *Subscription, asset string) {
	sub.asset.Store(asset)
}

// Unsubscribe удаляет подписчика и закрывает его канал
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub.ID]; !ok {
		return
	}
	delete(h.subs, sub.ID)
	close(sub.ch)
	h.setGauge()

	logger.Debug("Подписчик отключен", zap.String("id", sub.ID), zap.Uint64("dropped", sub.Dropped()))
}

// Publish рассылает событие всем подходящим подписчикам.
// Полный буфер означает потерю события для этого подписчика.
func (h *Hub) Publish(ev models.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.metrics != nil {
		h.metrics.EventsPublished.WithLabelValues(string(ev.Type)).Inc()
	}
	for _, sub := range h.subs {
		if !sub.wants(ev) {
			continue
		}
		h.send(sub, ev)
	}
}

// PublishAll рассылает пачку событий в исходном порядке
func (h *Hub) PublishAll(events []models.Event) {
	for _, ev := range events {
		h.Publish(ev)
	}
}

// Deliver отправляет событие одному подписчику без учёта фильтра
func (h *Hub) Deliver(sub *Subscription, ev models.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.subs[sub.ID]; !ok {
		return
	}
	h.send(sub, ev)
}

func (h *Hub) send(sub *Subscription, ev models.Event) {
	select {
	case sub.ch <- ev:
	default:
		sub.dropped.Add(1)
		if h.metrics != nil {
			h.metrics.EventsDropped.WithLabelValues(string(ev.Type)).Inc()
		}
	}
}

// Count число подписчиков
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close отключает всех подписчиков
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subs {
		close(sub.ch)
		delete(h.subs, id)
	}
	h.setGauge()
}

func (h *Hub) setGauge() {
	if h.metrics != nil {
		h.metrics.Subscribers.Set(float64(len(h.subs)))
	}
}
