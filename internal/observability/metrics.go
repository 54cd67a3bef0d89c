// Package observability регистрирует метрики Prometheus
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "whalewatch"

// Metrics счётчики работы трекеров и рассылки
type Metrics struct {
	registry *prometheus.Registry

	TradesProcessed *prometheus.CounterVec
	TradesRejected  *prometheus.CounterVec
	WhalesDetected  *prometheus.CounterVec
	Reconnects      *prometheus.CounterVec
	TrackerState    *prometheus.GaugeVec

	EventsPublished *prometheus.CounterVec
	EventsDropped   *prometheus.CounterVec
	Subscribers     prometheus.Gauge
}

// NewMetrics создает метрики в собственном реестре
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		TradesProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_processed_total",
			Help:      "Trades folded into window and candle state",
		}, []string{"asset"}),
		TradesRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_rejected_total",
			Help:      "Trade payloads dropped at ingestion",
		}, []string{"asset", "reason"}),
		WhalesDetected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "whales_detected_total",
			Help:      "Trades classified as whales",
		}, []string{"asset", "category"}),
		Reconnects: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_reconnects_total",
			Help:      "Upstream reconnect attempts",
		}, []string{"asset"}),
		TrackerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tracker_state",
			Help:      "Current tracker state, 1 for the active state label",
		}, []string{"asset", "state"}),
		EventsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Events handed to the broadcast hub",
		}, []string{"event"}),
		EventsDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Events dropped because a subscriber buffer was full",
		}, []string{"event"}),
		Subscribers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscribers",
			Help:      "Connected subscribers",
		}),
	}
}

// Registry реестр метрик
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler HTTP обработчик /metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SetState отмечает текущее состояние трекера
func (m *Metrics) SetState(asset, state string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1
		}
		m.TrackerState.WithLabelValues(asset, s).Set(v)
	}
}
