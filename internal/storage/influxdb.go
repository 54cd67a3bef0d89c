package storage

import (
	"context"
	"fmt"
	"math"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"go.uber.org/zap"

	"github.com/skalibog/whalewatch/internal/config"
	"github.com/skalibog/whalewatch/pkg/logger"
	"github.com/skalibog/whalewatch/pkg/models"
)

// InfluxDBSink пишет китов, метрики и свечи в InfluxDB
type InfluxDBSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
}

// NewInfluxDBSink подключается к InfluxDB и проверяет его состояние
func NewInfluxDBSink(cfg config.StorageConfig) (*InfluxDBSink, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Проверка соединения
	health, err := client.Health(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ошибка соединения с InfluxDB: %w", err)
	}
	if health == nil || health.Status != "pass" {
		client.Close()
		return nil, fmt.Errorf("InfluxDB не в состоянии 'pass': %+v", health)
	}

	s := &InfluxDBSink{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Organization, cfg.Bucket),
	}
	go s.logErrors()
	return s, nil
}

// Name имя получателя
func (s *InfluxDBSink) Name() string {
	return "influxdb"
}

// Write ставит точки события в очередь асинхронной записи
func (s *InfluxDBSink) Write(_ context.Context, ev models.Event) error {
	for _, p := range Points(ev, time.Now()) {
		s.writeAPI.WritePoint(p)
	}
	return nil
}

// Close сбрасывает буфер и закрывает клиент
func (s *InfluxDBSink) Close() error {
	s.writeAPI.Flush()
	s.client.Close()
	return nil
}

// logErrors завершается, когда клиент закрывает канал ошибок
func (s *InfluxDBSink) logErrors() {
	for err := range s.writeAPI.Errors() {
		logger.Warn("Ошибка записи в InfluxDB", zap.Error(err))
	}
}

// Points переводит событие в точки InfluxDB; прочие события не экспортируются
func Points(ev models.Event, now time.Time) []*write.Point {
	switch data := ev.Data.(type) {
	case models.WhaleEvent:
		return []*write.Point{whalePoint(data)}
	case models.Metrics:
		return []*write.Point{metricsPoint(data, now)}
	case []models.Candle:
		points := make([]*write.Point, 0, len(data))
		for _, c := range data {
			points = append(points, candlePoint(ev.Asset, c))
		}
		return points
	}
	return nil
}

func whalePoint(w models.WhaleEvent) *write.Point {
	side := "buy"
	if w.IsBuyerMaker {
		side = "sell"
	}
	fields := map[string]interface{}{
		"price":    w.Price,
		"quantity": w.Quantity,
		"value":    w.TradeValue,
	}
	if a := w.Analysis; a != nil {
		fields["pattern"] = a.Pattern.Name
		fields["whale_type"] = a.WhaleType.Type
		fields["action"] = a.Recommendation.Action
		fields["confidence"] = a.Recommendation.Confidence
		fields["impact_pct"] = a.PriceImpact.Percentage
	}
	return influxdb2.NewPoint(
		"whale_trades",
		map[string]string{
			"symbol":   w.Symbol,
			"category": w.Category,
			"side":     side,
		},
		fields,
		time.UnixMilli(w.Timestamp),
	)
}

func metricsPoint(m models.Metrics, now time.Time) *write.Point {
	fields := map[string]interface{}{
		"high_1h":     m.High1h,
		"volume_1h":   m.Volume1h,
		"trade_count": m.TradeCount,
		"last_price":  m.LastPrice,
		"whale_count": m.WhaleCount,
		"max_whale":   m.MaxWhaleAmount,
		"pressure":    m.WhalePressure,
		"rsi":         m.RSI,
	}
	// +Inf не представим в line protocol
	if !math.IsInf(m.Low1h, 0) {
		fields["low_1h"] = m.Low1h
	}
	return influxdb2.NewPoint("metrics", map[string]string{"symbol": m.Symbol}, fields, now)
}

func candlePoint(symbol string, c models.Candle) *write.Point {
	return influxdb2.NewPoint(
		"candles",
		map[string]string{
			"symbol":   symbol,
			"interval": "1m",
		},
		map[string]interface{}{
			"open":   c.Open,
			"high":   c.High,
			"low":    c.Low,
			"close":  c.Close,
			"volume": c.Volume,
		},
		time.UnixMilli(c.Time),
	)
}
