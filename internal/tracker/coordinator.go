package tracker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/skalibog/whalewatch/internal/config"
	"github.com/skalibog/whalewatch/internal/exchange"
	"github.com/skalibog/whalewatch/internal/observability"
	"github.com/skalibog/whalewatch/pkg/logger"
	"github.com/skalibog/whalewatch/pkg/models"
)

// ErrUnknownAsset актив не отслеживается
var ErrUnknownAsset = errors.New("unknown asset")

// MetadataFetcher источник метаданных актива
type MetadataFetcher interface {
	Fetch(ctx context.Context, asset config.AssetConfig) models.AssetInfo
}

// Coordinator запускает независимые трекеры для всех настроенных активов
type Coordinator struct {
	trackers []*Tracker
	bySymbol map[string]*Tracker
	assets   []config.AssetConfig
	meta     MetadataFetcher
	pub      Publisher
}

// NewCoordinator создает по трекеру на каждый актив конфигурации
func NewCoordinator(cfg *config.Config, stream exchange.TradeStream, meta MetadataFetcher, pub Publisher, m *observability.Metrics) *Coordinator {
	opts := OptionsFrom(cfg.Tracking)
	return NewCoordinatorWith(cfg.Assets, opts, stream, meta, pub, m)
}

// NewCoordinatorWith вариант с явными параметрами трекеров
func NewCoordinatorWith(assets []config.AssetConfig, opts Options, stream exchange.TradeStream, meta MetadataFetcher, pub Publisher, m *observability.Metrics) *Coordinator {
	c := &Coordinator{
		bySymbol: make(map[string]*Tracker, len(assets)),
		assets:   assets,
		meta:     meta,
		pub:      pub,
	}
	for _, a := range assets {
		t := New(a, opts, stream, pub, m)
		c.trackers = append(c.trackers, t)
		c.bySymbol[a.Symbol] = t
	}
	return c
}

// Symbols отслеживаемые активы в порядке конфигурации
func (c *Coordinator) Symbols() []string {
	out := make([]string, len(c.trackers))
	for i, t := range c.trackers {
		out[i] = t.Symbol()
	}
	return out
}

// Tracker трекер актива
func (c *Coordinator) Tracker(symbol string) (*Tracker, error) {
	t, ok := c.bySymbol[symbol]
	if !ok {
		return nil, ErrUnknownAsset
	}
	return t, nil
}

// Trackers все трекеры
func (c *Coordinator) Trackers() []*Tracker {
	return c.trackers
}

// Categories таблица категорий китов актива
func (c *Coordinator) Categories(symbol string) ([]models.WhaleCategory, error) {
	t, err := c.Tracker(symbol)
	if err != nil {
		return nil, err
	}
	return t.Categories(), nil
}

// AvailableAssets событие со списком активов
func (c *Coordinator) AvailableAssets() models.Event {
	return models.Event{Type: models.EventAvailableAssets, Data: c.Symbols()}
}

// Run запускает все трекеры и фоновую загрузку метаданных.
// Метаданные загружаются параллельно и не задерживают подключение трекеров.
// Возвращает управление после остановки всех трекеров.
func (c *Coordinator) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, t := range c.trackers {
		t := t
		g.Go(func() error {
			return t.Run(ctx)
		})
		if c.meta != nil {
			asset := c.assetOf(t.Symbol())
			g.Go(func() error {
				c.loadMetadata(ctx, t, asset)
				return nil
			})
		}
	}

	c.pub.PublishAll([]models.Event{c.AvailableAssets()})
	logger.Info("Трекеры запущены", zap.Strings("symbols", c.Symbols()))

	err := g.Wait()
	logger.Info("Все трекеры остановлены")
	return err
}

func (c *Coordinator) loadMetadata(ctx context.Context, t *Tracker, asset config.AssetConfig) {
	start := time.Now()
	info := c.meta.Fetch(ctx, asset)
	t.SetInfo(info)
	c.pub.PublishAll([]models.Event{{Type: models.EventAssetInfo, Asset: t.Symbol(), Data: info}})
	logger.Debug("Метаданные актива загружены",
		zap.String("symbol", t.Symbol()),
		zap.String("name", info.Name),
		zap.Duration("took", time.Since(start)))
}

func (c *Coordinator) assetOf(symbol string) config.AssetConfig {
	for _, a := range c.assets {
		if a.Symbol == symbol {
			return a
		}
	}
	return config.AssetConfig{Symbol: symbol}
}
