package exchange

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	simplejson "github.com/bitly/go-simplejson"
	"github.com/jpillora/backoff"
	"go.uber.org/zap"

	"github.com/skalibog/whalewatch/internal/config"
	"github.com/skalibog/whalewatch/pkg/logger"
	"github.com/skalibog/whalewatch/pkg/models"
)

// MetadataClient загружает название и иконку актива из CoinGecko
type MetadataClient struct {
	baseURL  string
	http     *http.Client
	attempts int
	backoff  *backoff.Backoff
}

// NewMetadataClient создает клиента метаданных
func NewMetadataClient(cfg config.MetadataConfig) *MetadataClient {
	return &MetadataClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		attempts: cfg.Attempts,
		backoff: &backoff.Backoff{
			Min:    500 * time.Millisecond,
			Max:    4 * time.Second,
			Factor: 2,
		},
	}
}

// Fallback статические метаданные из конфигурации
func Fallback(asset config.AssetConfig) models.AssetInfo {
	return models.AssetInfo{
		Symbol:  displaySymbol(asset.Symbol),
		Name:    asset.DisplayName,
		IconURL: asset.IconURL,
	}
}

// Fetch возвращает метаданные актива. Ошибки не возвращаются:
// после исчерпания попыток используется статическое значение из конфигурации.
func (c *MetadataClient) Fetch(ctx context.Context, asset config.AssetConfig) models.AssetInfo {
	fallback := Fallback(asset)
	if asset.CoinGeckoID == "" {
		return fallback
	}

	// у каждого вызова свой счётчик попыток
	b := &backoff.Backoff{Min: c.backoff.Min, Max: c.backoff.Max, Factor: c.backoff.Factor}

	var lastErr error
retry:
	for attempt := 1; attempt <= c.attempts; attempt++ {
		info, err := c.fetchOnce(ctx, asset.CoinGeckoID)
		if err == nil {
			info.Symbol = fallback.Symbol
			if info.Name == "" {
				info.Name = fallback.Name
			}
			if info.IconURL == "" {
				info.IconURL = fallback.IconURL
			}
			logger.Info("Метаданные актива загружены из CoinGecko", zap.String("symbol", asset.Symbol))
			return info
		}
		lastErr = err

		if attempt == c.attempts {
			break
		}
		select {
		case <-time.After(b.Duration()):
		case <-ctx.Done():
			lastErr = ctx.Err()
			break retry
		}
	}

	logger.Warn("Ошибка CoinGecko API, используются статические метаданные",
		zap.String("symbol", asset.Symbol), zap.Error(lastErr))
	return fallback
}

func (c *MetadataClient) fetchOnce(ctx context.Context, id string) (models.AssetInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/coins/"+id, nil)
	if err != nil {
		return models.AssetInfo{}, fmt.Errorf("ошибка создания запроса: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return models.AssetInfo{}, fmt.Errorf("ошибка запроса метаданных: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.AssetInfo{}, fmt.Errorf("CoinGecko вернул статус %d", resp.StatusCode)
	}

	js, err := simplejson.NewFromReader(resp.Body)
	if err != nil {
		return models.AssetInfo{}, fmt.Errorf("ошибка разбора ответа: %w", err)
	}

	return models.AssetInfo{
		Name:    js.Get("name").MustString(),
		IconURL: js.GetPath("image", "small").MustString(),
	}, nil
}

// displaySymbol BTCUSDT -> BTC
func displaySymbol(symbol string) string {
	for _, quote := range []string{"USDT", "USDC", "BUSD", "FDUSD", "USD"} {
		if s, ok := strings.CutSuffix(symbol, quote); ok && s != "" {
			return s
		}
	}
	return symbol
}
