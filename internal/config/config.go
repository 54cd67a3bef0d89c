package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/skalibog/whalewatch/pkg/models"
	"gopkg.in/yaml.v2"
)

// Config представляет полную конфигурацию приложения
type Config struct {
	Binance  BinanceConfig  `yaml:"binance"`
	Metadata MetadataConfig `yaml:"metadata"`
	Tracking TrackingConfig `yaml:"tracking"`
	Assets   []AssetConfig  `yaml:"assets"`
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Redis    RedisConfig    `yaml:"redis"`
	Log      LogConfig      `yaml:"log"`
	UI       UIConfig       `yaml:"ui"`
}

// BinanceConfig содержит настройки подключения к Binance
type BinanceConfig struct {
	Testnet bool `yaml:"testnet"`
}

// MetadataConfig настройки запроса метаданных CoinGecko
type MetadataConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Attempts       int    `yaml:"attempts"`
}

// TrackingConfig параметры окон и агрегации, общие для всех активов
type TrackingConfig struct {
	WindowMinutes          int `yaml:"window_minutes"`
	CandleSeconds          int `yaml:"candle_seconds"`
	CandleRetention        int `yaml:"candle_retention"`
	WhaleHistory           int `yaml:"whale_history"`
	ReconnectSeconds       int `yaml:"reconnect_seconds"`
	MetricsIntervalSeconds int `yaml:"metrics_interval_seconds"`
	ChartIntervalSeconds   int `yaml:"chart_interval_seconds"`
	RSIPeriod              int `yaml:"rsi_period"`
}

// AssetConfig настройки одного отслеживаемого инструмента
type AssetConfig struct {
	Symbol            string                 `yaml:"symbol"`
	CoinGeckoID       string                 `yaml:"coingecko_id"`
	DisplayName       string                 `yaml:"display_name"`
	IconURL           string                 `yaml:"icon_url"`
	CirculatingSupply float64                `yaml:"circulating_supply"`
	WhaleThreshold    float64                `yaml:"whale_threshold"`
	Categories        []models.WhaleCategory `yaml:"categories"`
}

// ServerConfig настройки HTTP/WebSocket сервера
type ServerConfig struct {
	Addr             string `yaml:"addr"`
	SubscriberBuffer int    `yaml:"subscriber_buffer"`
}

// StorageConfig настройки экспорта в InfluxDB
type StorageConfig struct {
	Enabled      bool   `yaml:"enabled"`
	URL          string `yaml:"url"`
	Token        string `yaml:"token"`
	Organization string `yaml:"organization"`
	Bucket       string `yaml:"bucket"`
}

// RedisConfig настройки публикации в Redis
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// LogConfig настройки журнала
type LogConfig struct {
	File     string `yaml:"file"`
	JSONFile string `yaml:"json_file"`
	Level    string `yaml:"level"`
}

// UIConfig настройки терминального интерфейса
type UIConfig struct {
	RefreshRate int `yaml:"refresh_rate_ms"`
	WhaleRows   int `yaml:"whale_rows"`
}

// Load загружает конфигурацию из файла, применяет переменные окружения и значения по умолчанию
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла конфигурации: %w", err)
	}
	return Parse(data)
}

// Parse разбирает YAML конфигурацию
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("ошибка разбора файла конфигурации: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadEnv подгружает .env, если он есть. Отсутствие файла не ошибка.
func LoadEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("ошибка чтения %s: %w", p, err)
		}
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("INFLUX_TOKEN"); v != "" {
		c.Storage.Token = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("WHALEWATCH_ADDR"); v != "" {
		c.Server.Addr = v
	}
}

func (c *Config) applyDefaults() {
	t := &c.Tracking
	setDefault(&t.WindowMinutes, 60)
	setDefault(&t.CandleSeconds, 60)
	setDefault(&t.CandleRetention, 60)
	setDefault(&t.WhaleHistory, 100)
	setDefault(&t.ReconnectSeconds, 5)
	setDefault(&t.MetricsIntervalSeconds, 5)
	setDefault(&t.ChartIntervalSeconds, 10)
	setDefault(&t.RSIPeriod, 14)

	if c.Metadata.BaseURL == "" {
		c.Metadata.BaseURL = "https://api.coingecko.com/api/v3"
	}
	setDefault(&c.Metadata.TimeoutSeconds, 5)
	setDefault(&c.Metadata.Attempts, 3)

	if c.Server.Addr == "" {
		c.Server.Addr = ":3000"
	}
	setDefault(&c.Server.SubscriberBuffer, 256)

	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "whalewatch"
	}
	setDefault(&c.UI.RefreshRate, 500)
	setDefault(&c.UI.WhaleRows, 8)

	for i := range c.Assets {
		a := &c.Assets[i]
		a.Symbol = strings.ToUpper(strings.TrimSpace(a.Symbol))
		if a.DisplayName == "" {
			a.DisplayName = a.Symbol
		}
		if len(a.Categories) == 0 && a.WhaleThreshold > 0 {
			a.Categories = DefaultCategories(a.WhaleThreshold)
		}
	}
}

// Validate проверяет согласованность конфигурации
func (c *Config) Validate() error {
	if len(c.Assets) == 0 {
		return errors.New("не задано ни одного актива")
	}
	seen := make(map[string]struct{}, len(c.Assets))
	for _, a := range c.Assets {
		if a.Symbol == "" {
			return errors.New("актив без символа")
		}
		if _, ok := seen[a.Symbol]; ok {
			return fmt.Errorf("актив %s указан дважды", a.Symbol)
		}
		seen[a.Symbol] = struct{}{}
		if len(a.Categories) == 0 {
			return fmt.Errorf("для %s не задан порог кита", a.Symbol)
		}
		for _, cat := range a.Categories {
			if cat.Min <= 0 {
				return fmt.Errorf("для %s категория %q имеет неположительный порог", a.Symbol, cat.Name)
			}
		}
		if a.CirculatingSupply <= 0 {
			return fmt.Errorf("для %s не задано circulating_supply", a.Symbol)
		}
	}
	return nil
}

// Asset ищет настройки актива по символу
func (c *Config) Asset(symbol string) (AssetConfig, bool) {
	for _, a := range c.Assets {
		if a.Symbol == symbol {
			return a, true
		}
	}
	return AssetConfig{}, false
}

// Window горизонт скользящего окна
func (t TrackingConfig) Window() time.Duration {
	return time.Duration(t.WindowMinutes) * time.Minute
}

// CandleDuration длительность одной свечи
func (t TrackingConfig) CandleDuration() time.Duration {
	return time.Duration(t.CandleSeconds) * time.Second
}

// ReconnectDelay фиксированная задержка переподключения
func (t TrackingConfig) ReconnectDelay() time.Duration {
	return time.Duration(t.ReconnectSeconds) * time.Second
}

// DefaultCategories строит таблицу категорий из одного базового порога
func DefaultCategories(threshold float64) []models.WhaleCategory {
	return []models.WhaleCategory{
		{Name: "LEVIATHAN", Label: "🐋🐋🐋 Leviathan", Color: "#c77dff", Min: threshold * 10},
		{Name: "MEGA_WHALE", Label: "🐋🐋 Mega Whale", Color: "#f6465d", Min: threshold * 5},
		{Name: "WHALE", Label: "🐋 Whale", Color: "#f7931a", Min: threshold * 2},
		{Name: "SHRIMP_WHALE", Label: "🐬 Dolphin", Color: "#0ecb81", Min: threshold},
	}
}

func setDefault(v *int, def int) {
	if *v <= 0 {
		*v = def
	}
}
