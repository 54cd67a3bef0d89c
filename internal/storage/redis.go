package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/skalibog/whalewatch/internal/config"
	"github.com/skalibog/whalewatch/pkg/models"
)

// Срок хранения последнего снимка метрик
const latestTTL = time.Hour

// RedisSink публикует события в каналы Redis pub/sub
type RedisSink struct {
	client *redis.Client
	prefix string
}

// NewRedisSink подключается к Redis
func NewRedisSink(cfg config.RedisConfig) (*RedisSink, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ошибка соединения с Redis: %w", err)
	}
	return newRedisSink(client, cfg.Prefix), nil
}

func newRedisSink(client *redis.Client, prefix string) *RedisSink {
	if prefix == "" {
		prefix = "whalewatch"
	}
	return &RedisSink{client: client, prefix: prefix}
}

// Name имя получателя
func (s *RedisSink) Name() string {
	return "redis"
}

// Channel канал события: <prefix>:<asset>:<event>
func (s *RedisSink) Channel(ev models.Event) string {
	asset := ev.Asset
	if asset == "" {
		asset = "all"
	}
	return fmt.Sprintf("%s:%s:%s", s.prefix, asset, ev.Type)
}

// Write публикует событие; последние метрики актива дополнительно сохраняются ключом
func (s *RedisSink) Write(ctx context.Context, ev models.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("ошибка сериализации события: %w", err)
	}

	channel := s.Channel(ev)
	if err := s.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("ошибка публикации в %s: %w", channel, err)
	}

	if ev.Type == models.EventMetricsUpdate {
		key := channel + ":latest"
		if err := s.client.Set(ctx, key, data, latestTTL).Err(); err != nil {
			return fmt.Errorf("ошибка записи ключа %s: %w", key, err)
		}
	}
	return nil
}

// Close закрывает клиент
func (s *RedisSink) Close() error {
	return s.client.Close()
}
