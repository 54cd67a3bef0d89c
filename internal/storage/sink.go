// Package storage экспортирует события во внешние системы.
// Экспорт только на запись: состояние трекеров из него не восстанавливается.
package storage

import (
	"context"

	"go.uber.org/zap"

	"github.com/skalibog/whalewatch/internal/broadcast"
	"github.com/skalibog/whalewatch/pkg/logger"
	"github.com/skalibog/whalewatch/pkg/models"
)

// Sink получатель экспортируемых событий
type Sink interface {
	Name() string
	Write(ctx context.Context, ev models.Event) error
	Close() error
}

// Forward подписывается на все активы и передаёт события в sink до отмены ctx.
// Ошибки записи логируются и не прерывают экспорт.
func Forward(ctx context.Context, hub *broadcast.Hub, sink Sink) {
	sub := hub.Subscribe(broadcast.AllAssets)
	defer hub.Unsubscribe(sub)

	logger.Info("Экспорт событий запущен", zap.String("sink", sink.Name()))
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := sink.Write(ctx, ev); err != nil {
				logger.Warn("Ошибка экспорта события",
					zap.String("sink", sink.Name()),
					zap.String("event", string(ev.Type)),
					zap.Error(err))
			}
		}
	}
}
