package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/skalibog/whalewatch/internal/broadcast"
	"github.com/skalibog/whalewatch/internal/config"
	"github.com/skalibog/whalewatch/internal/exchange"
	"github.com/skalibog/whalewatch/internal/observability"
	"github.com/skalibog/whalewatch/internal/server"
	"github.com/skalibog/whalewatch/internal/storage"
	"github.com/skalibog/whalewatch/internal/tracker"
	"github.com/skalibog/whalewatch/internal/ui"
	"github.com/skalibog/whalewatch/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Обработка флагов командной строки
	configPath := flag.String("config", "config.yaml", "путь к файлу конфигурации")
	envPath := flag.String("env", ".env", "файл с переменными окружения")
	withUI := flag.Bool("tui", false, "показать терминальный интерфейс")
	flag.Parse()

	if err := config.LoadEnv(*envPath); err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка чтения %s: %v\n", *envPath, err)
	}

	// Загружаем конфигурацию
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	opts := logger.DefaultOptions()
	if cfg.Log.File != "" {
		opts.File = cfg.Log.File
	}
	if cfg.Log.JSONFile != "" {
		opts.JSONFile = cfg.Log.JSONFile
	}
	if cfg.Log.Level != "" {
		opts.Level = cfg.Log.Level
	}
	opts.Console = !*withUI
	logger.InitWith(opts)
	defer logger.GetLogger().Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *withUI, opts.JSONFile); err != nil {
		logger.Error("Завершение с ошибкой", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("Работа завершена")
}

func run(ctx context.Context, cfg *config.Config, withUI bool, logFile string) (err error) {
	metrics := observability.NewMetrics()
	hub := broadcast.NewHub(cfg.Server.SubscriberBuffer, metrics)

	coord := tracker.NewCoordinator(cfg,
		exchange.NewBinanceClient(cfg.Binance),
		exchange.NewMetadataClient(cfg.Metadata),
		hub, metrics)
	srv := server.New(cfg.Server, hub, coord, metrics)

	sinks := openSinks(cfg)
	defer func() {
		hub.Close()
		for _, s := range sinks {
			err = multierr.Append(err, s.Close())
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return coord.Run(ctx)
	})
	g.Go(func() error {
		if err := srv.Start(); err != nil {
			return fmt.Errorf("ошибка HTTP сервера: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	for _, s := range sinks {
		s := s
		g.Go(func() error {
			storage.Forward(ctx, hub, s)
			return nil
		})
	}

	if withUI {
		g.Go(func() error {
			// Выход из интерфейса останавливает приложение
			defer cancel()
			return ui.NewTermUI(cfg.UI, hub, coord.Symbols(), logFile).Run(ctx)
		})
	}

	logger.Info("Whalewatch запущен",
		zap.Strings("assets", coord.Symbols()),
		zap.String("addr", cfg.Server.Addr),
		zap.Int("sinks", len(sinks)))

	return g.Wait()
}

// openSinks подключает включённые экспортёры; недоступный экспортёр пропускается
func openSinks(cfg *config.Config) []storage.Sink {
	var sinks []storage.Sink

	if cfg.Storage.Enabled {
		s, err := storage.NewInfluxDBSink(cfg.Storage)
		if err != nil {
			logger.Warn("Экспорт в InfluxDB отключён", zap.Error(err))
		} else {
			sinks = append(sinks, s)
		}
	}

	if cfg.Redis.Enabled {
		s, err := storage.NewRedisSink(cfg.Redis)
		if err != nil {
			logger.Warn("Публикация в Redis отключена", zap.Error(err))
		} else {
			sinks = append(sinks, s)
		}
	}

	return sinks
}
