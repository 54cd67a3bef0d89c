package logger

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options настройки файлов журнала
type Options struct {
	File      string
	JSONFile  string
	Level     string
	Console   bool
	TruncJSON bool
}

// DefaultOptions значения по умолчанию
func DefaultOptions() Options {
	return Options{
		File:      "whalewatch.log",
		JSONFile:  "whalewatch.json.log",
		Level:     "debug",
		TruncJSON: true,
	}
}

// Глобальный экземпляр логгера
var (
	globalLogger *zap.Logger
	once         sync.Once
)

// Init инициализирует глобальный логгер с настройками по умолчанию
func Init() {
	InitWith(DefaultOptions())
}

// InitWith инициализирует глобальный логгер. Повторные вызовы игнорируются.
func InitWith(opts Options) {
	once.Do(func() {
		if opts.TruncJSON && opts.JSONFile != "" {
			// Очистка логов при перезапуске
			_ = os.Truncate(opts.JSONFile, 0)
		}
		l, err := newLogger(opts)
		if err != nil {
			l = zap.NewNop()
		}
		globalLogger = l
	})
}

// GetLogger возвращает глобальный экземпляр логгера
func GetLogger() *zap.Logger {
	if globalLogger == nil {
		Init()
	}
	return globalLogger
}

// SetLogger подменяет глобальный логгер (используется в тестах)
func SetLogger(l *zap.Logger) {
	once.Do(func() {})
	globalLogger = l
}

// Вспомогательные функции для удобства использования
func Info(msg string, fields ...zap.Field) {
	GetLogger().Info(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	GetLogger().Error(msg, fields...)
}

func Debug(msg string, fields ...zap.Field) {
	GetLogger().Debug(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	GetLogger().Warn(msg, fields...)
}

func Fatal(msg string, fields ...zap.Field) {
	GetLogger().Fatal(msg, fields...)
}

func newLogger(opts Options) (*zap.Logger, error) {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("02.01.2006 - 15:04:05.000000000Z07:00")
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	level := zapcore.DebugLevel
	if opts.Level != "" {
		if err := level.Set(opts.Level); err != nil {
			return nil, err
		}
	}

	var cores []zapcore.Core

	if opts.File != "" {
		readableFile, err := os.OpenFile(opts.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, err
		}
		colorConfig := encoderConfig
		colorConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(colorConfig), zapcore.AddSync(readableFile), level))
	}

	if opts.JSONFile != "" {
		jsonFile, err := os.OpenFile(opts.JSONFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, err
		}
		jsonConfig := encoderConfig
		jsonConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(jsonConfig), zapcore.AddSync(jsonFile), level))
	}

	// Консоль отключается, когда терминал занят UI
	if opts.Console {
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.AddSync(os.Stdout), level))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1)), nil
}
