// Package logger owns the process-wide zap logger. Packages log through
// WithModule so every entry carries a module field the log pipeline can
// filter on.
package logger

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.RWMutex
	shared = zap.NewNop()
)

// Init builds the shared logger. Format "console" is for local
// development; anything else emits production JSON. Unknown levels fall
// back to info rather than failing startup.
func Init(level, format string) error {
	logger, err := buildConfig(level, format).Build()
	if err != nil {
		return err
	}

	mu.Lock()
	shared = logger
	mu.Unlock()
	return nil
}

func buildConfig(level, format string) zap.Config {
	cfg := zap.NewProductionConfig()
	if strings.EqualFold(strings.TrimSpace(format), "console") {
		cfg.Encoding = "console"
		cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))
	return cfg
}

func parseLevel(level string) zapcore.Level {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return zapcore.InfoLevel
	}
	return l
}

// Logger returns the shared logger; a no-op logger before Init runs.
func Logger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return shared
}

// Sync flushes buffered entries. Called on shutdown.
func Sync() error {
	return Logger().Sync()
}

// WithModule tags a child logger with the owning module name.
func WithModule(module string) *zap.Logger {
	return Logger().With(zap.String("module", module))
}

// Info logs at info level on the shared logger.
func Info(msg string, fields ...zap.Field) { Logger().Info(msg, fields...) }

// Warn logs at warn level on the shared logger.
func Warn(msg string, fields ...zap.Field) { Logger().Warn(msg, fields...) }

// Error logs at error level on the shared logger.
func Error(msg string, fields ...zap.Field) { Logger().Error(msg, fields...) }

// Debug logs at debug level on the shared logger.
func Debug(msg string, fields ...zap.Field) { Logger().Debug(msg, fields...) }
