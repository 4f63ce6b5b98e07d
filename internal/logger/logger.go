package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	base *zap.SugaredLogger
	mu   sync.RWMutex
)

// Init builds the process-wide logger. level is one of debug, info, warn, error.
func Init(level string, development bool) error {
	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	l, err := cfg.Build()
	if err != nil {
		return err
	}

	mu.Lock()
	base = l.Sugar()
	mu.Unlock()
	return nil
}

// L returns the process-wide logger, falling back to a no-op logger before Init.
func L() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	if base == nil {
		return zap.NewNop().Sugar()
	}
	return base
}

// Named returns a child logger for a component, e.g. Named("clusterer").
func Named(component string) *zap.SugaredLogger {
	return L().Named(component)
}

// Sync flushes buffered entries.
func Sync() {
	_ = L().Sync()
}
