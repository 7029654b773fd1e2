// Package logging builds the process-wide structured logger. Grounded on
// theRebelliousNerd-codenerd's cmd/nerd/main.go zap wiring: a
// zap.NewProductionConfig with the level bumped to Debug under --verbose.
package logging

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	once    sync.Once
	global  *zap.SugaredLogger
)

// New builds a *zap.SugaredLogger at Info level, or Debug when verbose is
// set. Callers own the returned logger and should pass it down explicitly;
// Default() exists only for leaf packages that cannot thread a logger
// through (mirrors the teacher's process-wide DB context convention in
// internal/db).
func New(verbose bool) *zap.SugaredLogger {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.TimeKey = ""
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		// Fall back to a no-op logger rather than fail the run over
		// logging setup.
		logger = zap.NewNop()
	}
	return logger.Sugar()
}

// SetDefault installs l as the process-wide default.
func SetDefault(l *zap.SugaredLogger) {
	global = l
}

// Default returns the process-wide logger, building a quiet one on first
// use if SetDefault was never called (e.g. in tests).
func Default() *zap.SugaredLogger {
	once.Do(func() {
		if global == nil {
			global = New(false)
		}
	})
	return global
}
