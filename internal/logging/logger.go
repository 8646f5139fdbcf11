package logging

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu   sync.RWMutex
	base = zap.NewNop()
)

// Setup 按级别与格式构建全局 logger，返回的函数用于退出前刷新缓冲。
func Setup(level, format string) (func(), error) {
	lvl := zapcore.InfoLevel
	if strings.TrimSpace(level) != "" {
		if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
			return nil, err
		}
	}

	var cfg zap.Config
	if strings.EqualFold(format, "json") {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	Replace(logger)
	return func() { _ = logger.Sync() }, nil
}

// Redirect points the process-wide logger at path as JSON lines, for
// full-screen terminal programs that own stdout and stderr. An empty path
// discards logs. The returned func flushes and restores the previous logger.
func Redirect(path, level string) (func(), error) {
	mu.RLock()
	previous := base
	mu.RUnlock()

	if strings.TrimSpace(path) == "" {
		Replace(zap.NewNop())
		return func() { Replace(previous) }, nil
	}

	lvl := zapcore.InfoLevel
	if strings.TrimSpace(level) != "" {
		if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
			return nil, err
		}
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{path}
	cfg.DisableStacktrace = true

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	Replace(logger)
	return func() {
		_ = logger.Sync()
		Replace(previous)
	}, nil
}

// Replace swaps the process-wide logger. Tests use it with zaptest/observer.
func Replace(logger *zap.Logger) {
	mu.Lock()
	base = logger
	mu.Unlock()
}

// Named returns a sugared logger tagged with the component name.
func Named(component string) *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return base.Named(component).Sugar()
}
