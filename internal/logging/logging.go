// File: internal/logging/logging.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Process-wide zap bootstrap. Library packages obtain their logger through
// L() and never construct their own; binaries call Init once at startup.

package logging

import (
	"os"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var global atomic.Pointer[zap.Logger]

func init() {
	global.Store(zap.NewNop())
}

// Init builds the process logger at the given level and installs it as the
// package global. An empty level falls back to the EIO_LOG_LEVEL
// environment variable, then to "info".
func Init(level string) (*zap.Logger, error) {
	if level == "" {
		level = os.Getenv("EIO_LOG_LEVEL")
	}
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = true
	log, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	global.Store(log)
	return log, nil
}

// L returns the current global logger. Before Init it is a nop, so library
// code can log unconditionally.
func L() *zap.Logger {
	return global.Load()
}

// SetLogger replaces the global logger. A nil argument restores the nop
// logger.
func SetLogger(log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	global.Store(log)
}

// Sync flushes buffered entries. Safe on the nop logger.
func Sync() error {
	return global.Load().Sync()
}

func parseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		var lvl zapcore.Level
		if err := lvl.UnmarshalText([]byte(s)); err != nil {
			return zapcore.InfoLevel, err
		}
		return lvl, nil
	}
}
