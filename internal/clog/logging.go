// Package clog provides the structured logging setup shared by cai and cai-docker.
package clog

import (
	"io"
	"log/slog"
	"os"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu    sync.RWMutex
	level = new(slog.LevelVar)
	base  *slog.Logger
)

func init() {
	level.Set(slog.LevelInfo)
	base = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// Configure rebuilds the package logger. When logFile is non-empty, output is
// written to a rotating file (via CONTAINAI_LOG_FILE) instead of stderr, since
// cai-docker runs on every docker invocation and a plain stderr logger would
// spam the terminal.
func Configure(verbose, quiet bool, logFile string) {
	mu.Lock()
	defer mu.Unlock()

	switch {
	case quiet:
		level.Set(slog.LevelWarn)
	case verbose:
		level.Set(slog.LevelDebug)
	default:
		level.Set(slog.LevelInfo)
	}

	var w io.Writer = os.Stderr
	if logFile != "" {
		w = &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
		}
	}
	base = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Logger returns the package-level structured logger.
func Logger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// With returns a logger with additional attributes.
func With(args ...any) *slog.Logger {
	return Logger().With(args...)
}

// SetLevel adjusts the runtime log level directly.
func SetLevel(l slog.Level) {
	level.Set(l)
}
