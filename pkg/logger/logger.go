// Package logger provides structured logging for pocforge.
package logger

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

// Logger is the logging interface every pocforge component depends on.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
	WithGroup(name string) Logger
}

var (
	mu     sync.RWMutex
	global *slog.Logger
)

func init() {
	global = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// SetupLogger configures the global logger.
func SetupLogger(debug bool, format string) {
	SetupLoggerWithWriter(os.Stderr, debug, format)
}

// SetupLoggerWithWriter configures the global logger to write to w.
func SetupLoggerWithWriter(w io.Writer, debug bool, format string) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	mu.Lock()
	global = slog.New(handler)
	mu.Unlock()
}

// GetGlobalLogger returns the global logger behind the Logger interface.
func GetGlobalLogger() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return &slogLogger{l: global}
}

// Debug logs a debug message.
func Debug(msg string, args ...any) {
	GetGlobalLogger().Debug(msg, args...)
}

// Info logs an info message.
func Info(msg string, args ...any) {
	GetGlobalLogger().Info(msg, args...)
}

// Warn logs a warning message.
func Warn(msg string, args ...any) {
	GetGlobalLogger().Warn(msg, args...)
}

// Error logs an error message.
func Error(msg string, args ...any) {
	GetGlobalLogger().Error(msg, args...)
}

// WithProvider returns a logger tagged with the LLM provider in use.
func WithProvider(provider, model string) Logger {
	return GetGlobalLogger().With("provider", provider, "model", model)
}

type slogLogger struct {
	l *slog.Logger
}

func (s *slogLogger) Debug(msg string, args ...any) { s.l.Debug(msg, args...) }
func (s *slogLogger) Info(msg string, args ...any)  { s.l.Info(msg, args...) }
func (s *slogLogger) Warn(msg string, args ...any)  { s.l.Warn(msg, args...) }
func (s *slogLogger) Error(msg string, args ...any) { s.l.Error(msg, args...) }

func (s *slogLogger) With(args ...any) Logger {
	return &slogLogger{l: s.l.With(args...)}
}

func (s *slogLogger) WithGroup(name string) Logger {
	return &slogLogger{l: s.l.WithGroup(name)}
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any)     {}
func (nopLogger) Info(string, ...any)      {}
func (nopLogger) Warn(string, ...any)      {}
func (nopLogger) Error(string, ...any)     {}
func (n nopLogger) With(...any) Logger     { return n }
func (n nopLogger) WithGroup(string) Logger { return n }
