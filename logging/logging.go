// Package logging provides a tiny abstraction over slog so components can
// depend on a minimal interface while callers plug in any structured logger.
package logging

import (
	"io"
	"log/slog"
)

// Logger is the minimal structured logging interface used across the server.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SlogAdapter wraps *slog.Logger to implement Logger.
type SlogAdapter struct {
	*slog.Logger
}

// NewSlogAdapter creates a Logger from an existing *slog.Logger.
func NewSlogAdapter(logger *slog.Logger) Logger {
	return &SlogAdapter{Logger: logger}
}

// New builds a Logger writing to w. Format is "text" or "json" (default).
func New(w io.Writer, format string, level slog.Level) Logger {
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return NewSlogAdapter(slog.New(handler))
}

// Default returns a Logger backed by slog.Default().
func Default() Logger {
	return NewSlogAdapter(slog.Default())
}

// Nop discards all log messages. Useful in tests.
type Nop struct{}

// Debug discards the message.
func (Nop) Debug(string, ...any) {}

// Info discards the message.
func (Nop) Info(string, ...any) {}

// Warn discards the message.
func (Nop) Warn(string, ...any) {}

// Error discards the message.
func (Nop) Error(string, ...any) {}
