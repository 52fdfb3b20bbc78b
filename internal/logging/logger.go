// Package logging defines a minimal structured-logging interface used across
// the project. Implementations wrap slog, zap and zerolog.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is a context-aware, structured logger.
//
// The variadic args are interpreted as key–value pairs, e.g.:
//
//	log.Info(ctx, "starting server", "addr", addr, "mode", mode)
type Logger interface {
	// Debug logs a diagnostic message.
	Debug(ctx context.Context, msg string, args ...any)

	// Info logs an informational message.
	Info(ctx context.Context, msg string, args ...any)

	// Warn logs a warning message for unusual but non-fatal conditions.
	Warn(ctx context.Context, msg string, args ...any)

	// Error logs an error message for failures.
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given key–value pairs.
	With(args ...any) Logger
}

// New builds a Logger for the named backend ("slog", "zap" or "zerolog")
// writing JSON to stdout at the given level.
func New(backend, level string) (Logger, error) {
	switch strings.ToLower(backend) {
	case "", "slog":
		return NewSlogJSONLogger(os.Stdout, level)
	case "zap":
		return NewZapLogger(level)
	case "zerolog":
		return NewZerologLogger(os.Stdout, level)
	default:
		return nil, fmt.Errorf("unknown log backend %q", backend)
	}
}

// NewNop returns a Logger that discards everything.
func NewNop() Logger {
	return NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}
