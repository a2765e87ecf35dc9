// Package logging is the structured logger every FileKeeper component takes.
// The only implementation wraps log/slog; tests use NewDiscardLogger.
package logging

import "context"

// Logger is a context-aware structured logger. Variadic args are key/value
// pairs:
//
//	log.Info(ctx, "artifact stored", "id", id, "size", n)
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that adds args to every record.
	With(args ...any) Logger
}
