package infrastructure

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// NewTraceID mints a fresh trace identifier. Request IDs double as trace
// IDs when no tracing backend supplies one.
func NewTraceID() string {
	return uuid.NewString()
}

// EnsureTraceID returns the context unchanged when it already carries a
// trace ID, or attaches a freshly minted one.
func EnsureTraceID(ctx context.Context) context.Context {
	if GetTraceID(ctx) != "" {
		return ctx
	}
	return WithTraceID(ctx, NewTraceID())
}

// LoggerWithContext returns the process logger annotated with the
// context's trace ID, when present. Handlers should prefer this over
// GetLogger so log lines correlate with the request.
func LoggerWithContext(ctx context.Context) *slog.Logger {
	logger := GetLogger()
	if id := GetTraceID(ctx); id != "" {
		return logger.With(slog.String("trace_id", id))
	}
	return logger
}

// WithComponent tags a logger with the emitting component's name.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With(slog.String("component", component))
}

// WithError tags a logger with an error attribute; a nil error leaves the
// logger untouched.
func WithError(logger *slog.Logger, err error) *slog.Logger {
	if err == nil {
		return logger
	}
	return logger.With(slog.String("error", err.Error()))
}
