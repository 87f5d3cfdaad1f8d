package infrastructure

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// GenerateTraceID returns a random UUID; run ids use the same form.
func GenerateTraceID() string {
	return uuid.NewString()
}

// EnsureTraceID keeps an existing trace id and otherwise assigns a new one.
func EnsureTraceID(ctx context.Context) context.Context {
	if GetTraceID(ctx) != "" {
		return ctx
	}
	return WithTraceID(ctx, GenerateTraceID())
}

// WithComponent tags logger with the component emitting the records. A nil
// logger means the process logger.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = GetLogger()
	}
	return logger.With(slog.String("component", component))
}

// WithError attaches err as the "error" attribute; a nil err leaves logger
// as is.
func WithError(logger *slog.Logger, err error) *slog.Logger {
	if err != nil {
		logger = logger.With(slog.String("error", err.Error()))
	}
	return logger
}
