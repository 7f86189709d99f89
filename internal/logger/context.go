package logger

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey struct{}

// ContextWithLogger stores a logger in the context.
func ContextWithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext extracts a logger from the context.
// Returns zap.NewNop() if no logger is found.
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}

// With returns the context logger enriched with fields, falling back to base.
// Pipeline stages use it so request-scoped fields (request_id, search_id) follow the call.
func With(ctx context.Context, base *zap.Logger, fields ...zap.Field) *zap.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok {
		return l.With(fields...)
	}
	if base == nil {
		base = zap.NewNop()
	}
	return base.With(fields...)
}
