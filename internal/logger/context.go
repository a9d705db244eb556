package logger

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey struct{}

// WithLogger returns a context carrying a request-scoped logger. The HTTP
// middleware stores a logger annotated with the request ID here so handlers
// log with request correlation for free.
func WithLogger(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger stored in ctx, or a nop logger when none
// was stored. Never returns nil.
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok && l != nil {
		return l
	}
	return zap.NewNop()
}
