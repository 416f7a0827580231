package logger

import (
	"context"
	"log/slog"
)

type contextKey string

const (
	loggerKey      contextKey = "savekeep.logger"
	operationIDKey contextKey = "savekeep.operation_id"
)

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext extracts the logger from context.
// Returns the default logger if none is set.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(loggerKey).(Logger); ok {
		return l
	}
	return Default()
}

// WithOperationID tags the context with a save/load operation ID.
func WithOperationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, operationIDKey, id)
}

// OperationIDFromContext extracts the operation ID from context.
func OperationIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(operationIDKey).(string); ok {
		return id
	}
	return ""
}

// L is FromContext bound to ctx, so records carry its operation ID.
func L(ctx context.Context) Logger {
	return FromContext(ctx).WithContext(ctx)
}

// contextHandler stamps records with the operation ID of the context they
// were logged under.
type contextHandler struct {
	slog.Handler
}

func (h contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if id := OperationIDFromContext(ctx); id != "" {
		r.AddAttrs(slog.String("operation_id", id))
	}
	return h.Handler.Handle(ctx, r)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{h.Handler.WithAttrs(attrs)}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{h.Handler.WithGroup(name)}
}
