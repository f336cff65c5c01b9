package logger

import (
	"context"
	"log/slog"
	"time"
)

// ContextKey names a request-scoped logging value.
type ContextKey string

const (
	RequestIDKey ContextKey = "request_id"
	UserIDKey    ContextKey = "user_id"
	SessionIDKey ContextKey = "session_id"
	OperationKey ContextKey = "operation"
)

var contextKeys = []ContextKey{RequestIDKey, UserIDKey, SessionIDKey, OperationKey}

// GlobalContext is set by Init.
var GlobalContext *ContextLogger

// ContextLogger adds request-scoped values from a context to log records.
type ContextLogger struct {
	logger *slog.Logger
}

// NewContextLogger creates a ContextLogger over logger.
func NewContextLogger(logger *slog.Logger) *ContextLogger {
	return &ContextLogger{logger: logger}
}

// WithContext returns a logger carrying every known key present in ctx.
func (cl *ContextLogger) WithContext(ctx context.Context) *slog.Logger {
	var fields []any
	for _, key := range contextKeys {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			fields = append(fields, string(key), v)
		}
	}
	if len(fields) == 0 {
		return cl.logger
	}
	return cl.logger.With(fields...)
}

// LogDuration records how long an operation took.
func (cl *ContextLogger) LogDuration(ctx context.Context, operation string, d time.Duration) {
	cl.WithContext(ctx).InfoContext(ctx, "operation completed",
		"operation", operation,
		"duration_ms", d.Milliseconds())
}

// LogError records a failed operation.
func (cl *ContextLogger) LogError(ctx context.Context, operation string, err error) {
	cl.WithContext(ctx).ErrorContext(ctx, "operation failed",
		"operation", operation,
		"error", err.Error())
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, UserIDKey, id)
}

func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, SessionIDKey, id)
}

func WithOperation(ctx context.Context, op string) context.Context {
	return context.WithValue(ctx, OperationKey, op)
}

// RequestID returns the request id stored in ctx, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// FromContext returns a logger carrying ctx's request-scoped values. Before
// Init it falls back to slog's default logger.
func FromContext(ctx context.Context) *slog.Logger {
	if GlobalContext == nil {
		return NewContextLogger(slog.Default()).WithContext(ctx)
	}
	return GlobalContext.WithContext(ctx)
}
