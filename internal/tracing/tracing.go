// Package tracing propagates trace, request, and task identifiers through
// context.Context across suspension points — network calls, queue
// dequeues, and goroutine handoffs — so every log line and error can be
// correlated back to the request or task that produced it.
package tracing

import "context"

type contextKey int

const (
	traceIDKey contextKey = iota
	requestIDKey
	taskIDKey
)

// WithTraceID attaches a trace id to ctx.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceID returns the trace id attached to ctx, or "" if none.
func TraceID(ctx context.Context) string {
	v, _ := ctx.Value(traceIDKey).(string)
	return v
}

// WithRequestID attaches a request id to ctx.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestID returns the request id attached to ctx, or "" if none.
func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}

// WithTaskID attaches a task id to ctx.
func WithTaskID(ctx context.Context, taskID string) context.Context {
	return context.WithValue(ctx, taskIDKey, taskID)
}

// TaskID returns the task id attached to ctx, or "" if none.
func TaskID(ctx context.Context) string {
	v, _ := ctx.Value(taskIDKey).(string)
	return v
}
