// Package ctxutil carries request-scoped values, chiefly the trace ID
// attached to every log line.
package ctxutil

import (
	"context"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

type contextKey string

// TraceIDKey is the context key under which the trace ID travels.
const TraceIDKey contextKey = "trace_id"

const traceIDSize = 16

// GetTraceID gets the trace ID from the context.
func GetTraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// SetTraceID sets the trace ID on the context.
func SetTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// EnsureTraceID ensures that a trace ID exists in the context,
// generating one when absent.
func EnsureTraceID(ctx context.Context) (context.Context, string) {
	if traceID := GetTraceID(ctx); traceID != "" {
		return ctx, traceID
	}
	traceID := gonanoid.Must(traceIDSize)
	return SetTraceID(ctx, traceID), traceID
}
