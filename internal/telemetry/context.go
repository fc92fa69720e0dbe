package telemetry

import "context"

// Distinct, unexported types for context keys so plain string keys used
// elsewhere in the process (or by other packages) can never collide with
// these.
type (
	traceIDKey   struct{}
	xTraceIDKey  struct{}
	requestIDKey struct{}
)

// NewTraceIDContext returns a copy of ctx carrying traceID, retrievable by
// extractTraceID.
func NewTraceIDContext(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

// NewXTraceIDContext returns a copy of ctx carrying an X-Trace-Id value,
// used when the trace ID originates from an upstream proxy header rather
// than this process's own tracer.
func NewXTraceIDContext(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, xTraceIDKey{}, traceID)
}

// NewRequestIDContext returns a copy of ctx carrying a request ID.
func NewRequestIDContext(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// extractTraceID returns the most specific identifier available on ctx,
// preferring a trace ID over an X-Trace-Id over a request ID, so a Sentry
// event can be correlated back to a request even if only one was set.
func extractTraceID(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey{}).(string); ok && v != "" {
		return v
	}
	if v, ok := ctx.Value(xTraceIDKey{}).(string); ok && v != "" {
		return v
	}
	if v, ok := ctx.Value(requestIDKey{}).(string); ok && v != "" {
		return v
	}
	return ""
}
