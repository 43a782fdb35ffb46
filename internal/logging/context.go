package logging

import "context"

type contextKey string

const (
	traceIDKey contextKey = "trace_id"
	spanIDKey  contextKey = "span_id"
)

// TraceIDKey returns the context key under which a trace ID is stored for
// WithContext loggers.
func TraceIDKey() interface{} { return traceIDKey }

// SpanIDKey returns the context key under which a span ID is stored for
// WithContext loggers.
func SpanIDKey() interface{} { return spanIDKey }

// contextFields lifts trace_id and span_id out of ctx. Returns nil when the
// context is nil or carries neither.
func contextFields(ctx context.Context) map[string]interface{} {
	if ctx == nil {
		return nil
	}
	var fields map[string]interface{}
	if v := ctx.Value(traceIDKey); v != nil {
		fields = map[string]interface{}{"trace_id": v}
	}
	if v := ctx.Value(spanIDKey); v != nil {
		if fields == nil {
			fields = make(map[string]interface{})
		}
		fields["span_id"] = v
	}
	return fields
}
