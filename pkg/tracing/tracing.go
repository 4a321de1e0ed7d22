package tracing

import (
	"context"

	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

var tracer trace.Tracer

// SetTracer installs the process-wide tracer. When no tracer is installed
// every helper in this package degrades to a no-op.
func SetTracer(t trace.Tracer) {
	tracer = t
}

// StartSpan starts a child span, or returns the context unchanged when
// tracing is disabled.
func StartSpan(ctx context.Context, spanName string) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, spanName)
}

// GetActiveSpan returns the recording span on the context, or nil when
// there isn't one.
func GetActiveSpan(ctx context.Context) trace.Span {
	if tracer == nil {
		return nil
	}
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		return span
	}
	return nil
}

// GetTraceID returns the current trace ID, or "" when not tracing.
func GetTraceID(ctx context.Context) string {
	if span := GetActiveSpan(ctx); span != nil {
		return span.SpanContext().TraceID().String()
	}
	return ""
}

// GetSpanID returns the current span ID, or "" when not tracing.
func GetSpanID(ctx context.Context) string {
	if span := GetActiveSpan(ctx); span != nil {
		return span.SpanContext().SpanID().String()
	}
	return ""
}

// GetTraceParent returns the W3C traceparent header value for the current
// span, for propagation over kafka.
func GetTraceParent(ctx context.Context) string {
	return injected(ctx, "traceparent")
}

// GetTraceState returns the W3C tracestate header value for the current span.
func GetTraceState(ctx context.Context) string {
	return injected(ctx, "tracestate")
}

func injected(ctx context.Context, field string) string {
	if GetActiveSpan(ctx) == nil {
		return ""
	}
	carrier := propagation.MapCarrier{}
	propagation.TraceContext{}.Inject(ctx, carrier)
	return carrier.Get(field)
}
