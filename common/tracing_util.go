package common

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// noopSpan is a no-op implementation of trace.Span that does nothing when methods are called
type noopSpan struct{ trace.Span }

func (s noopSpan) End(...trace.SpanEndOption)              {}
func (s noopSpan) AddEvent(string, ...trace.EventOption)   {}
func (s noopSpan) IsRecording() bool                       { return false }
func (s noopSpan) SetStatus(codes.Code, string)            {}
func (s noopSpan) SetName(string)                          {}
func (s noopSpan) SetAttributes(...attribute.KeyValue)     {}
func (s noopSpan) RecordError(error, ...trace.EventOption) {}
func (s noopSpan) SpanContext() trace.SpanContext          { return trace.SpanContext{} }
func (s noopSpan) TracerProvider() trace.TracerProvider    { return nil }

var defaultNoopSpan = noopSpan{nil}

// StartSpan opens a span around an external interaction (SUT call, oracle query).
// Returns a no-op span when tracing is disabled.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if !IsTracingEnabled {
		return ctx, defaultNoopSpan
	}

	return tracer.Start(ctx, name, opts...)
}

// InjectTraceContext writes the W3C trace context of ctx into outgoing request headers.
func InjectTraceContext(ctx context.Context, h http.Header) {
	if !IsTracingEnabled {
		return
	}

	propagator := propagation.TraceContext{}
	propagator.Inject(ctx, propagation.HeaderCarrier(h))
}

// EndSpan records err (if any) on span and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		SetTraceSpanError(span, err)
	} else if span.IsRecording() {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
