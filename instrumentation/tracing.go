package instrumentation

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// RecordError records an error on the span if the span is valid
func RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
}

// SetSpanSuccess marks the span as successful
func SetSpanSuccess(span trace.Span) {
	if span == nil {
		return
	}
	span.SetStatus(codes.Ok, "")
}

// SetSpanError marks the span as failed with the given message
func SetSpanError(span trace.Span, message string) {
	if span == nil {
		return
	}
	span.SetStatus(codes.Error, message)
}

// SetSpanAttributes sets attributes on the span if the span is valid
func SetSpanAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	if span == nil {
		return
	}
	span.SetAttributes(attrs...)
}

// AddGrantAttributes adds common grant attributes to a span
func AddGrantAttributes(span trace.Span, grantType, clientID string) {
	SetSpanAttributes(span,
		attribute.String(AttrGrantType, grantType),
		attribute.String(AttrClientID, clientID),
	)
}
