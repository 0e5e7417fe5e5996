package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "staffforge"

// StartServiceSpan starts a span named after a service operation, e.g.
// "assignment.create".
func StartServiceSpan(ctx context.Context, op, tenantID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("tenant.id", tenantID))
	return otel.Tracer(tracerName).Start(ctx, op, trace.WithAttributes(attrs...))
}

// StartProjectionSpan starts a span for recomputing one consultant summary.
func StartProjectionSpan(ctx context.Context, consultantID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "summary.project",
		trace.WithAttributes(attribute.String("consultant.id", consultantID)),
	)
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
