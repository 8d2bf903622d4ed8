package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/BaSui01/mediagateway/types"
)

const tracerName = "github.com/BaSui01/mediagateway/gateway"

// Tracer wraps gateway operations in OpenTelemetry spans.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a Tracer from tp, or from the global provider when nil.
func NewTracer(tp trace.TracerProvider) *Tracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Tracer{tracer: tp.Tracer(tracerName)}
}

// Start opens a span named "gateway.<operation>".
func (t *Tracer) Start(ctx context.Context, operation, serviceID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "gateway."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("gateway.operation", operation),
			attribute.String("gateway.service_id", serviceID),
		),
	)
}

// End records err on span (if any) and ends it.
func (t *Tracer) End(span trace.Span, err error) {
	if err != nil {
		if ge, ok := types.AsError(err); ok {
			span.SetAttributes(
				attribute.String("gateway.error_code", string(ge.Code)),
				attribute.Int("gateway.http_status", ge.HTTPStatus),
			)
			span.SetStatus(codes.Error, ge.Message)
		} else {
			span.SetStatus(codes.Error, err.Error())
		}
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
