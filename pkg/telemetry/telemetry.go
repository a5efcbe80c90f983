// Package telemetry wraps Computer.Get's cull/evaluate phases in
// OpenTelemetry spans, using a package-level Tracer variable and the
// ctx, span := tracer.Start(ctx, name) / defer span.End() idiom.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var computeTracer = otel.Tracer("quantengine/compute")

// Tracer is the tracing contract Computer.WithTracer decorates a
// computation with. A nil Tracer is valid and simply means spans are not
// recorded.
type Tracer interface {
	StartSpan(ctx context.Context, name, key string) (context.Context, func(error))
}

// OTel is the default Tracer, backed by the package-level computeTracer.
type OTel struct{}

func (OTel) StartSpan(ctx context.Context, name, key string) (context.Context, func(error)) {
	ctx, span := computeTracer.Start(ctx, name, trace.WithAttributes(attribute.String("quantengine.key", key)))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}
}
