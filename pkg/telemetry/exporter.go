package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Exporter owns the OTLP/HTTP trace pipeline for a running server process.
// It is only constructed when an endpoint is configured; a nil *Exporter is
// not valid, callers that don't configure one simply never build it and
// GetTracer falls back to a no-op tracer.
type Exporter struct {
	provider *sdktrace.TracerProvider
	exporter *otlptrace.Exporter
}

// NewExporter builds an OTLP/HTTP trace pipeline pointed at endpoint (a bare
// host:port, e.g. "localhost:4318") and installs it as the global tracer
// provider, so otel.Tracer(TracerName) in GetTracer starts exporting real
// spans for both the request root span and every worker span.
func NewExporter(ctx context.Context, endpoint, serviceName string) (*Exporter, error) {
	exp, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: failed to create OTLP exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			attribute.String("service.name", serviceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: failed to build resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return &Exporter{provider: tp, exporter: exp}, nil
}

// Shutdown flushes any pending spans and tears down the exporter. Callers
// defer this from main so a process exit doesn't drop the last batch.
func (e *Exporter) Shutdown(ctx context.Context) error {
	if e == nil || e.provider == nil {
		return nil
	}
	if err := e.provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("telemetry: failed to shutdown tracer provider: %w", err)
	}
	return nil
}
