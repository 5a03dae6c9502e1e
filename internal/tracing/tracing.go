// Package tracing wires go.opentelemetry.io/otel's SDK with a stdout
// exporter, giving each component's top-level operation (scrape a course,
// run a summarizer sweep, answer a query, run a notification pass) a span without
// standing up a full metrics pipeline.
package tracing

import (
	"context"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Init installs a stdout-exporting tracer provider as the global provider
// and returns a shutdown func to flush on process exit. When pretty is
// false the exporter writes compact single-line spans, suited to
// production log aggregation rather than local debugging.
func Init(serviceName string, pretty bool) (shutdown func(context.Context) error, err error) {
	opts := []stdouttrace.Option{stdouttrace.WithWriter(os.Stdout)}
	if pretty {
		opts = append(opts, stdouttrace.WithPrettyPrint())
	}
	exporter, err := stdouttrace.New(opts...)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	return provider.Shutdown, nil
}

// Tracer returns the named tracer components should use for their
// top-level operation span.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// StartSpan starts a span named op under component's tracer; callers defer
// span.End().
func StartSpan(ctx context.Context, component, op string) (context.Context, trace.Span) {
	return Tracer(component).Start(ctx, op)
}
