// Package tracing configures the OpenTelemetry tracer provider used by the
// HTTP middleware, the Postgres query tracer and the Kafka publisher.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName prefixes every tracer created through this package.
const InstrumentationName = "github.com/utafrali/commercecore"

// ShutdownFunc flushes pending spans and releases the exporter.
type ShutdownFunc func(context.Context) error

// Config holds OpenTelemetry tracing configuration.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string // host:port of the OTLP/HTTP collector
	Insecure       bool
	SampleRate     float64 // clamped to [0, 1]
	Enabled        bool
}

// DefaultConfig returns development defaults with tracing disabled.
func DefaultConfig(serviceName string) Config {
	return Config{
		ServiceName:    serviceName,
		ServiceVersion: "dev",
		Environment:    "development",
		OTLPEndpoint:   "localhost:4318",
		Insecure:       true,
		SampleRate:     1.0,
	}
}

// Init installs a global tracer provider exporting over OTLP/HTTP and the W3C
// trace-context propagator. When tracing is disabled it only installs the
// propagator and returns a no-op shutdown.
func Init(ctx context.Context, cfg Config) (ShutdownFunc, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
		resource.WithProcessRuntimeDescription(),
		resource.WithHost(),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(Sampler(cfg.SampleRate))),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

// Sampler picks a root sampler for the given rate.
func Sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

// Tracer returns a tracer named under InstrumentationName, e.g.
// Tracer("service") yields "github.com/utafrali/commercecore/service".
func Tracer(component string) trace.Tracer {
	return otel.Tracer(InstrumentationName + "/" + component)
}

// Start opens an internal span on the component's tracer.
func Start(ctx context.Context, component, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer(component).Start(ctx, op, trace.WithAttributes(attrs...))
}

// End records err on span (if any) and ends it.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
