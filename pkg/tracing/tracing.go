package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"logtrigger/internal/config"
)

// TracerProvider owns the SDK provider. When tracing is disabled it wraps a
// provider with no exporter so Shutdown is always safe to call.
type TracerProvider struct {
	tp *sdktrace.TracerProvider
}

func (tp *TracerProvider) Tracer(name string) trace.Tracer {
	return tp.tp.Tracer(name)
}

func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp.tp != nil {
		return tp.tp.Shutdown(ctx)
	}
	return nil
}

// Init installs the global provider and propagator. Kafka headers and line
// envelopes carry W3C trace context, so a line published from a traced
// service joins that trace instead of starting a new one.
func Init(cfg config.TracingConfig, serviceName string) (*TracerProvider, error) {
	if !cfg.Enabled {
		return &TracerProvider{tp: sdktrace.NewTracerProvider()}, nil
	}

	name := cfg.ServiceName
	if name == "" {
		name = serviceName
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(semconv.ServiceNameKey.String(name)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLP.Endpoint)}
	if cfg.OTLP.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(newSampler(cfg.Sampler)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &TracerProvider{tp: tp}, nil
}

// Sampler types accepted in tracing.sampler.type.
const (
	SamplerAlways = "always_on"
	SamplerNever  = "always_off"
	SamplerRatio  = "ratio"
)

// newSampler follows the parent's decision when a line arrives with trace
// context. The configured type only decides for lines that start a trace.
func newSampler(cfg config.SamplerConfig) sdktrace.Sampler {
	var root sdktrace.Sampler
	switch cfg.Type {
	case SamplerNever:
		root = sdktrace.NeverSample()
	case SamplerRatio:
		root = sdktrace.TraceIDRatioBased(cfg.Param)
	default:
		root = sdktrace.AlwaysSample()
	}
	return sdktrace.ParentBased(root)
}

func GetTracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
