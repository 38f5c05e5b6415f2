// Package otel configures OpenTelemetry tracing for soulbound processes.
package otel

import (
	"context"
	"fmt"
	"strings"

	"github.com/louisbranch/soulbound/internal/platform/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Shutdown flushes pending spans and stops the exporter.
type Shutdown func(context.Context) error

// tracingEnv controls span export. Export stays off until an endpoint is set.
type tracingEnv struct {
	Endpoint    string  `env:"SOULBOUND_OTEL_ENDPOINT"`
	Enabled     bool    `env:"SOULBOUND_OTEL_ENABLED"      envDefault:"true"`
	SampleRatio float64 `env:"SOULBOUND_OTEL_SAMPLE_RATIO" envDefault:"1"`
}

func noopShutdown(context.Context) error { return nil }

// Setup installs a tracer provider exporting registry spans over OTLP/HTTP.
// Without SOULBOUND_OTEL_ENDPOINT, or with SOULBOUND_OTEL_ENABLED=false, the
// global provider stays the no-op default and the returned Shutdown does
// nothing.
func Setup(ctx context.Context, serviceName string) (Shutdown, error) {
	var cfg tracingEnv
	if err := config.ParseEnv(&cfg); err != nil {
		return noopShutdown, err
	}
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if !cfg.Enabled || endpoint == "" {
		return noopShutdown, nil
	}
	if cfg.SampleRatio < 0 || cfg.SampleRatio > 1 {
		return noopShutdown, fmt.Errorf("otel sample ratio %v must be within [0, 1]", cfg.SampleRatio)
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpoint))
	if err != nil {
		return noopShutdown, fmt.Errorf("create otlp exporter: %w", err)
	}
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return noopShutdown, fmt.Errorf("build otel resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return provider.Shutdown, nil
}
