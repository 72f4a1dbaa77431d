// Package observability sets up opt-in tracing export.
package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Config captures the opt-in tracing toggles.
type Config struct {
	Endpoint    string `env:"BOARDFX_OTEL_ENDPOINT"`
	Enabled     bool   `env:"BOARDFX_OTEL_ENABLED" envDefault:"true"`
	ServiceName string `env:"BOARDFX_SERVICE_NAME" envDefault:"boardfx"`
}

// Active reports whether SetupTracing will install an exporter.
func (c Config) Active() bool {
	return c.Enabled && c.Endpoint != ""
}

// SetupTracing installs a global tracer provider exporting over OTLP/HTTP.
// When tracing is not active it returns a no-op shutdown and leaves the
// global provider untouched.
func SetupTracing(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }
	if !cfg.Active() {
		return noop, nil
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(cfg.Endpoint),
	)
	if err != nil {
		return noop, err
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "boardfx"
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return noop, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp.Shutdown, nil
}
