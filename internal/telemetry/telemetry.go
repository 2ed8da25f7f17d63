// Package telemetry wires OpenTelemetry traces and metrics into spectree.
//
// Nothing is exported unless SPECTREE_OTEL_ENABLED=true; otherwise the global
// providers are no-ops.
//
// Environment:
//
//	SPECTREE_OTEL_ENABLED=true              turn telemetry on
//	SPECTREE_OTEL_STDOUT=true               dump spans and metrics to stderr
//	OTEL_EXPORTER_OTLP_METRICS_ENDPOINT=... push metrics over OTLP/HTTP
//	OTEL_EXPORTER_OTLP_ENDPOINT=...         used when the metrics endpoint is unset
package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const defaultScope = "github.com/spectree/spectree"

const (
	stdoutMetricInterval = 15 * time.Second
	otlpMetricInterval   = 30 * time.Second
)

// settings is the environment-derived exporter selection.
type settings struct {
	enabled      bool
	stdout       bool
	otlpEndpoint string
	sink         io.Writer
}

func settingsFromEnv() settings {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT")
	if endpoint == "" {
		endpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	return settings{
		enabled:      os.Getenv("SPECTREE_OTEL_ENABLED") == "true",
		stdout:       os.Getenv("SPECTREE_OTEL_STDOUT") == "true",
		otlpEndpoint: endpoint,
		sink:         os.Stderr,
	}
}

var flushers []func(context.Context) error

// Enabled reports whether SPECTREE_OTEL_ENABLED is set to "true".
func Enabled() bool {
	return settingsFromEnv().enabled
}

// Init installs the global tracer and meter providers for one process run.
func Init(ctx context.Context, service, version string) error {
	s := settingsFromEnv()
	if !s.enabled {
		otel.SetTracerProvider(tracenoop.NewTracerProvider())
		otel.SetMeterProvider(metricnoop.NewMeterProvider())
		return nil
	}

	res, err := describe(ctx, service, version)
	if err != nil {
		return fmt.Errorf("telemetry: resource: %w", err)
	}

	tracers, err := s.tracerProvider(res)
	if err != nil {
		return fmt.Errorf("telemetry: tracer provider: %w", err)
	}
	meters, err := s.meterProvider(ctx, res)
	if err != nil {
		_ = tracers.Shutdown(ctx)
		return fmt.Errorf("telemetry: meter provider: %w", err)
	}

	otel.SetTracerProvider(tracers)
	otel.SetMeterProvider(meters)
	flushers = append(flushers, tracers.Shutdown, meters.Shutdown)
	return nil
}

func describe(ctx context.Context, service, version string) (*resource.Resource, error) {
	return resource.New(ctx,
		resource.WithHost(),
		resource.WithProcess(),
		resource.WithAttributes(
			attribute.String("service.name", service),
			attribute.String("service.version", version),
		),
	)
}

// Spans are only ever written locally; there is no remote span exporter.
func (s settings) tracerProvider(res *resource.Resource) (*sdktrace.TracerProvider, error) {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	}
	if s.stdout {
		exp, err := stdouttrace.New(stdouttrace.WithWriter(s.sink), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdktrace.WithBatcher(exp))
	}
	return sdktrace.NewTracerProvider(opts...), nil
}

func (s settings) meterProvider(ctx context.Context, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	readers, err := s.metricReaders(ctx)
	if err != nil {
		return nil, err
	}
	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	for _, r := range readers {
		opts = append(opts, sdkmetric.WithReader(r))
	}
	return sdkmetric.NewMeterProvider(opts...), nil
}

func (s settings) metricReaders(ctx context.Context) ([]sdkmetric.Reader, error) {
	var readers []sdkmetric.Reader
	if s.stdout {
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(s.sink))
		if err != nil {
			return nil, err
		}
		readers = append(readers, sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(stdoutMetricInterval)))
	}
	if s.otlpEndpoint != "" {
		exp, err := buildOTLPMetricExporter(ctx, s.otlpEndpoint)
		if err != nil {
			return nil, fmt.Errorf("otlp metric exporter: %w", err)
		}
		readers = append(readers, sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(otlpMetricInterval)))
	}
	return readers, nil
}

// Tracer returns a tracer for scope, defaulting to the module path.
func Tracer(scope string) trace.Tracer {
	return otel.Tracer(orDefault(scope))
}

// Meter returns a meter for scope, defaulting to the module path.
func Meter(scope string) metric.Meter {
	return otel.Meter(orDefault(scope))
}

func orDefault(scope string) string {
	if scope == "" {
		return defaultScope
	}
	return scope
}

// Shutdown flushes pending telemetry and drops export errors.
func Shutdown(ctx context.Context) {
	for _, flush := range flushers {
		_ = flush(ctx)
	}
	flushers = nil
}
