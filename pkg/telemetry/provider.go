// SPDX-License-Identifier: BSD-3-Clause

package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/log/noop"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
	oteltrace "go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Provider encapsulates OpenTelemetry providers for metrics, traces, and logs.
//
// The kiln core never leaves the device it runs on, so this provider only
// ever has two useful exporter types: NoOp (production firing, minimal
// overhead) and Stdout (bench debugging of segment transitions and PID
// ticks). Network OTLP exporters are intentionally not wired here.
type Provider struct {
	config        *Config
	traceProvider *trace.TracerProvider
	meterProvider *sdkmetric.MeterProvider
	logProvider   *log.LoggerProvider
	resource      *resource.Resource
}

// NewProvider creates a new telemetry provider with the given configuration options.
func NewProvider(opts ...Option) (*Provider, error) {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(config)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}

	res, err := createResource(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	provider := &Provider{
		config:   config,
		resource: res,
	}

	if err := provider.setupProviders(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExporterSetupFailed, err)
	}

	provider.setGlobalProviders()
	setupTextMapPropagator()

	return provider, nil
}

// Tracer returns a tracer with the given name.
func (p *Provider) Tracer(name string) oteltrace.Tracer {
	if p.traceProvider == nil {
		return tracenoop.NewTracerProvider().Tracer(name)
	}
	return p.traceProvider.Tracer(name)
}

// Meter returns a meter with the given name.
func (p *Provider) Meter(name string) metric.Meter {
	if p.meterProvider == nil {
		return metricnoop.NewMeterProvider().Meter(name)
	}
	return p.meterProvider.Meter(name)
}

// Logger returns a logger with the given name.
func (p *Provider) Logger(name string) *slog.Logger {
	return slog.Default()
}

// Shutdown gracefully shuts down all providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error

	if p.traceProvider != nil {
		if err := p.traceProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("trace provider shutdown: %w", err))
		}
	}

	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}

	if p.logProvider != nil {
		if err := p.logProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("log provider shutdown: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %v", ErrShutdownFailed, errs)
	}

	return nil
}

// validateConfig validates the telemetry configuration.
func validateConfig(config *Config) error {
	switch config.exporterType {
	case NoOp, Stdout:
	default:
		return ErrInvalidExporterType
	}

	if config.samplingRatio < 0.0 || config.samplingRatio > 1.0 {
		return fmt.Errorf("sampling ratio must be between 0.0 and 1.0, got %f", config.samplingRatio)
	}

	return nil
}

// createResource creates an OpenTelemetry resource with service information.
func createResource(config *Config) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(config.serviceName),
		semconv.ServiceVersion(config.serviceVersion),
	}

	for key, value := range config.resourceAttrs {
		attrs = append(attrs, attribute.String(key, value))
	}

	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			attrs...,
		),
	)
}

// setupProviders initializes the trace, metric, and log providers based on configuration.
func (p *Provider) setupProviders() error {
	if p.config.enableTraces {
		if err := p.setupTraceProvider(); err != nil {
			return fmt.Errorf("failed to setup trace provider: %w", err)
		}
	}

	if p.config.enableMetrics {
		p.meterProvider = sdkmetric.NewMeterProvider(sdkmetric.WithResource(p.resource))
	}

	if p.config.enableLogs {
		p.logProvider = log.NewLoggerProvider(log.WithResource(p.resource))
	}

	return nil
}

// setupTraceProvider initializes the trace provider.
func (p *Provider) setupTraceProvider() error {
	if p.config.exporterType == NoOp {
		p.traceProvider = trace.NewTracerProvider()
		return nil
	}

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return fmt.Errorf("failed to create stdout trace exporter: %w", err)
	}

	p.traceProvider = trace.NewTracerProvider(
		trace.WithResource(p.resource),
		trace.WithSampler(trace.TraceIDRatioBased(p.config.samplingRatio)),
		trace.WithBatcher(exporter,
			trace.WithBatchTimeout(p.config.batchTimeout),
			trace.WithMaxExportBatchSize(p.config.maxExportBatch),
			trace.WithMaxQueueSize(p.config.maxQueueSize),
		),
	)
	return nil
}

// setGlobalProviders sets the global OpenTelemetry providers.
func (p *Provider) setGlobalProviders() {
	if p.traceProvider != nil {
		otel.SetTracerProvider(p.traceProvider)
	}

	if p.meterProvider != nil {
		otel.SetMeterProvider(p.meterProvider)
	}

	if p.logProvider != nil {
		global.SetLoggerProvider(p.logProvider)
	} else {
		global.SetLoggerProvider(noop.NewLoggerProvider())
	}
}

// setupTextMapPropagator configures the global text map propagator.
func setupTextMapPropagator() {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}
