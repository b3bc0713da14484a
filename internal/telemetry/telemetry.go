// SPDX-License-Identifier: Apache-2.0

// Package telemetry installs the OpenTelemetry tracer provider used by
// both binaries.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Exporter names accepted in configuration
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// DefaultBatchTimeout is how long spans are batched before export
const DefaultBatchTimeout = 5 * time.Second

// Config selects the span exporter and sampling
type Config struct {
	Exporter       string
	Endpoint       string
	Insecure       bool
	SampleRate     float64
	ServiceName    string
	ServiceVersion string
}

// Provider owns the tracer provider installed for the process
type Provider struct {
	tracerProvider *sdktrace.TracerProvider
}

// ValidExporter reports whether name is a known exporter. Empty means none.
func ValidExporter(name string) bool {
	switch strings.ToLower(name) {
	case "", ExporterNone, ExporterStdout, ExporterOTLP:
		return true
	default:
		return false
	}
}

// Setup builds the exporter named by the config and installs a tracer
// provider and the W3C propagators globally. With no exporter, the global
// provider is left untouched and Shutdown is a no-op. Stdout spans are
// written to w.
func Setup(ctx context.Context, config Config, w io.Writer, logger *slog.Logger) (*Provider, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	exporter, err := newExporter(ctx, config, w)
	if err != nil {
		return nil, err
	}
	if exporter == nil {
		logger.Debug("tracing disabled")
		return &Provider{}, nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(DefaultBatchTimeout)),
		sdktrace.WithSampler(sampler(config.SampleRate)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("tracing initialized",
		slog.String("service", config.ServiceName),
		slog.String("exporter", strings.ToLower(config.Exporter)),
		slog.String("endpoint", config.Endpoint),
		slog.Float64("sample_rate", config.SampleRate))

	return &Provider{tracerProvider: tp}, nil
}

func newExporter(ctx context.Context, config Config, w io.Writer) (sdktrace.SpanExporter, error) {
	switch strings.ToLower(config.Exporter) {
	case "", ExporterNone:
		return nil, nil
	case ExporterStdout:
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
		}
		return exporter, nil
	case ExporterOTLP:
		var opts []otlptracegrpc.Option
		if config.Endpoint != "" {
			opts = append(opts, otlptracegrpc.WithEndpoint(config.Endpoint))
		}
		if config.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exporter, err := otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}
		return exporter, nil
	default:
		return nil, fmt.Errorf("unknown trace exporter %q", config.Exporter)
	}
}

func sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	case rate <= 0.0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
	}
}

// Enabled reports whether spans are exported
func (p *Provider) Enabled() bool {
	return p != nil && p.tracerProvider != nil
}

// TracerProvider returns the installed provider, or a no-op provider when
// tracing is disabled
func (p *Provider) TracerProvider() trace.TracerProvider {
	if !p.Enabled() {
		return noop.NewTracerProvider()
	}
	return p.tracerProvider
}

// Shutdown flushes pending spans and stops the exporter
func (p *Provider) Shutdown(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}
	return p.tracerProvider.Shutdown(ctx)
}
