// Package tracing sets up OpenTelemetry tracing for file and snapshot
// operations. Until Init installs a provider every span is a no-op.
package tracing

import (
	"context"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/ajitpratap0/dremel/pkg/errors"
)

// InstrumentationName names the tracer used by every package.
const InstrumentationName = "github.com/ajitpratap0/dremel"

// Config configures tracing.
type Config struct {
	// Enabled installs a provider that exports spans to the output writer
	Enabled bool `yaml:"enabled" json:"enabled"`
	// SamplingRate is the fraction of traces recorded, within [0, 1]
	SamplingRate float64 `yaml:"sampling_rate" json:"sampling_rate"`
	// ServiceName is reported as the service.name resource attribute
	ServiceName string `yaml:"service_name" json:"service_name"`
}

// DefaultConfig returns a disabled configuration that samples everything
// once enabled.
func DefaultConfig() Config {
	return Config{
		SamplingRate: 1,
		ServiceName:  "dremel",
	}
}

// Validate checks the sampling rate.
func (c Config) Validate() error {
	if c.SamplingRate < 0 || c.SamplingRate > 1 {
		return errors.New(errors.ErrorTypeConfig, "tracing.sampling_rate must be within [0, 1]").
			WithDetail("sampling_rate", c.SamplingRate)
	}
	return nil
}

// ShutdownFunc flushes pending spans and releases the provider.
type ShutdownFunc func(context.Context) error

// Init installs a global tracer provider writing JSON spans to w. A
// disabled configuration leaves the global provider untouched.
func Init(cfg Config, w io.Writer) (ShutdownFunc, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "cannot create span exporter")
	}

	var sampler sdktrace.Sampler
	switch {
	case cfg.SamplingRate <= 0:
		sampler = sdktrace.NeverSample()
	case cfg.SamplingRate >= 1:
		sampler = sdktrace.AlwaysSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(cfg.SamplingRate)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", cfg.ServiceName),
		)),
		sdktrace.WithSampler(sampler),
		sdktrace.WithSyncer(exporter),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// Start starts a span named name under ctx.
func Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(InstrumentationName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// End records err on span, if any, and ends it.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
