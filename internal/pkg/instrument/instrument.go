package instrument

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Instrumentation hands out tracers and meters. Modules receive it through
// their Dependency struct and never touch the global providers.
type Instrumentation interface {
	Tracer(name string) trace.Tracer
	Meter(name string) metric.Meter
	Shutdown(ctx context.Context) error
}

type Config struct {
	Enabled          bool
	ServiceName      string
	ServiceVersion   string
	Environment      string
	OTLPEndpoint     string
	OTLPSecure       bool
	TraceSampleRatio float64       // clamped to [0, 1]
	MetricsInterval  time.Duration // defaults to one minute
	LogLevel         string        // slog level name, defaults to INFO
	MaskFields       []string
}

// New installs structured logging and, when enabled, OTLP exporters for
// traces, metrics and logs. A disabled config yields noop providers.
func New(ctx context.Context, cfg *Config) (Instrumentation, error) {
	if cfg == nil {
		return NewNoop(), nil
	}
	if !cfg.Enabled {
		initLogging(cfg, nil)
		return NewNoop(), nil
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		attribute.String("env", cfg.Environment),
	))
	if err != nil {
		return nil, fmt.Errorf("instrument: resource: %w", err)
	}

	exp, err := newExporters(ctx, cfg)
	if err != nil {
		return nil, err
	}

	interval := cfg.MetricsInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ratio := min(max(cfg.TraceSampleRatio, 0), 1)

	o := &otelInstrumentation{
		tp: sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
			sdktrace.WithBatcher(exp.trace),
		),
		mp: sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp.metric, sdkmetric.WithInterval(interval))),
		),
		lp: sdklog.NewLoggerProvider(
			sdklog.WithResource(res),
			sdklog.WithProcessor(sdklog.NewBatchProcessor(exp.log)),
		),
	}
	initLogging(cfg, o.lp)

	return o, nil
}

type exporters struct {
	trace  sdktrace.SpanExporter
	metric sdkmetric.Exporter
	log    sdklog.Exporter
}

func newExporters(ctx context.Context, cfg *Config) (exporters, error) {
	traceOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
	metricOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint)}
	logOpts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(cfg.OTLPEndpoint)}
	if !cfg.OTLPSecure {
		traceOpts = append(traceOpts, otlptracegrpc.WithInsecure())
		metricOpts = append(metricOpts, otlpmetricgrpc.WithInsecure())
		logOpts = append(logOpts, otlploggrpc.WithInsecure())
	}

	var exp exporters
	var err error
	if exp.trace, err = otlptracegrpc.New(ctx, traceOpts...); err != nil {
		return exp, fmt.Errorf("instrument: trace exporter: %w", err)
	}
	if exp.metric, err = otlpmetricgrpc.New(ctx, metricOpts...); err != nil {
		return exp, fmt.Errorf("instrument: metric exporter: %w", err)
	}
	if exp.log, err = otlploggrpc.New(ctx, logOpts...); err != nil {
		return exp, fmt.Errorf("instrument: log exporter: %w", err)
	}
	return exp, nil
}

type otelInstrumentation struct {
	tp *sdktrace.TracerProvider
	mp *sdkmetric.MeterProvider
	lp *sdklog.LoggerProvider
}

func (o *otelInstrumentation) Tracer(name string) trace.Tracer { return o.tp.Tracer(name) }
func (o *otelInstrumentation) Meter(name string) metric.Meter { return o.mp.Meter(name) }

// Shutdown flushes pending spans, metrics and log records.
func (o *otelInstrumentation) Shutdown(ctx context.Context) error {
	return errors.Join(o.tp.Shutdown(ctx), o.mp.Shutdown(ctx), o.lp.Shutdown(ctx))
}

// NewNoop returns providers that record nothing. Tests use it.
func NewNoop() Instrumentation {
	return noopInstrumentation{}
}

type noopInstrumentation struct{}

func (noopInstrumentation) Tracer(name string) trace.Tracer {
	return tracenoop.NewTracerProvider().Tracer(name)
}

func (noopInstrumentation) Meter(name string) metric.Meter {
	return metricnoop.NewMeterProvider().Meter(name)
}

func (noopInstrumentation) Shutdown(context.Context) error { return nil }
