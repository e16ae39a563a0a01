// Package observability wires OpenTelemetry tracing and metrics for the
// governance pipeline.
//
// A disabled Provider is fully usable: spans and instruments fall back to the
// global (no-op unless configured) providers.
package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/Mindburn-Labs/tearframe"

// Config configures the OpenTelemetry providers.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string  // gRPC, e.g. "localhost:4317"
	SampleRate     float64 // 0.0 to 1.0
	BatchTimeout   time.Duration
	Enabled        bool
	Insecure       bool
}

// DefaultConfig returns telemetry disabled with local-collector defaults.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "tearframe",
		ServiceVersion: "0.1.0",
		Environment:    "development",
		OTLPEndpoint:   "localhost:4317",
		SampleRate:     1.0,
		BatchTimeout:   5 * time.Second,
		Enabled:        false,
		Insecure:       true,
	}
}

// Provider owns the trace and metric providers plus the pipeline instruments.
type Provider struct {
	config         *Config
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	shutdowns      []func(context.Context) error
	tracer         trace.Tracer
	meter          metric.Meter
	logger         *slog.Logger

	runCounter   metric.Int64Counter
	pauseCounter metric.Int64Counter
	durationHist metric.Float64Histogram
	activeRuns   metric.Int64UpDownCounter
	psiHistogram metric.Float64Histogram
}

// New creates a provider exporting over OTLP/gRPC when config.Enabled.
func New(ctx context.Context, config *Config) (*Provider, error) {
	if config == nil {
		config = DefaultConfig()
	}
	logger := slog.Default().With("component", "observability")

	if !config.Enabled {
		logger.DebugContext(ctx, "observability disabled")
		return newProvider(config, otel.GetTracerProvider(), otel.GetMeterProvider(), logger)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
			semconv.DeploymentEnvironment(config.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp, err := newTracerProvider(ctx, config, res)
	if err != nil {
		return nil, fmt.Errorf("failed to init trace provider: %w", err)
	}
	mp, err := newMeterProvider(ctx, config, res)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("failed to init metric provider: %w", err)
	}

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	p, err := newProvider(config, tp, mp, logger)
	if err != nil {
		return nil, err
	}
	p.shutdowns = append(p.shutdowns, tp.Shutdown, mp.Shutdown)

	logger.InfoContext(ctx, "observability initialized",
		"service", config.ServiceName,
		"environment", config.Environment,
		"endpoint", config.OTLPEndpoint,
		"sample_rate", config.SampleRate,
	)
	return p, nil
}

// NewWithProviders builds a Provider on caller-owned providers, as tests do
// with an in-memory span recorder and manual metric reader.
func NewWithProviders(tp trace.TracerProvider, mp metric.MeterProvider) (*Provider, error) {
	return newProvider(DefaultConfig(), tp, mp, slog.Default().With("component", "observability"))
}

func newProvider(config *Config, tp trace.TracerProvider, mp metric.MeterProvider, logger *slog.Logger) (*Provider, error) {
	p := &Provider{
		config:         config,
		tracerProvider: tp,
		meterProvider:  mp,
		logger:         logger,
		tracer:         tp.Tracer(instrumentationName, trace.WithInstrumentationVersion(config.ServiceVersion)),
		meter:          mp.Meter(instrumentationName, metric.WithInstrumentationVersion(config.ServiceVersion)),
	}
	if err := p.initInstruments(); err != nil {
		return nil, fmt.Errorf("failed to init instruments: %w", err)
	}
	return p, nil
}

func newTracerProvider(ctx context.Context, config *Config, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(config.OTLPEndpoint)}
	if config.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	var sampler sdktrace.Sampler
	switch {
	case config.SampleRate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	case config.SampleRate <= 0.0:
		sampler = sdktrace.NeverSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(config.SampleRate)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(config.BatchTimeout)),
		sdktrace.WithSampler(sampler),
	), nil
}

func newMeterProvider(ctx context.Context, config *Config, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(config.OTLPEndpoint)}
	if config.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(15*time.Second))),
	), nil
}

func (p *Provider) initInstruments() error {
	var err error

	p.runCounter, err = p.meter.Int64Counter("tearframe.runs.total",
		metric.WithDescription("Orchestrator runs by terminal status"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return err
	}

	p.pauseCounter, err = p.meter.Int64Counter("tearframe.pauses.total",
		metric.WithDescription("Governance pauses by kind"),
		metric.WithUnit("{pause}"),
	)
	if err != nil {
		return err
	}

	p.durationHist, err = p.meter.Float64Histogram("tearframe.run.duration",
		metric.WithDescription("Orchestrator run duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5),
	)
	if err != nil {
		return err
	}

	p.activeRuns, err = p.meter.Int64UpDownCounter("tearframe.runs.active",
		metric.WithDescription("Orchestrator runs in flight"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return err
	}

	p.psiHistogram, err = p.meter.Float64Histogram("tearframe.psi",
		metric.WithDescription("Composite score of scored drafts"),
		metric.WithExplicitBucketBoundaries(0.5, 0.9, 0.95, 0.97, 1.0, 1.25, 1.5, 2.0),
	)
	return err
}

// Shutdown flushes and stops providers created by New.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range p.shutdowns {
		if err := fn(ctx); err != nil {
			p.logger.ErrorContext(ctx, "failed to shutdown telemetry provider", "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *Provider) Tracer() trace.Tracer { return p.tracer }

func (p *Provider) Meter() metric.Meter { return p.meter }

// StartSpan starts a new internal span.
func (p *Provider) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// RecordOutcome counts a finished run by status.
func (p *Provider) RecordOutcome(ctx context.Context, status string) {
	p.runCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordPause counts a governance pause by kind.
func (p *Provider) RecordPause(ctx context.Context, kind string) {
	p.pauseCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordScore records a composite score.
func (p *Provider) RecordScore(ctx context.Context, score float64) {
	p.psiHistogram.Record(ctx, score)
}

// TrackRun starts the run span and returns the func that ends it. The end
// func records the error, if any, on the span.
func (p *Provider) TrackRun(ctx context.Context, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := p.StartSpan(ctx, "tearframe.run", attrs...)
	p.activeRuns.Add(ctx, 1)

	return ctx, func(err error) {
		p.activeRuns.Add(ctx, -1)
		p.durationHist.Record(ctx, time.Since(start).Seconds())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}
