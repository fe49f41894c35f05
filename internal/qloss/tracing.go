package qloss

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// TracingConfig controls whether and how loss-recovery operations are
// traced. There is no HTTP header propagation here since this core has no
// HTTP surface (see DESIGN.md).
type TracingConfig struct {
	Enable       bool    `yaml:"Enable"`
	ServiceName  string  `yaml:"ServiceName"`
	Endpoint     string  `yaml:"Endpoint"`
	Exporter     string  `yaml:"Exporter"` // "jaeger" or "zipkin"
	SampleRate   float64 `yaml:"SampleRate"`
	Environment  string  `yaml:"Environment"`
}

// tracer wraps an OpenTelemetry TracerProvider scoped to one Conn's
// lifetime. startSpan opens one span per operation; Conn only shuts the
// tracer down on Close, and HandleAck, detectLost and FirePTO open no spans.
type tracer struct {
	config   TracingConfig
	provider *sdktrace.TracerProvider
	tr       trace.Tracer
	logger   *zap.Logger
}

// newTracer builds a tracer per cfg. When cfg.Enable is false it returns a
// tracer backed by the global no-op provider, so callers never need to
// nil-check before calling its methods.
func newTracer(cfg TracingConfig, logger *zap.Logger) (*tracer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Enable {
		return &tracer{config: cfg, tr: otel.Tracer("qloss"), logger: logger}, nil
	}

	var exp sdktrace.SpanExporter
	var err error
	switch cfg.Exporter {
	case "zipkin":
		exp, err = zipkin.New(cfg.Endpoint)
	default:
		exp, err = jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.Endpoint)))
	}
	if err != nil {
		return nil, fmt.Errorf("create %s exporter: %w", cfg.Exporter, err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceNameKey.String(cfg.ServiceName),
		attribute.String("environment", cfg.Environment),
	))
	if err != nil {
		return nil, fmt.Errorf("merge resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRate)),
	)
	otel.SetTracerProvider(provider)

	return &tracer{
		config:   cfg,
		provider: provider,
		tr:       provider.Tracer("qloss"),
		logger:   logger,
	}, nil
}

// shutdown flushes and stops the underlying provider, if any.
func (t *tracer) shutdown(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

// startSpan begins a span for one loss-recovery operation (e.g.
// "handle_ack", "detect_lost", "pto_fire").
func (t *tracer) startSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.tr.Start(ctx, op, trace.WithAttributes(attrs...))
}

// recordError marks span as failed and attaches err.
func (t *tracer) recordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
