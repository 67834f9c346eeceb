package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// TraceConfig configures OpenTelemetry export.
type TraceConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	// Endpoint is the OTLP gRPC collector address. Empty disables export.
	Endpoint string
	// SamplingRate is the fraction of traces recorded. Zero means 1.0.
	SamplingRate float64
	Attributes   map[string]string
	Insecure     bool
}

// Tracer starts spans for the orchestrator, agent, backends and tools.
// A nil *Tracer is valid and produces no-op spans.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer configures the global tracer provider and returns a Tracer plus
// its shutdown function. Without an endpoint, or if the exporter cannot be
// created, the returned tracer is a no-op.
func NewTracer(cfg TraceConfig) (*Tracer, func(context.Context) error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "pathfinder"
	}
	noop := func(context.Context) error { return nil }
	if cfg.Endpoint == "" {
		return &Tracer{tracer: otel.Tracer(cfg.ServiceName)}, noop
	}
	if cfg.SamplingRate == 0 {
		cfg.SamplingRate = 1.0
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptrace.New(context.Background(), otlptracegrpc.NewClient(opts...))
	if err != nil {
		return &Tracer{tracer: otel.Tracer(cfg.ServiceName)}, noop
	}

	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	}
	if cfg.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(cfg.Environment))
	}
	for k, v := range cfg.Attributes {
		attrs = append(attrs, attribute.String(k, v))
	}
	res, err := resource.New(context.Background(), resource.WithAttributes(attrs...))
	if err != nil {
		res = resource.Default()
	}

	var sampler sdktrace.Sampler
	switch {
	case cfg.SamplingRate >= 1:
		sampler = sdktrace.AlwaysSample()
	case cfg.SamplingRate < 0:
		sampler = sdktrace.NeverSample()
	default:
		sampler = sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SamplingRate))
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Tracer{tracer: provider.Tracer(cfg.ServiceName)}, provider.Shutdown
}

// Start begins a span. It is safe on a nil receiver.
func (t *Tracer) Start(ctx context.Context, name string, kind trace.SpanKind, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tr := otel.Tracer("pathfinder")
	if t != nil && t.tracer != nil {
		tr = t.tracer
	}
	return tr.Start(ctx, name, trace.WithSpanKind(kind), trace.WithAttributes(attrs...))
}

// TraceResolve starts the root span for one query.
func (t *Tracer) TraceResolve(ctx context.Context, path, backend string) (context.Context, trace.Span) {
	return t.Start(ctx, "orchestrator.resolve", trace.SpanKindServer,
		attribute.String("pathfinder.dispatch_path", path),
		attribute.String("pathfinder.backend", backend),
	)
}

// TraceBackend starts a client span around a backend completion.
func (t *Tracer) TraceBackend(ctx context.Context, backend, kind, model string) (context.Context, trace.Span) {
	return t.Start(ctx, "backend.complete", trace.SpanKindClient,
		attribute.String("llm.backend", backend),
		attribute.String("llm.provider", kind),
		attribute.String("llm.model", model),
	)
}

// TraceAgent starts the span covering one agent loop run.
func (t *Tracer) TraceAgent(ctx context.Context, maxIterations int) (context.Context, trace.Span) {
	return t.Start(ctx, "agent.run", trace.SpanKindInternal,
		attribute.Int("agent.max_iterations", maxIterations),
	)
}

// TraceTool starts a span around one tool invocation.
func (t *Tracer) TraceTool(ctx context.Context, tool string) (context.Context, trace.Span) {
	return t.Start(ctx, "tool.execute", trace.SpanKindInternal,
		attribute.String("tool.name", tool),
	)
}

// TraceSearch starts a span around the aggregator.
func (t *Tracer) TraceSearch(ctx context.Context, query string) (context.Context, trace.Span) {
	return t.Start(ctx, "search.aggregate", trace.SpanKindInternal,
		attribute.Int("search.query_length", len(query)),
	)
}

// RecordError marks the span as failed.
func RecordError(span trace.Span, err error) {
	if err == nil || span == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// GetTraceID returns the active trace id, or "".
func GetTraceID(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}
