// Package observability wires Prometheus metrics and OpenTelemetry tracing
// into tool calls and upstream requests.
package observability

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/ajitpratap0/blockscout-mcp-go"

// TracingConfig configures OpenTelemetry tracing
type TracingConfig struct {
	ServiceName    string
	ServiceVersion string

	ExporterType ExporterType
	Endpoint     string // OTLP endpoint
	Headers      map[string]string
	Insecure     bool

	SampleRate float64 // 0.0 to 1.0
}

// ExporterType defines the type of trace exporter
type ExporterType string

const (
	ExporterTypeOTLPGRPC ExporterType = "otlp-grpc"
	ExporterTypeOTLPHTTP ExporterType = "otlp-http"
	ExporterTypeNoop     ExporterType = "noop"
)

// TracingProvider owns the SDK tracer provider installed as the otel global
type TracingProvider struct {
	config         TracingConfig
	tracerProvider *sdktrace.TracerProvider
	mu             sync.Mutex
}

// NewTracingProvider creates the provider and installs it globally, so
// StartToolSpan and StartUpstreamSpan pick it up
func NewTracingProvider(config TracingConfig) (*TracingProvider, error) {
	if config.ServiceName == "" {
		config.ServiceName = "blockscout-mcp"
	}
	if config.ServiceVersion == "" {
		config.ServiceVersion = "unknown"
	}
	if config.ExporterType == "" {
		config.ExporterType = ExporterTypeNoop
	}

	exporter, err := createExporter(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(createResource(config)),
		sdktrace.WithSampler(createSampler(config)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &TracingProvider{config: config, tracerProvider: tp}, nil
}

func createResource(config TracingConfig) *resource.Resource {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(config.ServiceName),
		semconv.ServiceVersion(config.ServiceVersion),
	)
}

func createExporter(config TracingConfig) (sdktrace.SpanExporter, error) {
	switch config.ExporterType {
	case ExporterTypeOTLPGRPC:
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(config.Endpoint)}
		if len(config.Headers) > 0 {
			opts = append(opts, otlptracegrpc.WithHeaders(config.Headers))
		}
		if config.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		return otlptrace.New(context.Background(), otlptracegrpc.NewClient(opts...))
	case ExporterTypeOTLPHTTP:
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(config.Endpoint)}
		if len(config.Headers) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(config.Headers))
		}
		if config.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptrace.New(context.Background(), otlptracehttp.NewClient(opts...))
	case ExporterTypeNoop:
		return noopExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported exporter type: %s", config.ExporterType)
	}
}

func createSampler(config TracingConfig) sdktrace.Sampler {
	switch {
	case config.SampleRate >= 1.0:
		return sdktrace.AlwaysSample()
	case config.SampleRate <= 0.0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(config.SampleRate))
	}
}

// Shutdown flushes pending spans
func (tp *TracingProvider) Shutdown(ctx context.Context) error {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	if tp.tracerProvider == nil {
		return nil
	}
	err := tp.tracerProvider.Shutdown(ctx)
	tp.tracerProvider = nil
	return err
}

func tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// StartMethodSpan starts a server span for an MCP method
func StartMethodSpan(ctx context.Context, method string) (context.Context, trace.Span) {
	return tracer().Start(ctx, "mcp."+method,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("mcp.method", method)),
	)
}

// StartToolSpan starts a span around a tool invocation
func StartToolSpan(ctx context.Context, tool string) (context.Context, trace.Span) {
	return tracer().Start(ctx, "tool."+tool,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("mcp.tool", tool)),
	)
}

// StartUpstreamSpan starts a client span for a request to service
func StartUpstreamSpan(ctx context.Context, service, method, url string) (context.Context, trace.Span) {
	return tracer().Start(ctx, service+" "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("upstream.service", service),
			attribute.String("http.method", method),
			attribute.String("http.url", url),
		),
	)
}

// EndSpan records err, if any, and ends span
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

type noopExporter struct{}

func (noopExporter) ExportSpans(context.Context, []sdktrace.ReadOnlySpan) error { return nil }
func (noopExporter) Shutdown(context.Context) error                            { return nil }
