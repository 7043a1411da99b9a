package observability

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	mcperrors "github.com/ajitpratap0/blockscout-mcp-go/pkg/errors"
)

func TestStatusOf(t *testing.T) {
	assert.Equal(t, "success", StatusOf(nil))
	assert.Equal(t, "cancelled", StatusOf(context.Canceled))
	assert.Equal(t, "validation", StatusOf(mcperrors.MissingParameter("x")))
	assert.Equal(t, "upstream", StatusOf(fmt.Errorf("wrap: %w", mcperrors.UpstreamError("bens", "", 500, "", nil))))
	assert.Equal(t, "error", StatusOf(fmt.Errorf("plain")))
}

func TestPrometheusProvider(t *testing.T) {
	p, err := NewMetricsProvider(MetricsConfig{Namespace: "test"})
	require.NoError(t, err)

	ctx := context.Background()
	p.RecordToolCall(ctx, "get_latest_block", "success", 12*time.Millisecond)
	p.RecordToolCall(ctx, "get_latest_block", "success", 8*time.Millisecond)
	p.RecordUpstreamRequest(ctx, "blockscout", "upstream", time.Second)
	p.RecordSizeGuardDenial(ctx, "mcp")
	p.RecordCacheLookup(ctx, "chains", true)
	p.RecordCacheLookup(ctx, "chains", false)
	p.RecordCacheLookup(ctx, "chains", false)
	p.RecordActiveSessions(ctx, 2)
	p.RecordActiveSessions(ctx, -1)

	assert.Equal(t, 2.0, testutil.ToFloat64(p.toolCallTotal.WithLabelValues("get_latest_block", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.upstreamTotal.WithLabelValues("blockscout", "upstream")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.sizeGuardDenials.WithLabelValues("mcp")))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.cacheLookups.WithLabelValues("chains", "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.activeSessions))

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), "test_tool_call_total")
}

func TestProvidersAreIsolated(t *testing.T) {
	_, err := NewMetricsProvider(MetricsConfig{})
	require.NoError(t, err)
	_, err = NewMetricsProvider(MetricsConfig{})
	require.NoError(t, err)
}

func TestObserveToolCallRecordsSpanAndMetric(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	p, err := NewMetricsProvider(MetricsConfig{Namespace: "obs"})
	require.NoError(t, err)

	want := mcperrors.InvalidParameter("hash", "0x1", "bad length")
	got := ObserveToolCall(context.Background(), p, "get_transaction_info", func(ctx context.Context) error {
		return ObserveUpstream(ctx, p, "blockscout", http.MethodGet, "https://example/api", func(context.Context) error {
			return nil
		})
	})
	assert.NoError(t, got)

	got = ObserveToolCall(context.Background(), p, "get_transaction_info", func(context.Context) error { return want })
	assert.Same(t, want, got)

	assert.Equal(t, 1.0, testutil.ToFloat64(p.toolCallTotal.WithLabelValues("get_transaction_info", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.toolCallTotal.WithLabelValues("get_transaction_info", "validation")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.upstreamTotal.WithLabelValues("blockscout", "success")))

	spans := recorder.Ended()
	require.Len(t, spans, 3)
	assert.Equal(t, "blockscout GET", spans[0].Name())
	assert.Equal(t, "tool.get_transaction_info", spans[1].Name())
	assert.Equal(t, spans[1].SpanContext().SpanID(), spans[0].Parent().SpanID())
}

func TestNoopTracingProvider(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	tp, err := NewTracingProvider(TracingConfig{ExporterType: ExporterTypeNoop})
	require.NoError(t, err)
	_, span := StartToolSpan(context.Background(), "ping")
	EndSpan(span, nil)
	require.NoError(t, tp.Shutdown(context.Background()))
	require.NoError(t, tp.Shutdown(context.Background()))

	_, err = NewTracingProvider(TracingConfig{ExporterType: "zipkin"})
	assert.Error(t, err)
}

func TestNoopMetrics(t *testing.T) {
	m := NoopMetrics()
	m.RecordToolCall(context.Background(), "x", "success", time.Second)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
