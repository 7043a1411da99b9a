package observability

import (
	"context"
	"errors"
	"time"

	mcperrors "github.com/ajitpratap0/blockscout-mcp-go/pkg/errors"
)

// StatusOf reduces err to a low-cardinality metric label
func StatusOf(err error) string {
	if err == nil {
		return "success"
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return string(mcperrors.CategoryCancelled)
	}
	if mcpErr, ok := mcperrors.AsMCPError(err); ok {
		return string(mcpErr.Category())
	}
	return "error"
}

// ObserveToolCall runs fn inside a tool span and records its duration
func ObserveToolCall(ctx context.Context, metrics MetricsProvider, tool string, fn func(context.Context) error) error {
	ctx, span := StartToolSpan(ctx, tool)
	start := time.Now()

	err := fn(ctx)

	metrics.RecordToolCall(ctx, tool, StatusOf(err), time.Since(start))
	EndSpan(span, err)
	return err
}

// ObserveUpstream runs fn inside an upstream client span and records its
// duration against service
func ObserveUpstream(ctx context.Context, metrics MetricsProvider, service, method, url string, fn func(context.Context) error) error {
	ctx, span := StartUpstreamSpan(ctx, service, method, url)
	start := time.Now()

	err := fn(ctx)

	metrics.RecordUpstreamRequest(ctx, service, StatusOf(err), time.Since(start))
	EndSpan(span, err)
	return err
}
