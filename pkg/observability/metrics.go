package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsConfig configures the metrics provider
type MetricsConfig struct {
	ServiceName    string
	ServiceVersion string

	Namespace        string    // Prometheus namespace (default: blockscout_mcp)
	HistogramBuckets []float64 // latency buckets in milliseconds

	// Registry receives the collectors. A fresh registry is created when nil,
	// which keeps parallel servers and tests isolated.
	Registry *prometheus.Registry
}

// MetricsProvider records server and upstream activity
type MetricsProvider interface {
	// RecordRequest records an incoming MCP method
	RecordRequest(ctx context.Context, method, status string, duration time.Duration)
	RecordToolCall(ctx context.Context, tool, status string, duration time.Duration)
	RecordUpstreamRequest(ctx context.Context, service, status string, duration time.Duration)
	RecordSizeGuardDenial(ctx context.Context, channel string)
	RecordCacheLookup(ctx context.Context, cache string, hit bool)
	RecordActiveSessions(ctx context.Context, delta int)

	// Handler serves the Prometheus exposition format
	Handler() http.Handler
}

// PrometheusMetricsProvider implements MetricsProvider using Prometheus
type PrometheusMetricsProvider struct {
	config   MetricsConfig
	registry *prometheus.Registry

	requestDuration  *prometheus.HistogramVec
	requestTotal     *prometheus.CounterVec
	toolCallDuration *prometheus.HistogramVec
	toolCallTotal    *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	upstreamTotal    *prometheus.CounterVec
	sizeGuardDenials *prometheus.CounterVec
	cacheLookups     *prometheus.CounterVec
	activeSessions   prometheus.Gauge
}

// NewMetricsProvider creates a Prometheus-backed provider
func NewMetricsProvider(config MetricsConfig) (*PrometheusMetricsProvider, error) {
	if config.Namespace == "" {
		config.Namespace = "blockscout_mcp"
	}
	if config.HistogramBuckets == nil {
		config.HistogramBuckets = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000}
	}
	if config.Registry == nil {
		config.Registry = prometheus.NewRegistry()
	}

	p := &PrometheusMetricsProvider{config: config, registry: config.Registry}
	p.initializeMetrics()

	if err := p.registerMetrics(); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	return p, nil
}

func (p *PrometheusMetricsProvider) initializeMetrics() {
	constLabels := prometheus.Labels{}
	if p.config.ServiceVersion != "" {
		constLabels["version"] = p.config.ServiceVersion
	}
	ns := p.config.Namespace

	p.requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   ns,
		Name:        "request_duration_milliseconds",
		Help:        "Duration of MCP requests in milliseconds",
		Buckets:     p.config.HistogramBuckets,
		ConstLabels: constLabels,
	}, []string{"method", "status"})

	p.requestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   ns,
		Name:        "request_total",
		Help:        "Total number of MCP requests",
		ConstLabels: constLabels,
	}, []string{"method", "status"})

	p.toolCallDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   ns,
		Name:        "tool_call_duration_milliseconds",
		Help:        "Duration of tool calls in milliseconds",
		Buckets:     p.config.HistogramBuckets,
		ConstLabels: constLabels,
	}, []string{"tool", "status"})

	p.toolCallTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   ns,
		Name:        "tool_call_total",
		Help:        "Total number of tool calls",
		ConstLabels: constLabels,
	}, []string{"tool", "status"})

	p.upstreamDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   ns,
		Name:        "upstream_request_duration_milliseconds",
		Help:        "Duration of upstream HTTP and RPC requests in milliseconds",
		Buckets:     p.config.HistogramBuckets,
		ConstLabels: constLabels,
	}, []string{"service", "status"})

	p.upstreamTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   ns,
		Name:        "upstream_request_total",
		Help:        "Total number of upstream requests",
		ConstLabels: constLabels,
	}, []string{"service", "status"})

	p.sizeGuardDenials = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   ns,
		Name:        "response_size_denials_total",
		Help:        "Responses refused for exceeding the size limit",
		ConstLabels: constLabels,
	}, []string{"channel"})

	p.cacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   ns,
		Name:        "cache_lookups_total",
		Help:        "Cache lookups by cache and result",
		ConstLabels: constLabels,
	}, []string{"cache", "result"})

	p.activeSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   ns,
		Name:        "active_sessions",
		Help:        "Number of open streamable HTTP sessions",
		ConstLabels: constLabels,
	})
}

func (p *PrometheusMetricsProvider) registerMetrics() error {
	toRegister := []prometheus.Collector{
		p.requestDuration,
		p.requestTotal,
		p.toolCallDuration,
		p.toolCallTotal,
		p.upstreamDuration,
		p.upstreamTotal,
		p.sizeGuardDenials,
		p.cacheLookups,
		p.activeSessions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}

	for _, c := range toRegister {
		if err := p.registry.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}

func (p *PrometheusMetricsProvider) RecordRequest(_ context.Context, method, status string, duration time.Duration) {
	p.requestDuration.WithLabelValues(method, status).Observe(float64(duration.Milliseconds()))
	p.requestTotal.WithLabelValues(method, status).Inc()
}

func (p *PrometheusMetricsProvider) RecordToolCall(_ context.Context, tool, status string, duration time.Duration) {
	p.toolCallDuration.WithLabelValues(tool, status).Observe(float64(duration.Milliseconds()))
	p.toolCallTotal.WithLabelValues(tool, status).Inc()
}

func (p *PrometheusMetricsProvider) RecordUpstreamRequest(_ context.Context, service, status string, duration time.Duration) {
	p.upstreamDuration.WithLabelValues(service, status).Observe(float64(duration.Milliseconds()))
	p.upstreamTotal.WithLabelValues(service, status).Inc()
}

func (p *PrometheusMetricsProvider) RecordSizeGuardDenial(_ context.Context, channel string) {
	p.sizeGuardDenials.WithLabelValues(channel).Inc()
}

func (p *PrometheusMetricsProvider) RecordCacheLookup(_ context.Context, cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	p.cacheLookups.WithLabelValues(cache, result).Inc()
}

func (p *PrometheusMetricsProvider) RecordActiveSessions(_ context.Context, delta int) {
	p.activeSessions.Add(float64(delta))
}

// Handler serves the provider's registry
func (p *PrometheusMetricsProvider) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// Registry exposes the underlying registry
func (p *PrometheusMetricsProvider) Registry() *prometheus.Registry {
	return p.registry
}

type noopMetrics struct{}

// NoopMetrics returns a provider that discards everything
func NoopMetrics() MetricsProvider { return noopMetrics{} }

func (noopMetrics) RecordRequest(context.Context, string, string, time.Duration)         {}
func (noopMetrics) RecordToolCall(context.Context, string, string, time.Duration)        {}
func (noopMetrics) RecordUpstreamRequest(context.Context, string, string, time.Duration) {}
func (noopMetrics) RecordSizeGuardDenial(context.Context, string)                        {}
func (noopMetrics) RecordCacheLookup(context.Context, string, bool)                      {}
func (noopMetrics) RecordActiveSessions(context.Context, int)                            {}

func (noopMetrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "metrics disabled", http.StatusNotFound)
	})
}
