// Package blockscout talks to the upstream HTTP services: Blockscout
// explorer instances, the Chainscout chain registry, the BENS name service
// and the metadata service.
package blockscout

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	mcperrors "github.com/ajitpratap0/blockscout-mcp-go/pkg/errors"
	"github.com/ajitpratap0/blockscout-mcp-go/pkg/logging"
	"github.com/ajitpratap0/blockscout-mcp-go/pkg/observability"
	"github.com/ajitpratap0/blockscout-mcp-go/pkg/utils"
)

// Upstream service names, used in errors and metric labels
const (
	ServiceExplorer   = "blockscout"
	ServiceChainscout = "chainscout"
	ServiceBENS       = "bens"
	ServiceMetadata   = "metadata"
)

const (
	maxBodyBytes     = 32 << 20
	maxErrorBodySize = 1000
)

// ClientOptions configures a Client
type ClientOptions struct {
	APIKey        string
	UserAgent     string
	MaxRetries    int
	RetryInterval time.Duration

	// RequestsPerSecond of zero disables throttling
	RequestsPerSecond float64
	Burst             int

	HTTPClient *http.Client
	Metrics    observability.MetricsProvider
	Logger     logging.Logger
}

// Client performs GET requests with throttling, retries and tracing
type Client struct {
	http      *http.Client
	limiter   *rate.Limiter
	apiKey    string
	userAgent string

	maxRetries    int
	retryInterval time.Duration

	metrics observability.MetricsProvider
	logger  logging.Logger
}

// Request describes one upstream GET
type Request struct {
	Service string
	BaseURL string
	Path    string
	Query   url.Values

	// Timeout bounds the whole call including retries, zero for none
	Timeout time.Duration

	// WithAPIKey appends the explorer API key as the apikey parameter
	WithAPIKey bool
}

// URL renders the request target
func (r Request) URL() string {
	u := strings.TrimRight(r.BaseURL, "/") + "/" + strings.TrimLeft(r.Path, "/")
	if len(r.Query) > 0 {
		u += "?" + r.Query.Encode()
	}
	return u
}

// NewClient creates a Client
func NewClient(opts ClientOptions) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = observability.NoopMetrics()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.L()
	}
	retryInterval := opts.RetryInterval
	if retryInterval <= 0 {
		retryInterval = 500 * time.Millisecond
	}
	return &Client{
		http:          httpClient,
		limiter:       limiter,
		apiKey:        opts.APIKey,
		userAgent:     opts.UserAgent,
		maxRetries:    opts.MaxRetries,
		retryInterval: retryInterval,
		metrics:       metrics,
		logger:        logger.WithFields(logging.String("component", "upstream")),
	}
}

// Get performs req and returns the raw response body. Transport failures,
// 429 and 5xx responses are retried with exponential backoff; everything
// else fails immediately with an upstream error carrying the status.
func (c *Client) Get(ctx context.Context, req Request) ([]byte, error) {
	if req.WithAPIKey && c.apiKey != "" {
		q := url.Values{}
		for k, v := range req.Query {
			q[k] = v
		}
		q.Set("apikey", c.apiKey)
		req.Query = q
	}
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryInterval
	bo.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(c.maxRetries)), ctx)

	var body []byte
	op := func() error {
		b, err := c.once(ctx, req)
		if err != nil {
			if mcperrors.IsRetryable(err) && ctx.Err() == nil {
				return err
			}
			return backoff.Permanent(err)
		}
		body = b
		return nil
	}
	notify := func(err error, next time.Duration) {
		c.logger.WithError(err).Warn("retrying upstream request",
			logging.String("service", req.Service),
			logging.String("path", req.Path),
			logging.Duration("backoff", next),
		)
	}

	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		if _, ok := mcperrors.AsMCPError(err); ok {
			return nil, err
		}
		if errors.Is(err, context.Canceled) {
			return nil, mcperrors.OperationCanceled(req.Service + " request")
		}
		return nil, mcperrors.UpstreamError(req.Service, redact(req.URL()), 0, "", err)
	}
	return body, nil
}

func (c *Client) once(ctx context.Context, req Request) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, mcperrors.OperationCanceled(fmt.Sprintf("%s request: %v", req.Service, err))
		}
	}

	target := req.URL()
	var body []byte
	err := observability.ObserveUpstream(ctx, c.metrics, req.Service, http.MethodGet, redact(target), func(ctx context.Context) error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return mcperrors.InvalidParameter("endpoint", req.Path, err.Error())
		}
		httpReq.Header.Set("Accept", "application/json")
		if c.userAgent != "" {
			httpReq.Header.Set("User-Agent", c.userAgent)
		}

		start := time.Now()
		resp, err := c.http.Do(httpReq)
		if err != nil {
			if errors.Is(ctx.Err(), context.Canceled) {
				return mcperrors.OperationCanceled(req.Service + " request")
			}
			return mcperrors.UpstreamError(req.Service, redact(target), 0, "", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return mcperrors.UpstreamError(req.Service, redact(target), 0, "", err)
		}
		c.logger.Debug("upstream request completed",
			logging.String("service", req.Service),
			logging.String("path", req.Path),
			logging.Int("status", resp.StatusCode),
			logging.Duration("elapsed", time.Since(start)),
		)

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return mcperrors.UpstreamError(req.Service, redact(target), resp.StatusCode, truncateBody(data), nil)
		}
		body = data
		return nil
	})
	return body, err
}

// GetJSON performs req and decodes the body. Numbers are kept as
// json.Number so large integers survive.
func (c *Client) GetJSON(ctx context.Context, req Request) (interface{}, error) {
	body, err := c.Get(ctx, req)
	if err != nil {
		return nil, err
	}
	v, err := utils.DecodeJSON(body)
	if err != nil {
		return nil, mcperrors.UpstreamError(req.Service, redact(req.URL()), 0, truncateBody(body), err)
	}
	return v, nil
}

// GetObject is GetJSON for endpoints returning a JSON object
func (c *Client) GetObject(ctx context.Context, req Request) (map[string]interface{}, error) {
	v, err := c.GetJSON(ctx, req)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil, mcperrors.UpstreamError(req.Service, redact(req.URL()), 0, "",
			fmt.Errorf("expected a JSON object, got %T", v))
	}
	return obj, nil
}

func truncateBody(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > maxErrorBodySize {
		return s[:maxErrorBodySize] + "..."
	}
	return s
}

// redact strips the api key from URLs that end up in errors and spans
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	if q.Has("apikey") {
		q.Set("apikey", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
