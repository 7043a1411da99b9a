// Package web3 performs read-only contract calls through the JSON-RPC
// endpoint each Blockscout instance exposes at /api/eth-rpc.
package web3

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	mcperrors "github.com/ajitpratap0/blockscout-mcp-go/pkg/errors"
	"github.com/ajitpratap0/blockscout-mcp-go/pkg/observability"
)

// ServiceRPC labels JSON-RPC traffic in errors and metrics
const ServiceRPC = "rpc"

// URLResolver maps a chain id to its explorer base URL
type URLResolver interface {
	ExplorerURL(ctx context.Context, chainID string) (string, error)
}

// PoolOptions configures a Pool
type PoolOptions struct {
	Timeout   time.Duration
	UserAgent string
	Metrics   observability.MetricsProvider
}

// Pool keeps one RPC client per chain
type Pool struct {
	resolver  URLResolver
	timeout   time.Duration
	userAgent string
	metrics   observability.MetricsProvider
	http      *http.Client

	mu      sync.Mutex
	clients map[string]*chainClient
}

type chainClient struct {
	url    string
	client *ethclient.Client
}

// NewPool creates a Pool resolving RPC endpoints through resolver
func NewPool(resolver URLResolver, opts PoolOptions) *Pool {
	metrics := opts.Metrics
	if metrics == nil {
		metrics = observability.NoopMetrics()
	}
	return &Pool{
		resolver:  resolver,
		timeout:   opts.Timeout,
		userAgent: opts.UserAgent,
		metrics:   metrics,
		http:      &http.Client{},
		clients:   make(map[string]*chainClient),
	}
}

// RPCURL returns the JSON-RPC endpoint of chainID's explorer
func (p *Pool) RPCURL(ctx context.Context, chainID string) (string, error) {
	base, err := p.resolver.ExplorerURL(ctx, chainID)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(base, "/") + "/api/eth-rpc", nil
}

func (p *Pool) client(ctx context.Context, chainID string) (*chainClient, error) {
	endpoint, err := p.RPCURL(ctx, chainID)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[chainID]; ok && c.url == endpoint {
		return c, nil
	}

	opts := []rpc.ClientOption{rpc.WithHTTPClient(p.http)}
	if p.userAgent != "" {
		opts = append(opts, rpc.WithHeader("User-Agent", p.userAgent))
	}
	rc, err := rpc.DialOptions(ctx, endpoint, opts...)
	if err != nil {
		return nil, mcperrors.UpstreamError(ServiceRPC, endpoint, 0, "", err)
	}
	if old, ok := p.clients[chainID]; ok {
		old.client.Close()
	}
	c := &chainClient{url: endpoint, client: ethclient.NewClient(rc)}
	p.clients[chainID] = c
	return c, nil
}

// Close releases every RPC client
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, c := range p.clients {
		c.client.Close()
		delete(p.clients, id)
	}
}
