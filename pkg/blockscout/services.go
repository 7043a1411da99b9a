package blockscout

import (
	"context"
	"net/url"
	"strings"
	"time"

	mcperrors "github.com/ajitpratap0/blockscout-mcp-go/pkg/errors"
)

// Explorer issues requests against the Blockscout instance of a chain
type Explorer struct {
	client   *Client
	registry *Registry
	timeout  time.Duration
}

// NewExplorer creates an Explorer resolving instances through registry
func NewExplorer(client *Client, registry *Registry, timeout time.Duration) *Explorer {
	return &Explorer{client: client, registry: registry, timeout: timeout}
}

// BaseURL returns the explorer base URL for chainID
func (e *Explorer) BaseURL(ctx context.Context, chainID string) (string, error) {
	return e.registry.ExplorerURL(ctx, chainID)
}

func (e *Explorer) request(ctx context.Context, chainID, path string, query url.Values) (Request, error) {
	base, err := e.registry.ExplorerURL(ctx, chainID)
	if err != nil {
		return Request{}, err
	}
	return Request{
		Service:    ServiceExplorer,
		BaseURL:    base,
		Path:       path,
		Query:      query,
		Timeout:    e.timeout,
		WithAPIKey: true,
	}, nil
}

// Get fetches path from the chain's explorer and decodes a JSON object
func (e *Explorer) Get(ctx context.Context, chainID, path string, query url.Values) (map[string]interface{}, error) {
	req, err := e.request(ctx, chainID, path, query)
	if err != nil {
		return nil, err
	}
	return e.client.GetObject(ctx, req)
}

// GetAny fetches path and decodes whatever JSON it returns
func (e *Explorer) GetAny(ctx context.Context, chainID, path string, query url.Values) (interface{}, error) {
	req, err := e.request(ctx, chainID, path, query)
	if err != nil {
		return nil, err
	}
	return e.client.GetJSON(ctx, req)
}

// GetRaw fetches path and returns the undecoded body
func (e *Explorer) GetRaw(ctx context.Context, chainID, path string, query url.Values) ([]byte, error) {
	req, err := e.request(ctx, chainID, path, query)
	if err != nil {
		return nil, err
	}
	return e.client.Get(ctx, req)
}

// BENS resolves ENS names through the Blockscout name service
type BENS struct {
	client  *Client
	baseURL string
	timeout time.Duration
}

func NewBENS(client *Client, baseURL string, timeout time.Duration) *BENS {
	return &BENS{client: client, baseURL: baseURL, timeout: timeout}
}

// Domain looks up name on Ethereum mainnet
func (b *BENS) Domain(ctx context.Context, name string) (map[string]interface{}, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, mcperrors.MissingParameter("name")
	}
	return b.client.GetObject(ctx, Request{
		Service: ServiceBENS,
		BaseURL: b.baseURL,
		Path:    "/api/v1/1/domains/" + url.PathEscape(name),
		Timeout: b.timeout,
	})
}

// Metadata queries the Blockscout metadata service for address tags
type Metadata struct {
	client  *Client
	baseURL string
	timeout time.Duration
}

func NewMetadata(client *Client, baseURL string, timeout time.Duration) *Metadata {
	return &Metadata{client: client, baseURL: baseURL, timeout: timeout}
}

// Address returns public tags and other metadata for address on chainID
func (m *Metadata) Address(ctx context.Context, chainID, address string) (map[string]interface{}, error) {
	return m.client.GetObject(ctx, Request{
		Service: ServiceMetadata,
		BaseURL: m.baseURL,
		Path:    "/api/v1/metadata",
		Query:   url.Values{"addresses": {address}, "chainId": {chainID}},
		Timeout: m.timeout,
	})
}
