package tools

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/blockscout-mcp-go/pkg/blockscout"
	mcperrors "github.com/ajitpratap0/blockscout-mcp-go/pkg/errors"
	"github.com/ajitpratap0/blockscout-mcp-go/pkg/logging"
	"github.com/ajitpratap0/blockscout-mcp-go/pkg/observability"
	"github.com/ajitpratap0/blockscout-mcp-go/pkg/sizeguard"
	"github.com/ajitpratap0/blockscout-mcp-go/pkg/utils"
	"github.com/ajitpratap0/blockscout-mcp-go/pkg/web3"
)

type route func(query url.Values) (string, error)

type request struct {
	Path  string
	Query url.Values
}

// fakeExplorer serves canned JSON per path
type fakeExplorer struct {
	mu       sync.Mutex
	routes   map[string]route
	requests []request
}

func newFakeExplorer() *fakeExplorer {
	return &fakeExplorer{routes: map[string]route{}}
}

func (f *fakeExplorer) handle(path string, r route) *fakeExplorer {
	f.routes[path] = r
	return f
}

func (f *fakeExplorer) static(path, body string) *fakeExplorer {
	return f.handle(path, func(url.Values) (string, error) { return body, nil })
}

func (f *fakeExplorer) BaseURL(_ context.Context, chainID string) (string, error) {
	if chainID == "999999" {
		return "", mcperrors.UpstreamUnavailable("chainscout", "chain 999999 not found")
	}
	return "https://explorer.test", nil
}

func (f *fakeExplorer) GetRaw(_ context.Context, _ string, path string, query url.Values) ([]byte, error) {
	f.mu.Lock()
	f.requests = append(f.requests, request{Path: path, Query: query})
	r, ok := f.routes[path]
	f.mu.Unlock()
	if !ok {
		return nil, mcperrors.UpstreamError("blockscout", path, 404, `{"message":"Not found"}`, nil)
	}
	body, err := r(query)
	if err != nil {
		return nil, err
	}
	return []byte(body), nil
}

func (f *fakeExplorer) Get(ctx context.Context, chainID, path string, query url.Values) (map[string]interface{}, error) {
	raw, err := f.GetRaw(ctx, chainID, path, query)
	if err != nil {
		return nil, err
	}
	v, err := utils.DecodeJSON(raw)
	if err != nil {
		return nil, err
	}
	obj, _ := v.(map[string]interface{})
	return obj, nil
}

func (f *fakeExplorer) requestsTo(prefix string) []request {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []request
	for _, r := range f.requests {
		if strings.HasPrefix(r.Path, prefix) {
			out = append(out, r)
		}
	}
	return out
}

type fakeChains []blockscout.Chain

func (f fakeChains) Chains(context.Context) ([]blockscout.Chain, error) { return f, nil }

type fakeNames map[string]string

func (f fakeNames) Domain(_ context.Context, name string) (map[string]interface{}, error) {
	addr, ok := f[name]
	if !ok {
		return nil, mcperrors.UpstreamError("bens", name, 404, "", nil)
	}
	return map[string]interface{}{"resolved_address": map[string]interface{}{"hash": addr}}, nil
}

type fakeMetadata struct {
	tags map[string]interface{}
	err  error
}

func (f fakeMetadata) Address(context.Context, string, string) (map[string]interface{}, error) {
	return f.tags, f.err
}

type fakeContracts struct {
	got    web3.CallRequest
	result interface{}
}

func (f *fakeContracts) ReadContract(_ context.Context, req web3.CallRequest) (interface{}, error) {
	f.got = req
	return f.result, nil
}

// recordingReporter collects progress notifications
type recordingReporter struct {
	mu       sync.Mutex
	progress []float64
	messages []string
}

func (r *recordingReporter) Progress(_ context.Context, progress, _ float64, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, progress)
	r.messages = append(r.messages, message)
}

func (r *recordingReporter) Info(_ context.Context, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
}

func (r *recordingReporter) snapshot() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]float64(nil), r.progress...)
}

func newToolbox(explorer *fakeExplorer) *Toolbox {
	settings := DefaultSettings()
	settings.ProgressInterval = 0
	return &Toolbox{
		Explorer:  explorer,
		Chains:    fakeChains{{ChainID: "1", Name: "Ethereum"}, {ChainID: "8453", Name: "Base"}},
		Names:     fakeNames{"vitalik.eth": "0xd8dA6BF26964aF9D7eEd9e03E53415D37aA96045"},
		Metadata:  fakeMetadata{},
		Contracts: &fakeContracts{result: "ok"},
		Guard:     sizeguard.New(1000),
		Settings:  settings,
		Version:   "test",
		Logger:    logging.New(logging.Options{Level: logging.ErrorLevel}),
	}
}

func newRegistry(t *testing.T, tb *Toolbox) *Registry {
	t.Helper()
	r := NewRegistry(observability.NoopMetrics())
	require.NoError(t, tb.Register(r))
	return r
}
