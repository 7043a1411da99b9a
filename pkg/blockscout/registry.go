package blockscout

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ajitpratap0/blockscout-mcp-go/pkg/cache"
	mcperrors "github.com/ajitpratap0/blockscout-mcp-go/pkg/errors"
)

// Chain is one entry of the Chainscout registry
type Chain struct {
	ChainID                string      `json:"chain_id"`
	Name                   string      `json:"name"`
	IsTestnet              bool        `json:"is_testnet"`
	NativeCurrency         string      `json:"native_currency,omitempty"`
	Ecosystem              interface{} `json:"ecosystem,omitempty"`
	SettlementLayerChainID string      `json:"settlement_layer_chain_id,omitempty"`
	ExplorerURL            string      `json:"-"`
}

// Registry resolves chain ids to Blockscout explorer URLs through
// Chainscout. Lookups are cached per chain and concurrent misses share one
// request.
type Registry struct {
	client  *Client
	baseURL string
	timeout time.Duration

	urls   *cache.TTL[string]
	chains *cache.TTL[[]Chain]
}

// NewRegistry creates a Registry backed by the Chainscout service at baseURL
func NewRegistry(client *Client, baseURL string, timeout, ttl time.Duration, recorder cache.Recorder) *Registry {
	return &Registry{
		client:  client,
		baseURL: baseURL,
		timeout: timeout,
		urls:    cache.NewTTL[string]("chain_urls", ttl, recorder),
		chains:  cache.NewTTL[[]Chain]("chains", ttl, recorder),
	}
}

// ExplorerURL returns the Blockscout base URL for chainID, without a
// trailing slash
func (r *Registry) ExplorerURL(ctx context.Context, chainID string) (string, error) {
	chainID = strings.TrimSpace(chainID)
	if chainID == "" {
		return "", mcperrors.MissingParameter("chain_id")
	}
	if _, err := strconv.ParseUint(chainID, 10, 64); err != nil {
		return "", mcperrors.InvalidParameter("chain_id", chainID, "must be a decimal chain id")
	}

	return r.urls.Get(ctx, chainID, func(ctx context.Context) (string, error) {
		obj, err := r.client.GetObject(ctx, Request{
			Service: ServiceChainscout,
			BaseURL: r.baseURL,
			Path:    "/api/chains/" + url.PathEscape(chainID),
			Timeout: r.timeout,
		})
		if err != nil {
			if status, ok := mcperrors.UpstreamStatus(err); ok && status == 404 {
				return "", mcperrors.UpstreamUnavailable(ServiceChainscout,
					fmt.Sprintf("chain %s is not known to Chainscout", chainID))
			}
			return "", err
		}
		explorer := blockscoutExplorer(obj)
		if explorer == "" {
			return "", mcperrors.UpstreamUnavailable(ServiceExplorer,
				fmt.Sprintf("no Blockscout explorer is registered for chain %s", chainID))
		}
		return explorer, nil
	})
}

// Chains lists every chain that has a Blockscout-hosted explorer, sorted
// by name
func (r *Registry) Chains(ctx context.Context) ([]Chain, error) {
	return r.chains.Get(ctx, "all", func(ctx context.Context) ([]Chain, error) {
		obj, err := r.client.GetObject(ctx, Request{
			Service: ServiceChainscout,
			BaseURL: r.baseURL,
			Path:    "/api/chains",
			Timeout: r.timeout,
		})
		if err != nil {
			return nil, err
		}

		chains := make([]Chain, 0, len(obj))
		for id, raw := range obj {
			entry, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			explorer := blockscoutExplorer(entry)
			if explorer == "" {
				continue
			}
			chain := Chain{
				ChainID:     id,
				Name:        stringField(entry, "name"),
				IsTestnet:   entry["isTestnet"] == true,
				Ecosystem:   entry["ecosystem"],
				ExplorerURL: explorer,
			}
			chain.NativeCurrency = stringField(entry, "native_currency")
			chain.SettlementLayerChainID = stringField(entry, "settlementLayerChainId")
			chains = append(chains, chain)
			r.urls.Set(id, explorer)
		}
		sort.Slice(chains, func(i, j int) bool {
			if chains[i].Name == chains[j].Name {
				return chains[i].ChainID < chains[j].ChainID
			}
			return chains[i].Name < chains[j].Name
		})
		return chains, nil
	})
}

func blockscoutExplorer(entry map[string]interface{}) string {
	explorers, _ := entry["explorers"].([]interface{})
	for _, raw := range explorers {
		e, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		if strings.EqualFold(stringField(e, "hostedBy"), "blockscout") {
			if u := strings.TrimRight(stringField(e, "url"), "/"); u != "" {
				return u
			}
		}
	}
	return ""
}

func stringField(obj map[string]interface{}, key string) string {
	switch v := obj[key].(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return ""
	}
}
