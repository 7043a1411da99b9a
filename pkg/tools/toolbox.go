package tools

import (
	"context"
	"net/url"
	"time"

	"github.com/ajitpratap0/blockscout-mcp-go/pkg/blockscout"
	"github.com/ajitpratap0/blockscout-mcp-go/pkg/cache"
	"github.com/ajitpratap0/blockscout-mcp-go/pkg/logging"
	"github.com/ajitpratap0/blockscout-mcp-go/pkg/pagination"
	"github.com/ajitpratap0/blockscout-mcp-go/pkg/sizeguard"
	"github.com/ajitpratap0/blockscout-mcp-go/pkg/web3"
)

// Explorer fetches from the Blockscout instance of a chain
type Explorer interface {
	BaseURL(ctx context.Context, chainID string) (string, error)
	Get(ctx context.Context, chainID, path string, query url.Values) (map[string]interface{}, error)
	GetRaw(ctx context.Context, chainID, path string, query url.Values) ([]byte, error)
}

// ChainLister lists the chains with a Blockscout explorer
type ChainLister interface {
	Chains(ctx context.Context) ([]blockscout.Chain, error)
}

// NameResolver resolves ENS names
type NameResolver interface {
	Domain(ctx context.Context, name string) (map[string]interface{}, error)
}

// AddressMetadata returns public tags for an address
type AddressMetadata interface {
	Address(ctx context.Context, chainID, address string) (map[string]interface{}, error)
}

// ContractReader performs eth_call
type ContractReader interface {
	ReadContract(ctx context.Context, req web3.CallRequest) (interface{}, error)
}

// Settings are the tunables the tools consume
type Settings struct {
	LogsPageSize            int
	NFTPageSize             int
	AdvancedFiltersPageSize int
	MaxAdaptivePages        int
	ProgressInterval        time.Duration
	// ExpectedRequestDuration feeds the remaining-time hints of
	// periodic progress
	ExpectedRequestDuration time.Duration
}

// DefaultSettings mirrors the configuration defaults
func DefaultSettings() Settings {
	return Settings{
		LogsPageSize:            10,
		NFTPageSize:             10,
		AdvancedFiltersPageSize: 10,
		MaxAdaptivePages:        pagination.DefaultMaxPages,
		ProgressInterval:        15 * time.Second,
		ExpectedRequestDuration: 30 * time.Second,
	}
}

// Toolbox binds the tool handlers to their collaborators
type Toolbox struct {
	Explorer  Explorer
	Chains    ChainLister
	Names     NameResolver
	Metadata  AddressMetadata
	Contracts ContractReader
	Guard     sizeguard.Guard
	Settings  Settings
	Version   string
	Logger    logging.Logger

	// contractCache holds smart-contract payloads keyed by chain and
	// address; nil disables caching
	contractCache *cache.LRU[map[string]interface{}]
}

// WithContractCache enables caching of contract sources
func (tb *Toolbox) WithContractCache(c *cache.LRU[map[string]interface{}]) *Toolbox {
	tb.contractCache = c
	return tb
}

// Register adds every tool to r
func (tb *Toolbox) Register(r *Registry) error {
	if tb.Logger == nil {
		tb.Logger = logging.L()
	}
	for _, t := range tb.tools() {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

func (tb *Toolbox) tools() []Tool {
	return []Tool{
		tb.unlockTool(),
		tb.chainsListTool(),
		tb.ensTool(),
		tb.tokenLookupTool(),
		tb.contractABITool(),
		tb.inspectContractTool(),
		tb.addressInfoTool(),
		tb.tokensByAddressTool(),
		tb.latestBlockTool(),
		tb.blockInfoTool(),
		tb.blockNumberTool(),
		tb.transactionInfoTool(),
		tb.transactionLogsTool(),
		tb.addressLogsTool(),
		tb.transactionsByAddressTool(),
		tb.tokenTransfersTool(),
		tb.nftTokensTool(),
		tb.transactionSummaryTool(),
		tb.readContractTool(),
		tb.directAPICallTool(),
	}
}
