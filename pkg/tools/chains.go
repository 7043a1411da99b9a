package tools

import (
	"context"
	"net/url"
	"strings"

	mcperrors "github.com/ajitpratap0/blockscout-mcp-go/pkg/errors"
)

const tokenSearchLimit = 7

func (tb *Toolbox) chainsListTool() Tool {
	return Tool{
		Name:        "get_chains_list",
		Title:       "Get List of Chains",
		Description: "Get the list of known blockchain chains with their IDs. Useful for getting a chain ID when the chain name is known.",
		InputSchema: schemaOf(),
		Handler: func(ctx context.Context, call *Call) (*Response, error) {
			call.Progress(ctx, 0, 1, "Fetching chains list from Chainscout")
			chains, err := tb.Chains.Chains(ctx)
			if err != nil {
				return nil, err
			}
			call.Progress(ctx, 1, 1, "Chains list received")
			return respond(chains), nil
		},
	}
}

func (tb *Toolbox) ensTool() Tool {
	return Tool{
		Name:        "get_address_by_ens_name",
		Title:       "Get Address by ENS Name",
		Description: "Convert an ENS domain name to its Ethereum address.",
		InputSchema: schemaOf(param{Name: "name", Type: "string", Required: true, Description: "ENS domain name to resolve"}),
		Handler: func(ctx context.Context, call *Call) (*Response, error) {
			name, err := call.Args.Required("name")
			if err != nil {
				return nil, err
			}
			call.Progress(ctx, 0, 2, "Resolving "+name)
			domain, err := tb.Names.Domain(ctx, name)
			if err != nil {
				if status, ok := mcperrors.UpstreamStatus(err); ok && status == 404 {
					return respond(map[string]interface{}{"resolved_address": nil}).
						withNotes("The name is not registered or has no resolved address."), nil
				}
				return nil, err
			}
			call.Progress(ctx, 2, 2, "Resolved "+name)
			return respond(map[string]interface{}{"resolved_address": field(domain, "resolved_address", "hash")}), nil
		},
	}
}

func (tb *Toolbox) tokenLookupTool() Tool {
	return Tool{
		Name:        "lookup_token_by_symbol",
		Title:       "Lookup Token by Symbol",
		Description: "Search for token addresses by symbol or name. Returns multiple potential matches.",
		InputSchema: schemaOf(chainIDParam,
			param{Name: "symbol", Type: "string", Required: true, Description: "Token symbol or name to search for"}),
		Handler: func(ctx context.Context, call *Call) (*Response, error) {
			chainID, err := call.Args.Required("chain_id")
			if err != nil {
				return nil, err
			}
			symbol, err := call.Args.Required("symbol")
			if err != nil {
				return nil, err
			}

			call.Progress(ctx, 0, 2, "Resolving Blockscout instance for chain "+chainID)
			if _, err := tb.Explorer.BaseURL(ctx, chainID); err != nil {
				return nil, err
			}
			call.Progress(ctx, 1, 2, "Searching for "+symbol)
			resp, err := tb.Explorer.Get(ctx, chainID, "/api/v2/search", url.Values{"q": {symbol}})
			if err != nil {
				return nil, err
			}

			var results []map[string]interface{}
			for _, item := range toMaps(items(resp)) {
				if !strings.EqualFold(str(item["type"]), "token") {
					continue
				}
				results = append(results, map[string]interface{}{
					"address":                     item["address_hash"],
					"name":                        item["name"],
					"symbol":                      item["symbol"],
					"token_type":                  item["token_type"],
					"total_supply":                item["total_supply"],
					"circulating_market_cap":      item["circulating_market_cap"],
					"exchange_rate":               item["exchange_rate"],
					"is_smart_contract_verified":  item["is_smart_contract_verified"],
					"is_verified_via_admin_panel": item["is_verified_via_admin_panel"],
				})
			}
			call.Progress(ctx, 2, 2, "Token search completed")

			out := respond(results)
			if len(results) > tokenSearchLimit {
				out = respond(results[:tokenSearchLimit]).withNotes(
					"The number of results exceeds the limit of 7. Only the first 7 are shown; " +
						"refine the search with a more specific name or symbol.")
			}
			return out, nil
		},
	}
}
