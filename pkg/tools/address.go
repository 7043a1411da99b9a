package tools

import (
	"context"
	"net/url"

	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/blockscout-mcp-go/pkg/logging"
	"github.com/ajitpratap0/blockscout-mcp-go/pkg/pagination"
)

func (tb *Toolbox) addressInfoTool() Tool {
	return Tool{
		Name:  "get_address_info",
		Title: "Get Address Information",
		Description: "Get comprehensive information about an address: native balance, contract status, " +
			"first transaction details, ENS association and public tags.",
		InputSchema: schemaOf(chainIDParam, addressParam("Address to get information about")),
		Handler: func(ctx context.Context, call *Call) (*Response, error) {
			chainID, err := call.Args.Required("chain_id")
			if err != nil {
				return nil, err
			}
			address, err := requireAddress(call.Args, "address")
			if err != nil {
				return nil, err
			}
			call.Progress(ctx, 0, 3, "Resolving Blockscout instance for chain "+chainID)
			if _, err := tb.Explorer.BaseURL(ctx, chainID); err != nil {
				return nil, err
			}
			call.Progress(ctx, 1, 3, "Fetching address info and metadata")

			var (
				info     map[string]interface{}
				metadata map[string]interface{}
				metaErr  error
			)
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				var err error
				info, err = tb.Explorer.Get(gctx, chainID, "/api/v2/addresses/"+address, nil)
				return err
			})
			if tb.Metadata != nil {
				g.Go(func() error {
					// metadata is best effort
					metadata, metaErr = tb.Metadata.Address(gctx, chainID, address)
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return nil, err
			}
			call.Progress(ctx, 3, 3, "Address info received")

			out := respond(map[string]interface{}{"basic_info": info, "metadata": addressTags(metadata, address)})
			if metaErr != nil {
				tb.Logger.WithContext(ctx).WithError(metaErr).Warn("address metadata unavailable",
					logging.String("address", address))
				out.withNotes("Could not retrieve address metadata. The 'metadata' field is null.")
			}
			return out, nil
		},
	}
}

// addressTags unwraps the metadata service response for one address
func addressTags(meta map[string]interface{}, address string) interface{} {
	if meta == nil {
		return nil
	}
	addrs, ok := meta["addresses"].(map[string]interface{})
	if !ok {
		return meta
	}
	for k, v := range addrs {
		if equalHex(k, address) {
			return v
		}
	}
	return nil
}

func (tb *Toolbox) tokensByAddressTool() Tool {
	const name = "get_tokens_by_address"
	return Tool{
		Name:  name,
		Title: "Get Tokens by Address",
		Description: "Get the ERC-20 token holdings of an address with token metadata and balances. " +
			"Balances are shown both raw and adjusted for decimals.",
		InputSchema: schemaOf(chainIDParam, addressParam("Wallet address"), cursorParam),
		Handler: func(ctx context.Context, call *Call) (*Response, error) {
			chainID, err := call.Args.Required("chain_id")
			if err != nil {
				return nil, err
			}
			address, err := requireAddress(call.Args, "address")
			if err != nil {
				return nil, err
			}
			query := url.Values{"type": {"ERC-20"}}
			if err := applyCursor(query, call.Args.String("cursor")); err != nil {
				return nil, err
			}
			call.Progress(ctx, 0, 2, "Resolving Blockscout instance for chain "+chainID)
			if _, err := tb.Explorer.BaseURL(ctx, chainID); err != nil {
				return nil, err
			}
			call.Progress(ctx, 1, 2, "Fetching token holdings")
			resp, err := tb.Explorer.Get(ctx, chainID, "/api/v2/addresses/"+address+"/tokens", query)
			if err != nil {
				return nil, err
			}
			call.Progress(ctx, 2, 2, "Token holdings received")

			rows := toMaps(items(resp))
			holdings := make([]map[string]interface{}, 0, len(rows))
			for _, item := range rows {
				token, _ := item["token"].(map[string]interface{})
				holdings = append(holdings, map[string]interface{}{
					"address":                field(token, "address_hash"),
					"name":                   field(token, "name"),
					"symbol":                 field(token, "symbol"),
					"decimals":               field(token, "decimals"),
					"total_supply":           field(token, "total_supply"),
					"circulating_market_cap": field(token, "circulating_market_cap"),
					"exchange_rate":          field(token, "exchange_rate"),
					"holders_count":          field(token, "holders_count"),
					"balance":                item["value"],
					"balance_formatted":      formatUnits(item["value"], field(token, "decimals")),
				})
			}

			next, err := upstreamNext(resp)
			if err != nil {
				return nil, err
			}
			out := respond(holdings)
			if info := pagination.NextPage(pagination.NextRequest{
				ToolName: name,
				Params:   baseParams(chainID, map[string]interface{}{"address": address}),
			}, next); info != nil {
				out.withPagination(info)
			}
			return out, nil
		},
	}
}
