package tools

import (
	"context"
	"net/url"

	"github.com/ajitpratap0/blockscout-mcp-go/pkg/pagination"
)

func nftCursor(item map[string]interface{}) (pagination.Params, error) {
	params := pagination.Params{}
	if hash := str(field(item, "token", "address_hash")); hash != "" {
		params["token_contract_address_hash"] = pagination.String(hash)
	}
	if typ := str(field(item, "token", "type")); typ != "" {
		params["token_type"] = pagination.String(typ)
	}
	return params, nil
}

func (tb *Toolbox) nftTokensTool() Tool {
	const name = "nft_tokens_by_address"
	return Tool{
		Name:  name,
		Title: "Get NFT Tokens by Address",
		Description: "Get the NFT collections (ERC-721, ERC-404, ERC-1155) held by an address, with " +
			"the owned token instances of each collection.",
		InputSchema: schemaOf(chainIDParam, addressParam("NFT owner address"), cursorParam),
		Handler: func(ctx context.Context, call *Call) (*Response, error) {
			chainID, err := call.Args.Required("chain_id")
			if err != nil {
				return nil, err
			}
			address, err := requireAddress(call.Args, "address")
			if err != nil {
				return nil, err
			}
			query := url.Values{"type": {"ERC-721,ERC-404,ERC-1155"}}
			if err := applyCursor(query, call.Args.String("cursor")); err != nil {
				return nil, err
			}

			call.Progress(ctx, 0, 2, "Resolving Blockscout instance for chain "+chainID)
			if _, err := tb.Explorer.BaseURL(ctx, chainID); err != nil {
				return nil, err
			}
			call.Progress(ctx, 1, 2, "Fetching NFT collections")
			resp, err := tb.Explorer.Get(ctx, chainID, "/api/v2/addresses/"+address+"/nft/collections", query)
			if err != nil {
				return nil, err
			}
			call.Progress(ctx, 2, 2, "NFT collections received")

			more, err := upstreamNext(resp)
			if err != nil {
				return nil, err
			}
			page, err := pagination.Paginate(toMaps(items(resp)), tb.Settings.NFTPageSize, pagination.NextRequest{
				ToolName: name,
				Params:   baseParams(chainID, map[string]interface{}{"address": address}),
			}, nftCursor, len(more) > 0)
			if err != nil {
				return nil, err
			}

			holdings := make([]map[string]interface{}, 0, len(page.Items))
			for _, item := range page.Items {
				token, _ := item["token"].(map[string]interface{})
				instances := make([]map[string]interface{}, 0)
				for _, inst := range toMaps(asList(item["token_instances"])) {
					instances = append(instances, map[string]interface{}{
						"id":                  inst["id"],
						"name":                field(inst, "metadata", "name"),
						"description":         field(inst, "metadata", "description"),
						"image_url":           inst["image_url"],
						"external_url":        field(inst, "metadata", "external_url"),
						"metadata_attributes": field(inst, "metadata", "attributes"),
					})
				}
				holdings = append(holdings, map[string]interface{}{
					"collection": map[string]interface{}{
						"type":          token["type"],
						"address":       token["address_hash"],
						"name":          token["name"],
						"symbol":        token["symbol"],
						"holders_count": token["holders_count"],
						"total_supply":  token["total_supply"],
					},
					"amount":          item["amount"],
					"token_instances": instances,
				})
			}
			out := respond(holdings)
			if page.Next != nil {
				out.withPagination(page.Next)
			}
			return out, nil
		},
	}
}
