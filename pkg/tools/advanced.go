package tools

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/ajitpratap0/blockscout-mcp-go/pkg/pagination"
)

const advancedFiltersPath = "/api/v2/advanced-filters"

// Token transfer types served by get_token_transfers_by_address and left
// out of get_transactions_by_address
var excludedTransactionTypes = map[string]bool{
	"ERC-20":   true,
	"ERC-404":  true,
	"ERC-721":  true,
	"ERC-1155": true,
}

// Item fields the advanced-filters endpoint resumes from
var advancedCursorFields = extractFields(
	"block_number",
	"transaction_index",
	"internal_transaction_index",
	"token_transfer_batch_index",
	"token_transfer_index",
)

var (
	ageFromParam = param{Name: "age_from", Type: "string", Description: "Start of the time range, ISO 8601"}
	ageToParam   = param{Name: "age_to", Type: "string", Description: "End of the time range, ISO 8601"}
)

// advancedQuery builds the filter query shared by both advanced-filter tools
func advancedQuery(args Args, address string) (url.Values, map[string]interface{}, error) {
	query := url.Values{
		"to_address_hashes_to_include":   {address},
		"from_address_hashes_to_include": {address},
	}
	echo := map[string]interface{}{"address": address}
	for _, key := range []string{"age_from", "age_to"} {
		raw := args.String(key)
		if raw == "" {
			continue
		}
		t, err := parseDatetime(key, raw)
		if err != nil {
			return nil, nil, err
		}
		query.Set(key, t.Format(time.RFC3339))
		echo[key] = raw
	}
	return query, echo, nil
}

func withParams(query url.Values, params pagination.Params) url.Values {
	out := make(url.Values, len(query)+len(params))
	for k, v := range query {
		out[k] = append([]string(nil), v...)
	}
	for k, v := range params {
		out.Set(k, v.QueryString())
	}
	return out
}

// shapeFilterItem flattens the address objects of an advanced-filter item
func shapeFilterItem(item map[string]interface{}, keys ...string) map[string]interface{} {
	out := pick(item, keys...)
	for _, k := range []string{"from", "to"} {
		if v, ok := out[k]; ok {
			out[k] = addressHash(v)
		}
	}
	return out
}

func (tb *Toolbox) transactionsByAddressTool() Tool {
	const name = "get_transactions_by_address"
	return Tool{
		Name:  name,
		Title: "Get Transactions by Address",
		Description: "Get native currency transfers and contract interactions of an address, newest " +
			"first. Token transfers are excluded; use get_token_transfers_by_address for them.",
		InputSchema: schemaOf(chainIDParam, addressParam("Address to get transactions for"),
			ageFromParam, ageToParam,
			param{Name: "methods", Type: "string", Description: "Comma separated 4-byte method selectors to filter by, e.g. 0x304e6ade"},
			cursorParam),
		Handler: func(ctx context.Context, call *Call) (*Response, error) {
			chainID, err := call.Args.Required("chain_id")
			if err != nil {
				return nil, err
			}
			address, err := requireAddress(call.Args, "address")
			if err != nil {
				return nil, err
			}
			query, echo, err := advancedQuery(call.Args, address)
			if err != nil {
				return nil, err
			}
			if methods := call.Args.Strings("methods"); len(methods) > 0 {
				query.Set("methods", strings.Join(methods, ","))
				echo["methods"] = strings.Join(methods, ",")
			}
			start, err := pagination.ParsePosition(call.Args.String("cursor"))
			if err != nil {
				return nil, invalidCursor(err)
			}

			if _, err := tb.Explorer.BaseURL(ctx, chainID); err != nil {
				return nil, err
			}

			fetch := func(ctx context.Context, after pagination.Params) (pagination.Batch[map[string]interface{}], error) {
				resp, err := tb.Explorer.Get(ctx, chainID, advancedFiltersPath, withParams(query, after))
				if err != nil {
					return pagination.Batch[map[string]interface{}]{}, err
				}
				next, err := upstreamNext(resp)
				if err != nil {
					return pagination.Batch[map[string]interface{}]{}, err
				}
				return pagination.Batch[map[string]interface{}]{Items: toMaps(items(resp)), Next: next}, nil
			}
			acc, err := pagination.Accumulate(ctx, fetch, pagination.AccumulateOptions[map[string]interface{}]{
				Start:                start.Params(),
				Target:               tb.Settings.AdvancedFiltersPageSize,
				MaxPages:             tb.Settings.MaxAdaptivePages,
				Keep:                 func(item map[string]interface{}) bool { return !excludedTransactionTypes[str(item["type"])] },
				Reporter:             call.Reporter,
				ExpectedPageDuration: tb.Settings.ExpectedRequestDuration,
			})
			if err != nil {
				return nil, err
			}

			page, err := pagination.Paginate(acc.Items, tb.Settings.AdvancedFiltersPageSize, pagination.NextRequest{
				ToolName: name,
				Params:   baseParams(chainID, echo),
			}, advancedCursorFields, acc.HasMore)
			if err != nil {
				return nil, err
			}

			shaped := make([]map[string]interface{}, 0, len(page.Items))
			for _, item := range page.Items {
				shaped = append(shaped, shapeFilterItem(item,
					"hash", "type", "method", "from", "to", "value", "fee", "timestamp", "block_number", "status"))
			}
			out := respond(shaped)
			if page.Next != nil {
				out.withPagination(page.Next)
			}
			return out, nil
		},
	}
}

func (tb *Toolbox) tokenTransfersTool() Tool {
	const name = "get_token_transfers_by_address"
	return Tool{
		Name:  name,
		Title: "Get Token Transfers by Address",
		Description: "Get ERC-20 token transfers to or from an address, newest first, optionally " +
			"limited to one token contract.",
		InputSchema: schemaOf(chainIDParam, addressParam("Address that sent or received the tokens"),
			ageFromParam, ageToParam,
			param{Name: "token", Type: "string", Description: "Token contract address to filter by"},
			cursorParam),
		Handler: func(ctx context.Context, call *Call) (*Response, error) {
			chainID, err := call.Args.Required("chain_id")
			if err != nil {
				return nil, err
			}
			address, err := requireAddress(call.Args, "address")
			if err != nil {
				return nil, err
			}
			query, echo, err := advancedQuery(call.Args, address)
			if err != nil {
				return nil, err
			}
			query.Set("transaction_types", "ERC-20")
			if call.Args.Has("token") {
				token, err := requireAddress(call.Args, "token")
				if err != nil {
					return nil, err
				}
				query.Set("token_contract_address_hashes_to_include", token)
				echo["token"] = token
			}
			if err := applyCursor(query, call.Args.String("cursor")); err != nil {
				return nil, err
			}

			call.Progress(ctx, 0, 2, "Resolving Blockscout instance for chain "+chainID)
			if _, err := tb.Explorer.BaseURL(ctx, chainID); err != nil {
				return nil, err
			}
			call.Progress(ctx, 1, 2, "Fetching token transfers")
			resp, err := tb.Explorer.Get(ctx, chainID, advancedFiltersPath, query)
			if err != nil {
				return nil, err
			}
			call.Progress(ctx, 2, 2, "Token transfers received")

			more, err := upstreamNext(resp)
			if err != nil {
				return nil, err
			}
			page, err := pagination.Paginate(toMaps(items(resp)), tb.Settings.AdvancedFiltersPageSize, pagination.NextRequest{
				ToolName: name,
				Params:   baseParams(chainID, echo),
			}, advancedCursorFields, len(more) > 0)
			if err != nil {
				return nil, err
			}

			shaped := make([]map[string]interface{}, 0, len(page.Items))
			for _, item := range page.Items {
				transfer := shapeFilterItem(item, "hash", "type", "method", "from", "to", "timestamp", "block_number")
				token, _ := item["token"].(map[string]interface{})
				transfer["token"] = pick(token, "address_hash", "name", "symbol", "decimals")
				amount := field(item, "total", "value")
				transfer["value"] = amount
				transfer["value_formatted"] = formatUnits(amount, field(item, "total", "decimals"))
				shaped = append(shaped, transfer)
			}
			out := respond(shaped)
			if page.Next != nil {
				out.withPagination(page.Next)
			}
			return out, nil
		},
	}
}
