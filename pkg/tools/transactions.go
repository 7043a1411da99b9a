package tools

import (
	"context"
	"net/url"

	"github.com/ajitpratap0/blockscout-mcp-go/pkg/pagination"
)

// fields of a token transfer that repeat the enclosing transaction
var redundantTransferFields = []string{"block_hash", "block_number", "transaction_hash", "timestamp"}

func (tb *Toolbox) transactionInfoTool() Tool {
	return Tool{
		Name:  "get_transaction_info",
		Title: "Get Transaction Information",
		Description: "Get comprehensive transaction information: decoded input, token transfers, " +
			"fees and status. Raw input is omitted when a decoded form exists unless requested.",
		InputSchema: schemaOf(chainIDParam, txHashParam(),
			param{Name: "include_raw_input", Type: "boolean", Description: "Include the raw transaction input data"}),
		Handler: func(ctx context.Context, call *Call) (*Response, error) {
			chainID, err := call.Args.Required("chain_id")
			if err != nil {
				return nil, err
			}
			hash, err := requireHash(call.Args, "transaction_hash")
			if err != nil {
				return nil, err
			}
			includeRaw := call.Args.Bool("include_raw_input", false)

			call.Progress(ctx, 0, 2, "Resolving Blockscout instance for chain "+chainID)
			if _, err := tb.Explorer.BaseURL(ctx, chainID); err != nil {
				return nil, err
			}
			call.Progress(ctx, 1, 2, "Fetching transaction "+hash)
			tx, err := tb.Explorer.Get(ctx, chainID, "/api/v2/transactions/"+hash, nil)
			if err != nil {
				return nil, err
			}
			call.Progress(ctx, 2, 2, "Transaction received")

			shaped, truncated := shapeTransaction(tx, includeRaw)
			out := respond(shaped)
			if truncated {
				out.withNotes(inputTruncationNote)
			}
			return out, nil
		},
	}
}

// shapeTransaction flattens address objects, trims token transfers and
// truncates oversized decoded input values
func shapeTransaction(tx map[string]interface{}, includeRaw bool) (map[string]interface{}, bool) {
	out := make(map[string]interface{}, len(tx))
	for k, v := range tx {
		out[k] = v
	}
	for _, k := range []string{"from", "to", "created_contract"} {
		if v, ok := out[k]; ok {
			out[k] = addressHash(v)
		}
	}

	truncated := false
	if decoded, ok := out["decoded_input"]; ok && decoded != nil {
		out["decoded_input"], truncated = truncateValues(decoded)
	}
	if out["decoded_input"] != nil && !includeRaw {
		delete(out, "raw_input")
	} else if raw, ok := out["raw_input"]; ok {
		var cut bool
		out["raw_input"], cut = truncateValues(raw)
		if cut {
			out["raw_input_truncated"] = true
			truncated = true
		}
	}

	if transfers, ok := out["token_transfers"].([]interface{}); ok {
		shaped := make([]interface{}, 0, len(transfers))
		for _, t := range toMaps(transfers) {
			copied := make(map[string]interface{}, len(t))
			for k, v := range t {
				copied[k] = v
			}
			for _, k := range redundantTransferFields {
				delete(copied, k)
			}
			copied["from"] = addressHash(copied["from"])
			copied["to"] = addressHash(copied["to"])
			shaped = append(shaped, copied)
		}
		out["token_transfers"] = shaped
	}
	return out, truncated
}

func (tb *Toolbox) transactionSummaryTool() Tool {
	return Tool{
		Name:  "transaction_summary",
		Title: "Get Transaction Summary",
		Description: "Get a human readable summary of what a transaction did. Prefer this to decoding " +
			"raw logs when only the gist is needed.",
		InputSchema: schemaOf(chainIDParam, txHashParam()),
		Handler: func(ctx context.Context, call *Call) (*Response, error) {
			chainID, err := call.Args.Required("chain_id")
			if err != nil {
				return nil, err
			}
			hash, err := requireHash(call.Args, "transaction_hash")
			if err != nil {
				return nil, err
			}
			call.Progress(ctx, 0, 2, "Resolving Blockscout instance for chain "+chainID)
			if _, err := tb.Explorer.BaseURL(ctx, chainID); err != nil {
				return nil, err
			}
			call.Progress(ctx, 1, 2, "Fetching transaction summary")

			var resp map[string]interface{}
			err = withPeriodicProgress(ctx, call.Reporter, tb.Settings.ProgressInterval, tb.Settings.ExpectedRequestDuration,
				1, 2, 2, "Transaction summary", func(ctx context.Context) error {
					var err error
					resp, err = tb.Explorer.Get(ctx, chainID, "/api/v2/transactions/"+hash+"/summary", nil)
					return err
				})
			if err != nil {
				return nil, err
			}

			summaries := field(resp, "data", "summaries")
			if list, ok := summaries.([]interface{}); !ok || len(list) == 0 {
				return respond(map[string]interface{}{"summary": nil}).
					withNotes("No summary is available for this transaction."), nil
			}
			return respond(map[string]interface{}{"summary": summaries}), nil
		},
	}
}

func (tb *Toolbox) transactionLogsTool() Tool {
	const name = "get_transaction_logs"
	return Tool{
		Name:        name,
		Title:       "Get Transaction Logs",
		Description: "Get the event logs emitted by a transaction, decoded when the ABI is known.",
		InputSchema: schemaOf(chainIDParam, txHashParam(), cursorParam),
		Handler: func(ctx context.Context, call *Call) (*Response, error) {
			chainID, err := call.Args.Required("chain_id")
			if err != nil {
				return nil, err
			}
			hash, err := requireHash(call.Args, "transaction_hash")
			if err != nil {
				return nil, err
			}
			return tb.logs(ctx, call, chainID, "/api/v2/transactions/"+hash+"/logs", pagination.NextRequest{
				ToolName: name,
				Params:   baseParams(chainID, map[string]interface{}{"transaction_hash": hash}),
			}, false)
		},
	}
}

func (tb *Toolbox) addressLogsTool() Tool {
	const name = "get_address_logs"
	return Tool{
		Name:        name,
		Title:       "Get Address Logs",
		Description: "Get the event logs emitted by a contract address, newest first.",
		InputSchema: schemaOf(chainIDParam, addressParam("Contract address that emitted the logs"), cursorParam),
		Handler: func(ctx context.Context, call *Call) (*Response, error) {
			chainID, err := call.Args.Required("chain_id")
			if err != nil {
				return nil, err
			}
			address, err := requireAddress(call.Args, "address")
			if err != nil {
				return nil, err
			}
			return tb.logs(ctx, call, chainID, "/api/v2/addresses/"+address+"/logs", pagination.NextRequest{
				ToolName: name,
				Params:   baseParams(chainID, map[string]interface{}{"address": address}),
			}, true)
		},
	}
}

var logsDescription = []string{
	"Items are event logs, newest first.",
	"`address` is the emitting contract; it is omitted for address logs since every item shares it.",
	"`topics` holds the raw indexed parameters, topics[0] is the event signature hash.",
	"`decoded` is present when the contract ABI is known and holds the event name and parameters.",
	"`index` is the log position in the block.",
}

// logs fetches one upstream page of logs and bounds it to the logs page size
func (tb *Toolbox) logs(ctx context.Context, call *Call, chainID, path string, req pagination.NextRequest, dropAddress bool) (*Response, error) {
	query := url.Values{}
	if err := applyCursor(query, call.Args.String("cursor")); err != nil {
		return nil, err
	}
	call.Progress(ctx, 0, 2, "Resolving Blockscout instance for chain "+chainID)
	if _, err := tb.Explorer.BaseURL(ctx, chainID); err != nil {
		return nil, err
	}
	call.Progress(ctx, 1, 2, "Fetching logs")
	resp, err := tb.Explorer.Get(ctx, chainID, path, query)
	if err != nil {
		return nil, err
	}
	call.Progress(ctx, 2, 2, "Logs received")

	shaped := make([]map[string]interface{}, 0)
	for _, item := range toMaps(items(resp)) {
		log := pick(item, "block_number", "transaction_hash", "topics", "data", "decoded", "index")
		if !dropAddress {
			log["address"] = addressHash(item["address"])
		}
		shaped = append(shaped, log)
	}

	more, err := upstreamNext(resp)
	if err != nil {
		return nil, err
	}
	page, err := pagination.Paginate(shaped, tb.Settings.LogsPageSize, req,
		extractFields("block_number", "index"), len(more) > 0)
	if err != nil {
		return nil, err
	}

	truncated := false
	for _, log := range page.Items {
		if truncateLogData(log) {
			truncated = true
		}
	}
	out := respond(page.Items).withDescription(logsDescription...)
	if truncated {
		out.withNotes(logNote())
	}
	if page.Next != nil {
		out.withPagination(page.Next)
	}
	return out, nil
}
