package tools

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	mcperrors "github.com/ajitpratap0/blockscout-mcp-go/pkg/errors"
)

// Layouts accepted for datetime arguments, tried in order
var datetimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseDatetime(key, s string) (time.Time, error) {
	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, mcperrors.InvalidParameter(key, s, "expected an ISO 8601 datetime such as 2024-01-31T12:00:00Z")
}

func (tb *Toolbox) latestBlock(ctx context.Context, chainID string) (map[string]interface{}, error) {
	raw, err := tb.Explorer.GetRaw(ctx, chainID, "/api/v2/main-page/blocks", nil)
	if err != nil {
		return nil, err
	}
	blocks, err := decodeList(raw)
	if err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		return nil, mcperrors.UpstreamError("blockscout", "/api/v2/main-page/blocks", 0, "", errNoBlocks)
	}
	return map[string]interface{}{
		"block_number": blocks[0]["height"],
		"timestamp":    blocks[0]["timestamp"],
	}, nil
}

func (tb *Toolbox) latestBlockTool() Tool {
	return Tool{
		Name:        "get_latest_block",
		Title:       "Get Latest Block",
		Description: "Get the latest indexed block number and timestamp.",
		InputSchema: schemaOf(chainIDParam),
		Handler: func(ctx context.Context, call *Call) (*Response, error) {
			chainID, err := call.Args.Required("chain_id")
			if err != nil {
				return nil, err
			}
			call.Progress(ctx, 0, 2, "Resolving Blockscout instance for chain "+chainID)
			if _, err := tb.Explorer.BaseURL(ctx, chainID); err != nil {
				return nil, err
			}
			call.Progress(ctx, 1, 2, "Fetching latest block")
			block, err := tb.latestBlock(ctx, chainID)
			if err != nil {
				return nil, err
			}
			call.Progress(ctx, 2, 2, "Latest block received")
			return respond(block), nil
		},
	}
}

func (tb *Toolbox) blockInfoTool() Tool {
	return Tool{
		Name:  "get_block_info",
		Title: "Get Block Information",
		Description: "Get block details: timestamp, gas used, burnt fees, transaction count. " +
			"Optionally include the list of transaction hashes.",
		InputSchema: schemaOf(chainIDParam,
			param{Name: "number_or_hash", Type: "string", Required: true, Description: "Block number or hash"},
			param{Name: "include_transactions", Type: "boolean", Description: "Include the transaction hashes of the block"}),
		Handler: func(ctx context.Context, call *Call) (*Response, error) {
			chainID, err := call.Args.Required("chain_id")
			if err != nil {
				return nil, err
			}
			ref, err := call.Args.Required("number_or_hash")
			if err != nil {
				return nil, err
			}
			if _, err := strconv.ParseUint(ref, 10, 64); err != nil && !txHashPattern.MatchString(ref) {
				return nil, mcperrors.InvalidParameter("number_or_hash", ref, "expected a block number or a 32-byte block hash")
			}
			withTxs := call.Args.Bool("include_transactions", false)

			steps := 2.0
			if withTxs {
				steps = 3
			}
			call.Progress(ctx, 0, steps, "Resolving Blockscout instance for chain "+chainID)
			if _, err := tb.Explorer.BaseURL(ctx, chainID); err != nil {
				return nil, err
			}
			call.Progress(ctx, 1, steps, "Fetching block "+ref)

			var block, txs map[string]interface{}
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				var err error
				block, err = tb.Explorer.Get(gctx, chainID, "/api/v2/blocks/"+ref, nil)
				return err
			})
			if withTxs {
				g.Go(func() error {
					var err error
					txs, err = tb.Explorer.Get(gctx, chainID, "/api/v2/blocks/"+ref+"/transactions", nil)
					return err
				})
			}
			if err := g.Wait(); err != nil {
				return nil, err
			}
			call.Progress(ctx, steps, steps, "Block data received")

			if !withTxs {
				return respond(map[string]interface{}{"block_details": block}), nil
			}
			hashes := make([]interface{}, 0)
			for _, tx := range toMaps(items(txs)) {
				hashes = append(hashes, tx["hash"])
			}
			out := respond(map[string]interface{}{"block_details": block, "transaction_hashes": hashes})
			if next, _ := txs["next_page_params"].(map[string]interface{}); len(next) > 0 {
				out.withNotes("The block has more transactions than listed. Use direct_api_call on " +
					"/api/v2/blocks/{number_or_hash}/transactions to page through all of them.")
			}
			return out, nil
		},
	}
}

func (tb *Toolbox) blockNumberTool() Tool {
	return Tool{
		Name:  "get_block_number",
		Title: "Get Block Number",
		Description: "Get the block number closest before a datetime, or the latest block when no " +
			"datetime is given.",
		InputSchema: schemaOf(chainIDParam,
			param{Name: "datetime", Type: "string", Description: "ISO 8601 datetime, e.g. 2024-01-31T12:00:00Z"}),
		Handler: func(ctx context.Context, call *Call) (*Response, error) {
			chainID, err := call.Args.Required("chain_id")
			if err != nil {
				return nil, err
			}
			raw := call.Args.String("datetime")
			var at time.Time
			if raw != "" {
				if at, err = parseDatetime("datetime", raw); err != nil {
					return nil, err
				}
			}
			call.Progress(ctx, 0, 2, "Resolving Blockscout instance for chain "+chainID)
			if _, err := tb.Explorer.BaseURL(ctx, chainID); err != nil {
				return nil, err
			}

			if raw == "" {
				call.Progress(ctx, 1, 2, "Fetching latest block")
				block, err := tb.latestBlock(ctx, chainID)
				if err != nil {
					return nil, err
				}
				call.Progress(ctx, 2, 2, "Latest block received")
				return respond(block), nil
			}

			call.Progress(ctx, 1, 2, "Looking up block at "+at.Format(time.RFC3339))
			var resp map[string]interface{}
			err = withPeriodicProgress(ctx, call.Reporter, tb.Settings.ProgressInterval, tb.Settings.ExpectedRequestDuration,
				1, 2, 2, "Block lookup", func(ctx context.Context) error {
					var err error
					resp, err = tb.Explorer.Get(ctx, chainID, "/api", url.Values{
						"module":    {"block"},
						"action":    {"getblocknobytime"},
						"timestamp": {strconv.FormatInt(at.Unix(), 10)},
						"closest":   {"before"},
					})
					return err
				})
			if err != nil {
				return nil, err
			}
			if str(resp["status"]) != "1" {
				return nil, mcperrors.UpstreamError("blockscout", "/api", 0, str(resp["message"]),
					errNoBlockAtTime)
			}
			return respond(map[string]interface{}{
				"block_number": field(resp, "result", "blockNumber"),
				"timestamp":    at.Format(time.RFC3339),
			}), nil
		},
	}
}
