package tools

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"unicode/utf8"

	mcperrors "github.com/ajitpratap0/blockscout-mcp-go/pkg/errors"
	"github.com/ajitpratap0/blockscout-mcp-go/pkg/pagination"
	"github.com/ajitpratap0/blockscout-mcp-go/pkg/utils"
	"github.com/ajitpratap0/blockscout-mcp-go/pkg/web3"
)

func (tb *Toolbox) readContractTool() Tool {
	return Tool{
		Name:  "read_contract",
		Title: "Read from Contract",
		Description: "Call a view or pure function of a smart contract and return the decoded result. " +
			"The ABI of the single function is required; get_contract_abi provides it.",
		InputSchema: schemaOf(chainIDParam, addressParam("Smart contract address"),
			param{Name: "abi", Type: "any", Required: true, Description: "JSON ABI entry of the function to call"},
			param{Name: "function_name", Type: "string", Required: true, Description: "Name of the function, as in the ABI"},
			param{Name: "args", Type: "any", Description: "Function arguments as a JSON array, in ABI order"},
			param{Name: "block", Type: "any", Description: "Block number or tag (latest, earliest, pending); defaults to latest"}),
		Handler: func(ctx context.Context, call *Call) (*Response, error) {
			chainID, err := call.Args.Required("chain_id")
			if err != nil {
				return nil, err
			}
			address, err := requireAddress(call.Args, "address")
			if err != nil {
				return nil, err
			}
			fn, err := call.Args.Required("function_name")
			if err != nil {
				return nil, err
			}
			abiJSON, err := call.Args.Raw("abi")
			if err != nil || len(abiJSON) == 0 {
				return nil, mcperrors.MissingParameter("abi")
			}
			args, err := contractArgs(call.Args)
			if err != nil {
				return nil, err
			}

			call.Progress(ctx, 0, 2, "Preparing call to "+fn)
			result, err := tb.Contracts.ReadContract(ctx, web3.CallRequest{
				ChainID:  chainID,
				Address:  address,
				ABI:      abiJSON,
				Function: fn,
				Args:     args,
				Block:    call.Args.String("block"),
			})
			if err != nil {
				return nil, err
			}
			call.Progress(ctx, 2, 2, "Contract call completed")
			return respond(map[string]interface{}{"result": result}), nil
		},
	}
}

// contractArgs accepts a JSON array or a string holding one
func contractArgs(args Args) ([]interface{}, error) {
	switch v := args["args"].(type) {
	case nil:
		return nil, nil
	case []interface{}:
		return v, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		decoded, err := utils.DecodeJSON([]byte(v))
		if err != nil {
			return nil, mcperrors.InvalidParameter("args", v, "expected a JSON array")
		}
		list, ok := decoded.([]interface{})
		if !ok {
			return nil, mcperrors.InvalidParameter("args", v, "expected a JSON array")
		}
		return list, nil
	default:
		return nil, mcperrors.InvalidParameter("args", v, "expected a JSON array")
	}
}

func (tb *Toolbox) directAPICallTool() Tool {
	const name = "direct_api_call"
	return Tool{
		Name:  name,
		Title: "Direct Blockscout API Call",
		Description: "Call any Blockscout API endpoint not covered by a dedicated tool. The response is " +
			"returned as is and refused when it is too large.",
		InputSchema: schemaOf(chainIDParam,
			param{Name: "endpoint_path", Type: "string", Required: true, Description: "API path starting with /, e.g. /api/v2/stats"},
			param{Name: "query_params", Type: "object", Description: "Query parameters to send"},
			cursorParam),
		Handler: func(ctx context.Context, call *Call) (*Response, error) {
			chainID, err := call.Args.Required("chain_id")
			if err != nil {
				return nil, err
			}
			path, err := call.Args.Required("endpoint_path")
			if err != nil {
				return nil, err
			}
			if !strings.HasPrefix(path, "/") || strings.ContainsAny(path, "?#") || strings.Contains(path, "..") {
				return nil, mcperrors.InvalidParameter("endpoint_path", path,
					"must start with / and carry no query string; pass query parameters in query_params")
			}

			query := url.Values{}
			params := call.Args.Object("query_params")
			for k, v := range params {
				query.Set(k, str(v))
			}
			if err := applyCursor(query, call.Args.String("cursor")); err != nil {
				return nil, err
			}

			call.Progress(ctx, 0, 2, "Resolving Blockscout instance for chain "+chainID)
			if _, err := tb.Explorer.BaseURL(ctx, chainID); err != nil {
				return nil, err
			}
			call.Progress(ctx, 1, 2, "Fetching "+path)
			raw, err := tb.Explorer.GetRaw(ctx, chainID, path, query)
			if err != nil {
				return nil, err
			}
			if err := tb.Guard.CheckContext(ctx, utf8.RuneCount(raw)); err != nil {
				return nil, err
			}
			call.Progress(ctx, 2, 2, "Response received")

			decoded, err := utils.DecodeJSON(raw)
			if err != nil {
				// not JSON, return verbatim
				return respond(string(raw)), nil
			}
			out := respond(json.RawMessage(raw))
			obj, ok := decoded.(map[string]interface{})
			if !ok {
				return out, nil
			}
			next, err := upstreamNext(obj)
			if err != nil {
				return nil, err
			}
			echo := map[string]interface{}{"endpoint_path": path}
			if len(params) > 0 {
				echo["query_params"] = params
			}
			if info := pagination.NextPage(pagination.NextRequest{
				ToolName: name,
				Params:   baseParams(chainID, echo),
			}, next); info != nil {
				out.withPagination(info)
			}
			return out, nil
		},
	}
}
