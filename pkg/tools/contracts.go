package tools

import (
	"context"
	"sort"
	"strings"

	mcperrors "github.com/ajitpratap0/blockscout-mcp-go/pkg/errors"
)

func (tb *Toolbox) contractABITool() Tool {
	return Tool{
		Name:  "get_contract_abi",
		Title: "Get Contract ABI",
		Description: "Get the smart contract ABI. The ABI describes the functions and events of a contract " +
			"and is needed to encode calls or decode logs.",
		InputSchema: schemaOf(chainIDParam, addressParam("Smart contract address")),
		Handler: func(ctx context.Context, call *Call) (*Response, error) {
			chainID, err := call.Args.Required("chain_id")
			if err != nil {
				return nil, err
			}
			address, err := requireAddress(call.Args, "address")
			if err != nil {
				return nil, err
			}
			call.Progress(ctx, 0, 2, "Resolving Blockscout instance for chain "+chainID)
			if _, err := tb.Explorer.BaseURL(ctx, chainID); err != nil {
				return nil, err
			}
			call.Progress(ctx, 1, 2, "Fetching contract ABI")
			contract, err := tb.smartContract(ctx, chainID, address)
			if err != nil {
				return nil, err
			}
			call.Progress(ctx, 2, 2, "Contract ABI received")
			return respond(map[string]interface{}{"abi": contract["abi"]}), nil
		},
	}
}

// smartContract fetches a contract payload, through the cache when one is
// configured
func (tb *Toolbox) smartContract(ctx context.Context, chainID, address string) (map[string]interface{}, error) {
	load := func(ctx context.Context) (map[string]interface{}, error) {
		return tb.Explorer.Get(ctx, chainID, "/api/v2/smart-contracts/"+address, nil)
	}
	if tb.contractCache == nil {
		return load(ctx)
	}
	return tb.contractCache.Get(ctx, chainID+":"+strings.ToLower(address), load)
}

// sourceFiles maps file names to source code. A main file without a path
// is named after the contract.
func sourceFiles(contract map[string]interface{}) map[string]string {
	files := make(map[string]string)
	if src := str(contract["source_code"]); src != "" {
		name := str(contract["file_path"])
		if name == "" {
			name = str(contract["name"])
			switch strings.ToLower(str(contract["language"])) {
			case "vyper":
				name += ".vy"
			default:
				name += ".sol"
			}
		}
		files[name] = src
	}
	for _, extra := range toMaps(asList(contract["additional_sources"])) {
		if path := str(extra["file_path"]); path != "" {
			files[path] = str(extra["source_code"])
		}
	}
	return files
}

func asList(v interface{}) []interface{} {
	list, _ := v.([]interface{})
	return list
}

func (tb *Toolbox) inspectContractTool() Tool {
	return Tool{
		Name:  "inspect_contract_code",
		Title: "Inspect Contract Code",
		Description: "Inspect a verified contract's source. Without file_name returns metadata and the list of " +
			"source files; with file_name returns the content of that file.",
		InputSchema: schemaOf(chainIDParam, addressParam("Smart contract address"),
			param{Name: "file_name", Type: "string", Description: "Source file to return, as listed in source_code_tree_structure"}),
		Handler: func(ctx context.Context, call *Call) (*Response, error) {
			chainID, err := call.Args.Required("chain_id")
			if err != nil {
				return nil, err
			}
			address, err := requireAddress(call.Args, "address")
			if err != nil {
				return nil, err
			}
			call.Progress(ctx, 0, 2, "Resolving Blockscout instance for chain "+chainID)
			if _, err := tb.Explorer.BaseURL(ctx, chainID); err != nil {
				return nil, err
			}
			call.Progress(ctx, 1, 2, "Fetching contract source")
			contract, err := tb.smartContract(ctx, chainID, address)
			if err != nil {
				return nil, err
			}
			call.Progress(ctx, 2, 2, "Contract source received")

			files := sourceFiles(contract)
			names := make([]string, 0, len(files))
			for name := range files {
				names = append(names, name)
			}
			sort.Strings(names)

			fileName := call.Args.String("file_name")
			if fileName == "" {
				meta := pick(contract,
					"name", "language", "compiler_version", "verified_at", "optimization_enabled",
					"optimization_runs", "evm_version", "license_type", "proxy_type", "implementations",
					"is_verified", "is_fully_verified", "decoded_constructor_args", "compiler_settings")
				if args := str(contract["constructor_args"]); args != "" {
					v, cut := truncateValues(args)
					meta["constructor_args"] = v
					meta["constructor_args_truncated"] = cut
				}
				meta["source_code_tree_structure"] = names
				out := respond(meta)
				if len(names) == 0 {
					out.withNotes("The contract is not verified, no source code is available.")
				}
				return out, nil
			}

			src, ok := files[fileName]
			if !ok {
				return nil, mcperrors.InvalidParameter("file_name", fileName,
					"file not found; available files: "+strings.Join(names, ", "))
			}
			return respond(map[string]interface{}{"file_name": fileName, "file_content": src}), nil
		},
	}
}
