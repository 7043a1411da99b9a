package tools

import (
	"context"
	"strings"
)

var recommendedChains = []map[string]string{
	{"chain_id": "1", "name": "Ethereum"},
	{"chain_id": "10", "name": "OP Mainnet"},
	{"chain_id": "56", "name": "BNB Smart Chain"},
	{"chain_id": "100", "name": "Gnosis"},
	{"chain_id": "137", "name": "Polygon PoS"},
	{"chain_id": "8453", "name": "Base"},
	{"chain_id": "42161", "name": "Arbitrum One"},
	{"chain_id": "11155111", "name": "Sepolia"},
}

var (
	errorHandlingRules = []string{
		"Errors carry a code: -32801 means the cursor is invalid, retry without it.",
		"-32804 means the response is too large, narrow the query with filters or a more specific endpoint.",
		"Upstream errors keep the explorer's HTTP status in error.data.status_code; 5xx are transient, 4xx are not.",
	}
	chainRules = []string{
		"Every tool except get_chains_list and get_address_by_ens_name needs chain_id.",
		"If the chain is unclear ask the user or call get_chains_list; never guess an id.",
	}
	paginationRules = []string{
		"When a response has pagination.next_call, call that tool with exactly those params to continue.",
		"Cursors are opaque. Do not build or edit them.",
		"Stop paginating once you have enough data to answer.",
	}
	timeRules = []string{
		"Use age_from/age_to (ISO 8601) on get_transactions_by_address and get_token_transfers_by_address for time ranges.",
		"Use get_block_number with a datetime to translate a time into a block.",
	}
	efficiencyRules = []string{
		"Prefer get_transactions_by_address over paging through blocks.",
		"Use transaction_summary for a human readable description before decoding logs by hand.",
		"Use direct_api_call only for endpoints no dedicated tool covers.",
	}
)

// ServerInstructions is sent in the initialize result
func ServerInstructions(version string) string {
	var b strings.Builder
	b.WriteString("Blockscout MCP server " + version + ".\n")
	b.WriteString("Call __unlock_blockchain_analysis__ before any other tool to receive the working rules.\n")
	for _, group := range [][]string{errorHandlingRules, chainRules, paginationRules} {
		for _, rule := range group {
			b.WriteString("- " + rule + "\n")
		}
	}
	return b.String()
}

func (tb *Toolbox) unlockTool() Tool {
	return Tool{
		Name:  "__unlock_blockchain_analysis__",
		Title: "Unlock Blockchain Analysis",
		Description: "Provides the rules for working with the blockchain tools. " +
			"MUST be called before any other tool in a session.",
		InputSchema: schemaOf(),
		Handler: func(ctx context.Context, call *Call) (*Response, error) {
			data := map[string]interface{}{
				"version":                       tb.Version,
				"error_handling_rules":          errorHandlingRules,
				"chain_id_guidance":             map[string]interface{}{"rules": chainRules, "recommended_chains": recommendedChains},
				"pagination_rules":              paginationRules,
				"time_based_query_rules":        timeRules,
				"efficiency_optimization_rules": efficiencyRules,
			}
			return respond(data), nil
		},
	}
}
