package tools

import (
	"encoding/json"
)

// param describes one tool argument for the generated input schema
type param struct {
	Name        string
	Type        string // JSON Schema type; "any" leaves it open
	Description string
	Required    bool
	Items       string // element type for arrays
}

func schemaOf(params ...param) json.RawMessage {
	props := make(map[string]interface{}, len(params))
	required := []string{}
	for _, p := range params {
		prop := map[string]interface{}{"description": p.Description}
		if p.Type != "any" {
			prop["type"] = p.Type
		}
		if p.Type == "array" && p.Items != "" {
			prop["items"] = map[string]interface{}{"type": p.Items}
		}
		props[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	doc := map[string]interface{}{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		panic(err)
	}
	return raw
}

var (
	chainIDParam = param{Name: "chain_id", Type: "string", Required: true,
		Description: "The ID of the blockchain, e.g. \"1\" for Ethereum mainnet"}
	cursorParam = param{Name: "cursor", Type: "string",
		Description: "The pagination cursor from a previous response to get the next page of results"}
)

func addressParam(desc string) param {
	return param{Name: "address", Type: "string", Required: true, Description: desc}
}

func txHashParam() param {
	return param{Name: "transaction_hash", Type: "string", Required: true, Description: "Transaction hash"}
}
