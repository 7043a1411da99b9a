package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	mcperrors "github.com/ajitpratap0/blockscout-mcp-go/pkg/errors"
	"github.com/ajitpratap0/blockscout-mcp-go/pkg/pagination"
	"github.com/ajitpratap0/blockscout-mcp-go/pkg/utils"
)

var txHashPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

func requireAddress(args Args, key string) (string, error) {
	s, err := args.Required(key)
	if err != nil {
		return "", err
	}
	if !common.IsHexAddress(s) || !strings.HasPrefix(strings.ToLower(s), "0x") {
		return "", mcperrors.InvalidParameter(key, s, "expected a 0x-prefixed 20-byte hex address")
	}
	return s, nil
}

func requireHash(args Args, key string) (string, error) {
	s, err := args.Required(key)
	if err != nil {
		return "", err
	}
	if !txHashPattern.MatchString(s) {
		return "", mcperrors.InvalidParameter(key, s, "expected a 0x-prefixed 32-byte hex hash")
	}
	return s, nil
}

// applyCursor merges the parameters encoded in cursor into query
func applyCursor(query url.Values, cursor string) error {
	pos, err := pagination.ParsePosition(cursor)
	if err != nil {
		return mcperrors.InvalidCursor(err)
	}
	for k, v := range pos.Params() {
		query.Set(k, v.QueryString())
	}
	return nil
}

// upstreamNext converts an upstream next_page_params block into cursor
// params; nil means the upstream has no further page
func upstreamNext(obj map[string]interface{}) (pagination.Params, error) {
	raw, _ := obj["next_page_params"].(map[string]interface{})
	if len(raw) == 0 {
		return nil, nil
	}
	params, err := pagination.ParamsFromJSON(raw)
	if err != nil {
		return nil, mcperrors.UpstreamError("blockscout", "", 0, "", fmt.Errorf("unusable next_page_params: %w", err))
	}
	return params, nil
}

func items(obj map[string]interface{}) []interface{} {
	list, _ := obj["items"].([]interface{})
	return list
}

// field walks nested objects: field(tx, "from", "hash")
func field(v interface{}, path ...string) interface{} {
	for _, key := range path {
		obj, ok := v.(map[string]interface{})
		if !ok {
			return nil
		}
		v = obj[key]
	}
	return v
}

func str(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case json.Number:
		return s.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(s)
	}
}

// addressHash flattens a Blockscout address object to its hash
func addressHash(v interface{}) interface{} {
	if obj, ok := v.(map[string]interface{}); ok {
		return obj["hash"]
	}
	return v
}

// pick copies the listed keys that are present
func pick(obj map[string]interface{}, keys ...string) map[string]interface{} {
	out := make(map[string]interface{}, len(keys))
	for _, k := range keys {
		if v, ok := obj[k]; ok {
			out[k] = v
		}
	}
	return out
}

// extractFields builds an Extractor that copies the named scalar fields of
// an item into the cursor
func extractFields(keys ...string) pagination.Extractor[map[string]interface{}] {
	return func(item map[string]interface{}) (pagination.Params, error) {
		out := make(pagination.Params, len(keys))
		for _, k := range keys {
			raw, ok := item[k]
			if !ok {
				continue
			}
			v, err := pagination.ValueOf(raw)
			if err != nil {
				return nil, fmt.Errorf("cursor field %s: %w", k, err)
			}
			out[k] = v
		}
		return out, nil
	}
}

// formatUnits renders an integer token amount with decimals applied.
// Values that do not parse are returned unchanged.
func formatUnits(value, decimals interface{}) string {
	raw := str(value)
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return raw
	}
	places, err := decimal.NewFromString(str(decimals))
	if err != nil || !places.IsInteger() {
		return d.String()
	}
	return d.Shift(-int32(places.IntPart())).String()
}

func baseParams(chainID string, extra map[string]interface{}) map[string]interface{} {
	out := map[string]interface{}{"chain_id": chainID}
	for k, v := range extra {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		if l, ok := v.([]string); ok && len(l) == 0 {
			continue
		}
		out[k] = v
	}
	return out
}

func toMaps(list []interface{}) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	return out
}

func equalHex(a, b string) bool {
	return strings.EqualFold(strings.TrimPrefix(strings.ToLower(a), "0x"), strings.TrimPrefix(strings.ToLower(b), "0x"))
}

var (
	errNoBlocks      = errors.New("no blocks returned")
	errNoBlockAtTime = errors.New("no block found for the given time")
)

// decodeList decodes an upstream JSON array of objects
func decodeList(raw []byte) ([]map[string]interface{}, error) {
	v, err := utils.DecodeJSON(raw)
	if err != nil {
		return nil, mcperrors.UpstreamError("blockscout", "", 0, "", err)
	}
	list, ok := v.([]interface{})
	if !ok {
		return nil, mcperrors.UpstreamError("blockscout", "", 0, "", errors.New("expected a JSON array"))
	}
	return toMaps(list), nil
}

func invalidCursor(err error) error {
	return mcperrors.InvalidCursor(err)
}
