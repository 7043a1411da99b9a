package tools

import (
	"fmt"
)

// Strings longer than this are cut in log data and decoded inputs
const inputSizeLimit = 514

const logTruncationNote = "One or more log items had a `data` field larger than %d characters; it was truncated " +
	"and flagged with `data_truncated: true`. Use direct_api_call on /api/v2/transactions/{hash}/logs " +
	"to fetch the complete data when it matters."

const inputTruncationNote = "Long values in the decoded input were replaced with " +
	"{\"value_sample\": ..., \"value_truncated\": true}. Call get_transaction_info with include_raw_input=true " +
	"or use direct_api_call on /api/v2/transactions/{hash} for the full input."

// truncateLogData shortens oversized data fields in place
func truncateLogData(item map[string]interface{}) bool {
	data, ok := item["data"].(string)
	if !ok || len(data) <= inputSizeLimit {
		return false
	}
	item["data"] = data[:inputSizeLimit]
	item["data_truncated"] = true
	return true
}

// truncateValues replaces long strings anywhere inside v with a sample
// marker and reports whether anything was cut
func truncateValues(v interface{}) (interface{}, bool) {
	switch x := v.(type) {
	case string:
		if len(x) > inputSizeLimit {
			return map[string]interface{}{"value_sample": x[:inputSizeLimit], "value_truncated": true}, true
		}
		return x, false
	case []interface{}:
		out := make([]interface{}, len(x))
		cut := false
		for i, item := range x {
			var c bool
			out[i], c = truncateValues(item)
			cut = cut || c
		}
		return out, cut
	case map[string]interface{}:
		out := make(map[string]interface{}, len(x))
		cut := false
		for k, item := range x {
			var c bool
			out[k], c = truncateValues(item)
			cut = cut || c
		}
		return out, cut
	default:
		return v, false
	}
}

func logNote() string {
	return fmt.Sprintf(logTruncationNote, inputSizeLimit)
}
