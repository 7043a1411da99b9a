package tools

import (
	"encoding/json"
	"fmt"
	"strings"

	mcperrors "github.com/ajitpratap0/blockscout-mcp-go/pkg/errors"
)

// Args are the decoded tool arguments. Types were checked against the
// tool's schema before the handler runs, so accessors only convert.
type Args map[string]interface{}

// String returns the trimmed string under key
func (a Args) String(key string) string {
	switch v := a[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Required returns the string under key or a MissingParameter error
func (a Args) Required(key string) (string, error) {
	s := a.String(key)
	if s == "" {
		return "", mcperrors.MissingParameter(key)
	}
	return s, nil
}

// Bool returns the boolean under key, def when absent
func (a Args) Bool(key string, def bool) bool {
	switch v := a[key].(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	}
	return def
}

// Strings returns the string list under key. A single string is split on
// commas so REST callers can pass repeated values compactly.
func (a Args) Strings(key string) []string {
	var out []string
	switch v := a[key].(type) {
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case string:
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// Object returns the JSON object under key
func (a Args) Object(key string) map[string]interface{} {
	obj, _ := a[key].(map[string]interface{})
	return obj
}

// List returns the JSON array under key
func (a Args) List(key string) []interface{} {
	list, _ := a[key].([]interface{})
	return list
}

// Raw re-encodes the value under key
func (a Args) Raw(key string) (json.RawMessage, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return nil, nil
	}
	if s, ok := v.(string); ok {
		return json.RawMessage(s), nil
	}
	return json.Marshal(v)
}

// Has reports whether key was supplied
func (a Args) Has(key string) bool {
	v, ok := a[key]
	return ok && v != nil
}
