package pagination

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrInvalidCursor is wrapped by every cursor decoding failure
	ErrInvalidCursor = errors.New("invalid or expired pagination cursor")

	// ErrEmptyCursor is returned when Decode is given an empty string
	ErrEmptyCursor = fmt.Errorf("%w: cursor cannot be empty", ErrInvalidCursor)

	// ErrMalformedCursor is returned for tokens this codec did not produce
	ErrMalformedCursor = fmt.Errorf("%w: malformed cursor", ErrInvalidCursor)
)

// Params is the flat mapping a cursor carries
type Params map[string]Value

// Clone returns a shallow copy of p
func (p Params) Clone() Params {
	if p == nil {
		return nil
	}
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Interface converts p into a plain map suitable for JSON tool arguments
func (p Params) Interface() map[string]interface{} {
	out := make(map[string]interface{}, len(p))
	for k, v := range p {
		out[k] = v.Interface()
	}
	return out
}

// ParamsFromJSON converts a decoded JSON object, such as an upstream
// next_page_params block, into Params. Nested objects and arrays are
// rejected.
func ParamsFromJSON(obj map[string]interface{}) (Params, error) {
	if obj == nil {
		return nil, nil
	}
	out := make(Params, len(obj))
	for k, raw := range obj {
		v, err := ValueOf(raw)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

// Encode serializes p into an url-safe token. The encoding is canonical:
// keys are sorted so equal Params always produce the same token. An empty
// Params encodes to "".
func Encode(p Params) string {
	if len(p) == 0 {
		return ""
	}
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		// marshalling a string key and a Value cannot fail
		kb, _ := json.Marshal(k)
		vb, _ := p[k].MarshalJSON()
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return base64.RawURLEncoding.EncodeToString(buf.Bytes())
}

// Decode parses a token produced by Encode. It fails with ErrEmptyCursor
// for "" and ErrMalformedCursor for anything that is not base64 of a flat
// JSON object.
func Decode(cursor string) (Params, error) {
	if cursor == "" {
		return nil, ErrEmptyCursor
	}

	// accept padded tokens too
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(cursor, "="))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCursor, err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var obj map[string]interface{}
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCursor, err)
	}
	if obj == nil {
		return nil, fmt.Errorf("%w: cursor does not hold an object", ErrMalformedCursor)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data", ErrMalformedCursor)
	}

	params, err := ParamsFromJSON(obj)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCursor, err)
	}
	return params, nil
}

// Position is the parsed form of an optional cursor argument: either the
// start of the result set or a point after a previously returned item.
type Position struct {
	after Params
}

// Start is the Position used when no cursor was supplied
var Start = Position{}

// After returns the Position that resumes after params
func After(params Params) Position {
	return Position{after: params}
}

// IsStart reports whether no cursor was supplied
func (p Position) IsStart() bool { return p.after == nil }

// Params returns the resumption parameters, nil at Start
func (p Position) Params() Params { return p.after }

// ParsePosition interprets a tool's cursor argument. An empty string is
// Start rather than an error.
func ParsePosition(cursor string) (Position, error) {
	if cursor == "" {
		return Start, nil
	}
	params, err := Decode(cursor)
	if err != nil {
		return Start, err
	}
	return After(params), nil
}
