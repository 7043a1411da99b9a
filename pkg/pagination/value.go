package pagination

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind identifies which variant a Value holds
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	default:
		return "unknown"
	}
}

// Value is a JSON scalar carried inside a cursor. The zero Value is null.
type Value struct {
	kind Kind
	s    string
	i    int64
	f    float64
	b    bool
}

// Null returns the null Value
func Null() Value { return Value{} }

// String returns a string Value
func String(s string) Value { return Value{kind: KindString, s: s} }

// Int returns an integer Value
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float returns a floating point Value
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// Bool returns a boolean Value
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

// Str returns the string payload, empty for other kinds
func (v Value) Str() string { return v.s }

func (v Value) Int64() int64 { return v.i }


// Interface returns the Go value JSON decoding would produce, with
// integers kept as int64
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindBool:
		return v.b
	default:
		return nil
	}
}

// QueryString renders the value for an upstream query parameter.
// Null renders as the empty string.
func (v Value) QueryString() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return ""
	}
}

func (v Value) String() string {
	if v.kind == KindString {
		return strconv.Quote(v.s)
	}
	if v.kind == KindNull {
		return "null"
	}
	return v.QueryString()
}

// MarshalJSON implements json.Marshaler
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.s)
	case KindInt:
		return []byte(strconv.FormatInt(v.i, 10)), nil
	case KindFloat:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return []byte("null"), nil
		}
		// keep a fractional marker so the value decodes back as a float
		out := strconv.FormatFloat(v.f, 'g', -1, 64)
		if v.f == math.Trunc(v.f) && !strings.ContainsAny(out, ".eE") {
			out += ".0"
		}
		return []byte(out), nil
	case KindBool:
		return []byte(strconv.FormatBool(v.b)), nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON implements json.Unmarshaler. Objects and arrays are
// rejected.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	val, err := ValueOf(raw)
	if err != nil {
		return err
	}
	*v = val
	return nil
}

// ValueOf converts a decoded JSON scalar into a Value. json.Number values
// become Int when they hold an integer and Float otherwise.
func ValueOf(raw interface{}) (Value, error) {
	switch x := raw.(type) {
	case nil:
		return Null(), nil
	case string:
		return String(x), nil
	case bool:
		return Bool(x), nil
	case json.Number:
		if i, err := strconv.ParseInt(string(x), 10, 64); err == nil {
			return Int(i), nil
		}
		f, err := strconv.ParseFloat(string(x), 64)
		if err != nil {
			return Value{}, fmt.Errorf("number %q out of range", string(x))
		}
		return Float(f), nil
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return Int(int64(x)), nil
		}
		return Float(x), nil
	case int:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return String(strconv.FormatUint(x, 10)), nil
		}
		return Int(int64(x)), nil
	default:
		return Value{}, fmt.Errorf("unsupported cursor value of type %T", raw)
	}
}
