package web3

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"reflect"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	mcperrors "github.com/ajitpratap0/blockscout-mcp-go/pkg/errors"
	"github.com/ajitpratap0/blockscout-mcp-go/pkg/observability"
)

// CallRequest describes a read-only contract call
type CallRequest struct {
	ChainID  string
	Address  string
	ABI      json.RawMessage // a single function fragment or a full ABI array
	Function string
	Args     []interface{}
	Block    string // "latest" (default), "earliest", a decimal or 0x number
}

// ReadContract calls a view function and returns its decoded outputs in a
// JSON friendly shape. A single output is returned as is, several outputs
// as a list.
func (p *Pool) ReadContract(ctx context.Context, req CallRequest) (interface{}, error) {
	if !common.IsHexAddress(req.Address) {
		return nil, mcperrors.InvalidParameter("address", req.Address, "not a valid hex address")
	}
	method, err := parseMethod(req.ABI, req.Function)
	if err != nil {
		return nil, err
	}
	if len(req.Args) != len(method.Inputs) {
		return nil, mcperrors.InvalidParameter("args", req.Args,
			fmt.Sprintf("%s expects %d arguments, got %d", method.Name, len(method.Inputs), len(req.Args)))
	}

	args := make([]interface{}, len(req.Args))
	for i, in := range method.Inputs {
		v, err := convertArg(in.Type, req.Args[i])
		if err != nil {
			name := in.Name
			if name == "" {
				name = strconv.Itoa(i)
			}
			return nil, mcperrors.InvalidParameter("args", req.Args[i], fmt.Sprintf("argument %s (%s): %v", name, in.Type, err))
		}
		args[i] = v
	}

	packed, err := method.Inputs.Pack(args...)
	if err != nil {
		return nil, mcperrors.InvalidParameter("args", req.Args, err.Error())
	}
	data := append(append([]byte{}, method.ID...), packed...)

	block, err := parseBlock(req.Block)
	if err != nil {
		return nil, err
	}

	c, err := p.client(ctx, req.ChainID)
	if err != nil {
		return nil, err
	}
	to := common.HexToAddress(req.Address)

	callCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	var out []byte
	err = observability.ObserveUpstream(callCtx, p.metrics, ServiceRPC, "eth_call", c.url, func(ctx context.Context) error {
		res, err := c.client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, block)
		if err != nil {
			return mcperrors.UpstreamError(ServiceRPC, c.url, 0, "", err)
		}
		out = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	values, err := method.Outputs.Unpack(out)
	if err != nil {
		return nil, mcperrors.UpstreamError(ServiceRPC, c.url, 0, "", fmt.Errorf("decode %s output: %w", method.Name, err))
	}
	if len(values) == 1 {
		return toJSONValue(values[0]), nil
	}
	result := make([]interface{}, len(values))
	for i, v := range values {
		result[i] = toJSONValue(v)
	}
	return result, nil
}

func parseMethod(raw json.RawMessage, name string) (abi.Method, error) {
	doc := strings.TrimSpace(string(raw))
	if doc == "" {
		return abi.Method{}, mcperrors.MissingParameter("abi")
	}
	if strings.HasPrefix(doc, "{") {
		doc = "[" + doc + "]"
	}
	parsed, err := abi.JSON(strings.NewReader(doc))
	if err != nil {
		return abi.Method{}, mcperrors.InvalidParameter("abi", nil, err.Error())
	}

	if name == "" && len(parsed.Methods) == 1 {
		for _, m := range parsed.Methods {
			return m, nil
		}
	}
	if m, ok := parsed.Methods[name]; ok {
		return m, nil
	}
	for _, m := range parsed.Methods {
		if m.RawName == name {
			return m, nil
		}
	}
	return abi.Method{}, mcperrors.InvalidParameter("function_name", name, "function not present in the ABI")
}

func parseBlock(block string) (*big.Int, error) {
	switch b := strings.ToLower(strings.TrimSpace(block)); b {
	case "", "latest":
		return nil, nil
	case "earliest":
		return big.NewInt(0), nil
	default:
		n, ok := new(big.Int).SetString(b, 0)
		if !ok || n.Sign() < 0 {
			return nil, mcperrors.InvalidParameter("block", block, "expected latest, earliest or a block number")
		}
		return n, nil
	}
}

// convertArg turns a decoded JSON value into the Go type abi.Pack expects
// for t
func convertArg(t abi.Type, v interface{}) (interface{}, error) {
	switch t.T {
	case abi.AddressTy:
		s, ok := v.(string)
		if !ok || !common.IsHexAddress(s) {
			return nil, fmt.Errorf("expected a hex address, got %v", v)
		}
		return common.HexToAddress(s), nil

	case abi.IntTy, abi.UintTy:
		n, err := toBigInt(v)
		if err != nil {
			return nil, err
		}
		goType := t.GetType()
		if goType == reflect.TypeOf(&big.Int{}) {
			return n, nil
		}
		out := reflect.New(goType).Elem()
		if t.T == abi.UintTy {
			if n.Sign() < 0 || n.BitLen() > t.Size {
				return nil, fmt.Errorf("%s out of range for %s", n, t)
			}
			out.SetUint(n.Uint64())
		} else {
			if !n.IsInt64() || n.BitLen() >= t.Size {
				return nil, fmt.Errorf("%s out of range for %s", n, t)
			}
			out.SetInt(n.Int64())
		}
		return out.Interface(), nil

	case abi.BoolTy:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			return strconv.ParseBool(b)
		}
		return nil, fmt.Errorf("expected a boolean, got %v", v)

	case abi.StringTy:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected a string, got %v", v)
		}
		return s, nil

	case abi.BytesTy:
		return toBytes(v)

	case abi.FixedBytesTy:
		b, err := toBytes(v)
		if err != nil {
			return nil, err
		}
		if len(b) > t.Size {
			return nil, fmt.Errorf("got %d bytes, %s holds %d", len(b), t, t.Size)
		}
		arr := reflect.New(t.GetType()).Elem()
		reflect.Copy(arr, reflect.ValueOf(b))
		return arr.Interface(), nil

	case abi.SliceTy, abi.ArrayTy:
		items, ok := v.([]interface{})
		if !ok {
			return nil, fmt.Errorf("expected a list, got %v", v)
		}
		var out reflect.Value
		if t.T == abi.SliceTy {
			out = reflect.MakeSlice(t.GetType(), len(items), len(items))
		} else {
			if len(items) != t.Size {
				return nil, fmt.Errorf("expected %d elements, got %d", t.Size, len(items))
			}
			out = reflect.New(t.GetType()).Elem()
		}
		for i, item := range items {
			ev, err := convertArg(*t.Elem, item)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			out.Index(i).Set(reflect.ValueOf(ev))
		}
		return out.Interface(), nil

	case abi.TupleTy:
		out := reflect.New(t.GetType()).Elem()
		for i, elem := range t.TupleElems {
			var raw interface{}
			switch tv := v.(type) {
			case []interface{}:
				if len(tv) != len(t.TupleElems) {
					return nil, fmt.Errorf("expected %d tuple fields, got %d", len(t.TupleElems), len(tv))
				}
				raw = tv[i]
			case map[string]interface{}:
				field, ok := tv[t.TupleRawNames[i]]
				if !ok {
					return nil, fmt.Errorf("missing tuple field %q", t.TupleRawNames[i])
				}
				raw = field
			default:
				return nil, fmt.Errorf("expected a list or object for tuple, got %v", v)
			}
			fv, err := convertArg(*elem, raw)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", t.TupleRawNames[i], err)
			}
			out.Field(i).Set(reflect.ValueOf(fv))
		}
		return out.Interface(), nil
	}
	return nil, fmt.Errorf("unsupported argument type %s", t)
}

func toBigInt(v interface{}) (*big.Int, error) {
	var s string
	switch n := v.(type) {
	case json.Number:
		s = n.String()
	case string:
		s = strings.TrimSpace(n)
	case float64:
		if n != float64(int64(n)) {
			return nil, fmt.Errorf("expected an integer, got %v", n)
		}
		return big.NewInt(int64(n)), nil
	case int:
		return big.NewInt(int64(n)), nil
	case int64:
		return big.NewInt(n), nil
	default:
		return nil, fmt.Errorf("expected an integer, got %v", v)
	}
	out, ok := new(big.Int).SetString(s, 0)
	if !ok {
		return nil, fmt.Errorf("expected an integer, got %q", s)
	}
	return out, nil
}

func toBytes(v interface{}) ([]byte, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("expected a 0x-prefixed hex string, got %v", v)
	}
	b, err := hex.DecodeString(strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X"))
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	return b, nil
}

// toJSONValue renders unpacked ABI values so they marshal losslessly:
// integers become decimal strings, byte values hex strings and tuples
// objects keyed by field name.
func toJSONValue(v interface{}) interface{} {
	switch x := v.(type) {
	case *big.Int:
		return x.String()
	case common.Address:
		return x.Hex()
	case []byte:
		return "0x" + hex.EncodeToString(x)
	case string, bool:
		return x
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			b := make([]byte, rv.Len())
			reflect.Copy(reflect.ValueOf(b), rv)
			return "0x" + hex.EncodeToString(b)
		}
		fallthrough
	case reflect.Slice:
		out := make([]interface{}, rv.Len())
		for i := range out {
			out[i] = toJSONValue(rv.Index(i).Interface())
		}
		return out
	case reflect.Struct:
		out := make(map[string]interface{}, rv.NumField())
		for i := 0; i < rv.NumField(); i++ {
			f := rv.Type().Field(i)
			if !f.IsExported() {
				continue
			}
			name := f.Name
			if tag := f.Tag.Get("json"); tag != "" {
				name = tag
			}
			out[name] = toJSONValue(rv.Field(i).Interface())
		}
		return out
	case reflect.Ptr:
		if rv.IsNil() {
			return nil
		}
		return toJSONValue(rv.Elem().Interface())
	}
	return v
}
