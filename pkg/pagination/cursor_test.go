package pagination

import (
	"encoding/base64"
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildParams(first string, keys []string, ints []int64, strs []string, floats []float64) Params {
	p := Params{first: Int(0)}
	for i, k := range keys {
		switch i % 4 {
		case 0:
			if len(ints) > 0 {
				p[k] = Int(ints[i%len(ints)])
			}
		case 1:
			if len(strs) > 0 {
				p[k] = String(strs[i%len(strs)])
			}
		case 2:
			if len(floats) > 0 {
				p[k] = Float(floats[i%len(floats)])
			}
		default:
			p[k] = Bool(i%2 == 0)
		}
	}
	return p
}

func TestCursorRoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("decode(encode(m)) == m", prop.ForAll(
		func(first string, keys []string, ints []int64, strs []string, floats []float64) bool {
			p := buildParams(first, keys, ints, strs, floats)
			decoded, err := Decode(Encode(p))
			if err != nil {
				return false
			}
			if len(decoded) != len(p) {
				return false
			}
			for k, v := range p {
				if decoded[k] != v {
					return false
				}
			}
			return true
		},
		gen.Identifier(),
		gen.SliceOf(gen.Identifier()),
		gen.SliceOf(gen.Int64()),
		gen.SliceOf(gen.AnyString()),
		gen.SliceOf(gen.Float64()),
	))

	properties.Property("encoding is deterministic", prop.ForAll(
		func(first string, keys []string, ints []int64) bool {
			p := buildParams(first, keys, ints, nil, nil)
			return Encode(p) == Encode(p.Clone())
		},
		gen.Identifier(),
		gen.SliceOf(gen.Identifier()),
		gen.SliceOf(gen.Int64()),
	))

	properties.TestingRun(t)
}

func TestEncodeEmpty(t *testing.T) {
	assert.Equal(t, "", Encode(Params{}))
	assert.Equal(t, "", Encode(nil))
}

func TestDecodeEmpty(t *testing.T) {
	_, err := Decode("")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyCursor)
	assert.ErrorIs(t, err, ErrInvalidCursor)
	assert.False(t, errors.Is(err, ErrMalformedCursor))
}

func TestDecodeMalformed(t *testing.T) {
	enc := base64.RawURLEncoding.EncodeToString
	tests := []struct {
		name   string
		cursor string
	}{
		{"not base64", "!!not-base64!!"},
		{"base64 of garbage", enc([]byte("not json"))},
		{"json array", enc([]byte(`[1,2,3]`))},
		{"json string", enc([]byte(`"abc"`))},
		{"json null", enc([]byte(`null`))},
		{"nested object", enc([]byte(`{"a":{"b":1}}`))},
		{"truncated", Encode(Params{"block_number": Int(100), "index": Int(2)})[:7]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.cursor)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidCursor)
			assert.ErrorIs(t, err, ErrMalformedCursor)
			assert.NotEqual(t, ErrEmptyCursor.Error(), err.Error())
		})
	}
}

func TestDecodePreservesTypes(t *testing.T) {
	p := Params{"block_number": Int(100), "index": Int(2)}
	decoded, err := Decode(Encode(p))
	require.NoError(t, err)
	assert.Equal(t, p, decoded)
	assert.Equal(t, KindInt, decoded["block_number"].Kind())
	assert.Equal(t, int64(100), decoded["block_number"].Int64())
}

func TestDecodeMixedScalars(t *testing.T) {
	p := Params{
		"hash":    String("0xabc"),
		"value":   String("1000000000000000000000"),
		"fee":     Null(),
		"ratio":   Float(2),
		"spent":   Bool(true),
		"items":   Int(50),
		"negated": Int(-7),
	}
	decoded, err := Decode(Encode(p))
	require.NoError(t, err)
	assert.Equal(t, p, decoded)
	assert.Equal(t, KindFloat, decoded["ratio"].Kind())
}

func TestDecodeAcceptsPadding(t *testing.T) {
	raw := base64.URLEncoding.EncodeToString([]byte(`{"page":1}`))
	decoded, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, Params{"page": Int(1)}, decoded)
}

func TestParsePosition(t *testing.T) {
	pos, err := ParsePosition("")
	require.NoError(t, err)
	assert.True(t, pos.IsStart())
	assert.Nil(t, pos.Params())

	token := Encode(Params{"index": Int(3)})
	pos, err = ParsePosition(token)
	require.NoError(t, err)
	assert.False(t, pos.IsStart())
	assert.Equal(t, Params{"index": Int(3)}, pos.Params())

	_, err = ParsePosition("%%%")
	assert.ErrorIs(t, err, ErrInvalidCursor)
}

func TestParamsFromJSON(t *testing.T) {
	p, err := ParamsFromJSON(map[string]interface{}{
		"block_number": float64(19000000),
		"index":        float64(4),
		"hash":         "0x01",
		"fee":          nil,
	})
	require.NoError(t, err)
	assert.Equal(t, Int(19000000), p["block_number"])
	assert.Equal(t, String("0x01"), p["hash"])
	assert.True(t, p["fee"].IsNull())

	_, err = ParamsFromJSON(map[string]interface{}{"nested": []interface{}{1}})
	assert.Error(t, err)
}

func TestValueQueryString(t *testing.T) {
	assert.Equal(t, "100", Int(100).QueryString())
	assert.Equal(t, "abc", String("abc").QueryString())
	assert.Equal(t, "1.5", Float(1.5).QueryString())
	assert.Equal(t, "true", Bool(true).QueryString())
	assert.Equal(t, "", Null().QueryString())
}
