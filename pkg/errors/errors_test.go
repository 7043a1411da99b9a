package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParameterErrors(t *testing.T) {
	err := InvalidParameter("address", "0xzz", "not a valid hex address")
	assert.Equal(t, CodeInvalidParameter, err.Code())
	assert.Equal(t, CategoryValidation, err.Category())
	assert.Contains(t, err.Error(), "address")

	data, ok := err.Data().(*ParameterErrorData)
	require.True(t, ok)
	assert.Equal(t, "0xzz", data.Value)

	missing := MissingParameter("chain_id")
	assert.True(t, IsCode(missing, CodeMissingParameter))
	assert.True(t, missing.Data().(*ParameterErrorData).Required)
}

func TestInvalidCursorWrapsCause(t *testing.T) {
	cause := fmt.Errorf("bad base64")
	err := InvalidCursor(cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "bad base64", err.Data().(*CursorErrorData).Reason)
}

func TestUpstreamStatusAndRetry(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		status    int
		hasStatus bool
		retryable bool
	}{
		{"not found", UpstreamError("blockscout", "https://x/api", 404, "missing", nil), 404, true, false},
		{"rate limited", UpstreamError("blockscout", "", 429, "", nil), 429, true, true},
		{"bad gateway", UpstreamError("bens", "", 502, "", nil), 502, true, true},
		{"transport", UpstreamError("bens", "", 0, "", io.ErrUnexpectedEOF), 0, false, true},
		{"validation", MissingParameter("x"), 0, false, false},
		{"plain", fmt.Errorf("boom"), 0, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, ok := UpstreamStatus(tt.err)
			assert.Equal(t, tt.hasStatus, ok)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
		})
	}
}

func TestUpstreamErrorThroughWrapping(t *testing.T) {
	err := fmt.Errorf("fetch block: %w", UpstreamError("blockscout", "", 503, "", nil))
	status, ok := UpstreamStatus(err)
	require.True(t, ok)
	assert.Equal(t, 503, status)
	assert.True(t, IsCategory(err, CategoryUpstream))
}

func TestResponseTooLarge(t *testing.T) {
	err := ResponseTooLarge(150000, 100000, "narrow the query")
	assert.Equal(t, CategoryLimit, err.Category())
	assert.Contains(t, err.Error(), "150000")
	assert.Contains(t, err.Error(), "narrow the query")
}

func TestMarshalJSON(t *testing.T) {
	raw, err := json.Marshal(MissingParameter("hash").WithDetail("required for lookup"))
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.EqualValues(t, CodeMissingParameter, out["code"])
	assert.Equal(t, "validation", out["category"])
	assert.Equal(t, "required for lookup", out["details"])
	assert.Equal(t, "hash", out["data"].(map[string]interface{})["parameter"])
}

func TestWithDetailDoesNotMutate(t *testing.T) {
	base := ToolNotFound("nope")
	derived := base.WithDetail("one").WithDetail("two")
	assert.Empty(t, base.Details())
	assert.Equal(t, "one; two", derived.Details())
}

func TestToJSONRPCError(t *testing.T) {
	assert.Nil(t, ToJSONRPCError(nil))

	rpcErr := ToJSONRPCError(InvalidParameter("page_size", 0, "must be positive"))
	assert.Equal(t, CodeInvalidParameter, rpcErr.Code)
	assert.IsType(t, &ParameterErrorData{}, rpcErr.Data)

	rpcErr = ToJSONRPCError(context.Canceled)
	assert.Equal(t, CodeOperationCanceled, rpcErr.Code)

	rpcErr = ToJSONRPCError(fmt.Errorf("surprise"))
	assert.Equal(t, CodeInternalError, rpcErr.Code)
	assert.Equal(t, "surprise", rpcErr.Message)
}

func TestErrorCodeRegistry(t *testing.T) {
	assert.Equal(t, "ResponseTooLarge", GetErrorCodeName(CodeResponseTooLarge))
	assert.Equal(t, "UpstreamError", GetErrorCodeName(CodeUpstreamError))
	assert.Equal(t, "UnknownError", GetErrorCodeName(-1))
}
