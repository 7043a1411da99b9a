package errors

import (
	"context"
	"errors"

	"github.com/ajitpratap0/blockscout-mcp-go/pkg/protocol"
)

// ToJSONRPCError converts any error into a JSON-RPC error object.
// Errors outside this package become internal errors.
func ToJSONRPCError(err error) *protocol.Error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		err = OperationCanceled(err.Error())
	}
	if mcpErr, ok := AsMCPError(err); ok {
		return &protocol.Error{
			Code:    mcpErr.Code(),
			Message: mcpErr.Error(),
			Data:    mcpErr.Data(),
		}
	}
	return &protocol.Error{
		Code:    CodeInternalError,
		Message: err.Error(),
	}
}
