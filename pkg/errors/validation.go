package errors

import (
	"fmt"
)

// ParameterErrorData is attached to parameter validation errors
type ParameterErrorData struct {
	Parameter string      `json:"parameter"`
	Value     interface{} `json:"value,omitempty"`
	Required  bool        `json:"required,omitempty"`
	Reason    string      `json:"reason,omitempty"`
}

// CursorErrorData is attached to InvalidCursor errors
type CursorErrorData struct {
	Reason string `json:"reason"`
}

// InvalidParameter reports a parameter whose value failed validation
func InvalidParameter(param string, value interface{}, reason string) MCPError {
	return NewError(
		CodeInvalidParameter,
		fmt.Sprintf("Invalid parameter '%s': %s", param, reason),
		CategoryValidation,
	).WithData(&ParameterErrorData{
		Parameter: param,
		Value:     value,
		Reason:    reason,
	})
}

// MissingParameter reports a required parameter that was not supplied
func MissingParameter(param string) MCPError {
	return NewError(
		CodeMissingParameter,
		fmt.Sprintf("Missing required parameter: %s", param),
		CategoryValidation,
	).WithData(&ParameterErrorData{
		Parameter: param,
		Required:  true,
	})
}

// InvalidCursor reports a pagination cursor that could not be decoded.
// Callers are expected to retry without the cursor.
func InvalidCursor(cause error) MCPError {
	reason := "Invalid or expired pagination cursor"
	if cause != nil {
		reason = cause.Error()
	}
	return WrapError(
		cause,
		CodeInvalidCursor,
		"Invalid or expired pagination cursor",
		CategoryValidation,
	).WithData(&CursorErrorData{Reason: reason})
}
