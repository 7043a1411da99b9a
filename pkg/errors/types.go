// Package errors provides the structured error model shared by the MCP and
// REST surfaces. Every error carries a JSON-RPC compatible code and a
// category the REST façade maps onto an HTTP status.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Category classifies an error for handling and status mapping
type Category string

const (
	CategoryValidation Category = "validation"
	CategoryNotFound   Category = "not_found"
	CategoryUpstream   Category = "upstream"
	CategoryLimit      Category = "limit"
	CategoryProtocol   Category = "protocol"
	CategoryInternal   Category = "internal"
	CategoryCancelled  Category = "cancelled"
)

// MCPError is implemented by every error created in this package
type MCPError interface {
	error

	// Code returns the JSON-RPC error code
	Code() int

	// Message returns the human-readable message
	Message() string

	// Details returns extra technical description, may be empty
	Details() string

	// Data returns structured data for programmatic handling
	Data() interface{}

	// Category returns the error category
	Category() Category

	// WithDetail returns a copy with the detail appended
	WithDetail(detail string) MCPError

	// WithData returns a copy carrying data
	WithData(data interface{}) MCPError

	Unwrap() error
}

type baseError struct {
	code     int
	message  string
	details  string
	data     interface{}
	category Category
	cause    error
}

func (e *baseError) Error() string {
	if e.details != "" {
		return fmt.Sprintf("%s: %s", e.message, e.details)
	}
	return e.message
}

func (e *baseError) Code() int          { return e.code }
func (e *baseError) Message() string    { return e.message }
func (e *baseError) Details() string    { return e.details }
func (e *baseError) Data() interface{}  { return e.data }
func (e *baseError) Category() Category { return e.category }
func (e *baseError) Unwrap() error      { return e.cause }

func (e *baseError) WithDetail(detail string) MCPError {
	newErr := *e
	if newErr.details != "" {
		newErr.details = newErr.details + "; " + detail
	} else {
		newErr.details = detail
	}
	return &newErr
}

func (e *baseError) WithData(data interface{}) MCPError {
	newErr := *e
	newErr.data = data
	return &newErr
}

// MarshalJSON renders the error as the object returned to REST callers
func (e *baseError) MarshalJSON() ([]byte, error) {
	out := map[string]interface{}{
		"code":     e.code,
		"message":  e.message,
		"category": string(e.category),
	}
	if e.details != "" {
		out["details"] = e.details
	}
	if e.data != nil {
		out["data"] = e.data
	}
	return json.Marshal(out)
}

// NewError creates an MCPError
func NewError(code int, message string, category Category) MCPError {
	return &baseError{code: code, message: message, category: category}
}

// NewErrorf creates an MCPError with a formatted message
func NewErrorf(code int, category Category, format string, args ...interface{}) MCPError {
	return &baseError{code: code, message: fmt.Sprintf(format, args...), category: category}
}

// WrapError wraps cause so errors.Is and errors.As still reach it
func WrapError(cause error, code int, message string, category Category) MCPError {
	return &baseError{code: code, message: message, category: category, cause: cause}
}

// AsMCPError finds the first MCPError in err's chain
func AsMCPError(err error) (MCPError, bool) {
	if err == nil {
		return nil, false
	}
	var mcpErr MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr, true
	}
	return nil, false
}

// IsCategory reports whether err carries the given category
func IsCategory(err error, category Category) bool {
	if mcpErr, ok := AsMCPError(err); ok {
		return mcpErr.Category() == category
	}
	return false
}

// IsCode reports whether err carries the given code
func IsCode(err error, code int) bool {
	if mcpErr, ok := AsMCPError(err); ok {
		return mcpErr.Code() == code
	}
	return false
}
