package errors

import (
	"errors"
	"fmt"
)

// UpstreamErrorData describes a failed request to an upstream service
type UpstreamErrorData struct {
	Service    string `json:"service"`
	URL        string `json:"url,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
	Body       string `json:"body,omitempty"`
}

// ResponseSizeData is attached to ResponseTooLarge errors
type ResponseSizeData struct {
	Size  int    `json:"size"`
	Limit int    `json:"limit"`
	Hint  string `json:"hint"`
}

// UpstreamError reports a non-successful upstream response or a transport
// failure talking to it. statusCode is zero for transport failures.
func UpstreamError(service, url string, statusCode int, body string, cause error) MCPError {
	msg := fmt.Sprintf("%s request failed", service)
	if statusCode != 0 {
		msg = fmt.Sprintf("%s request failed with status %d", service, statusCode)
	}
	err := WrapError(cause, CodeUpstreamError, msg, CategoryUpstream).WithData(&UpstreamErrorData{
		Service:    service,
		URL:        url,
		StatusCode: statusCode,
		Body:       body,
	})
	if cause != nil {
		err = err.WithDetail(cause.Error())
	} else if body != "" {
		err = err.WithDetail(body)
	}
	return err
}

// UpstreamStatus extracts the upstream HTTP status from err, if any
func UpstreamStatus(err error) (int, bool) {
	mcpErr, ok := AsMCPError(err)
	if !ok || mcpErr.Code() != CodeUpstreamError {
		return 0, false
	}
	data, ok := mcpErr.Data().(*UpstreamErrorData)
	if !ok || data.StatusCode == 0 {
		return 0, false
	}
	return data.StatusCode, true
}

// UpstreamUnavailable reports that no upstream endpoint serves the request
func UpstreamUnavailable(service, reason string) MCPError {
	return NewErrorf(CodeUpstreamUnavailable, CategoryNotFound, "%s unavailable: %s", service, reason)
}

// ResponseTooLarge reports a payload the size guard refused to return
func ResponseTooLarge(size, limit int, hint string) MCPError {
	return NewErrorf(
		CodeResponseTooLarge,
		CategoryLimit,
		"Response too large: %d characters exceeds the limit of %d. %s",
		size, limit, hint,
	).WithData(&ResponseSizeData{Size: size, Limit: limit, Hint: hint})
}

// ToolNotFound reports an unknown tool name
func ToolNotFound(name string) MCPError {
	return NewErrorf(CodeToolNotFound, CategoryNotFound, "Tool not found: %s", name)
}

// OperationCanceled reports a request aborted by the client
func OperationCanceled(operation string) MCPError {
	return NewErrorf(CodeOperationCanceled, CategoryCancelled, "Operation canceled: %s", operation)
}

// ServerNotReady reports a request received before initialize completed
func ServerNotReady(reason string) MCPError {
	return NewErrorf(CodeServerNotReady, CategoryProtocol, "Server not ready: %s", reason)
}

// MethodNotFound reports an unknown JSON-RPC method
func MethodNotFound(method string) MCPError {
	return NewErrorf(CodeMethodNotFound, CategoryProtocol, "Method not found: %s", method)
}

// InternalError wraps an unexpected failure in operation
func InternalError(operation string, cause error) MCPError {
	return WrapError(cause, CodeInternalError, fmt.Sprintf("Internal error during %s", operation), CategoryInternal).
		WithDetail(errString(cause))
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// IsRetryable reports whether err is worth retrying against the upstream.
// Transport failures and 429/5xx responses qualify.
func IsRetryable(err error) bool {
	var mcpErr MCPError
	if !errors.As(err, &mcpErr) || mcpErr.Code() != CodeUpstreamError {
		return false
	}
	status, ok := UpstreamStatus(err)
	if !ok {
		return true
	}
	return status == 429 || status >= 500
}
