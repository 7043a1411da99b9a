package errors

// JSON-RPC 2.0 standard codes
const (
	CodeParseError     int = -32700
	CodeInvalidRequest int = -32600
	CodeMethodNotFound int = -32601
	CodeInvalidParams  int = -32602
	CodeInternalError  int = -32603
)

// Server-specific codes
const (
	CodeServerNotReady int = -32001 // initialize has not completed

	CodeToolNotFound      int = -32200
	CodeOperationCanceled int = -32300

	CodeUpstreamError       int = -32653 // explorer, registry or RPC call failed
	CodeUpstreamUnavailable int = -32654 // chain has no explorer or RPC endpoint

	CodeMissingParameter int = -32751
	CodeInvalidParameter int = -32752

	CodeInvalidCursor    int = -32801
	CodeResponseTooLarge int = -32804
)

var errorCodeNames = map[int]string{
	CodeParseError:          "ParseError",
	CodeInvalidRequest:      "InvalidRequest",
	CodeMethodNotFound:      "MethodNotFound",
	CodeInvalidParams:       "InvalidParams",
	CodeInternalError:       "InternalError",
	CodeServerNotReady:      "ServerNotReady",
	CodeToolNotFound:        "ToolNotFound",
	CodeOperationCanceled:   "OperationCanceled",
	CodeUpstreamError:       "UpstreamError",
	CodeUpstreamUnavailable: "UpstreamUnavailable",
	CodeMissingParameter:    "MissingParameter",
	CodeInvalidParameter:    "InvalidParameter",
	CodeInvalidCursor:       "InvalidCursor",
	CodeResponseTooLarge:    "ResponseTooLarge",
}

// GetErrorCodeName returns the symbolic name of code, or "UnknownError"
func GetErrorCodeName(code int) string {
	if name, ok := errorCodeNames[code]; ok {
		return name
	}
	return "UnknownError"
}
