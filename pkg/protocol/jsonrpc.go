package protocol

import (
	"encoding/json"
	"fmt"
)

const (
	// JSONRPCVersion is the supported JSON-RPC version
	JSONRPCVersion = "2.0"
)

// Standard JSON-RPC 2.0 error codes
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603
)

// JSONRPCMessage carries the version tag shared by every message
type JSONRPCMessage struct {
	JSONRPC string `json:"jsonrpc"`
}

// Request represents a JSON-RPC 2.0 request
type Request struct {
	JSONRPCMessage
	ID     interface{}     `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// NewRequest creates a request, marshalling params when non-nil
func NewRequest(id interface{}, method string, params interface{}) (*Request, error) {
	raw, err := marshalOptional(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params: %w", err)
	}
	return &Request{
		JSONRPCMessage: JSONRPCMessage{JSONRPC: JSONRPCVersion},
		ID:             id,
		Method:         method,
		Params:         raw,
	}, nil
}

// Response represents a JSON-RPC 2.0 response
type Response struct {
	JSONRPCMessage
	ID     interface{}     `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *Error          `json:"error,omitempty"`
}

// NewResponse creates a success response
func NewResponse(id interface{}, result interface{}) (*Response, error) {
	raw, err := marshalOptional(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	if raw == nil {
		raw = json.RawMessage("{}")
	}
	return &Response{
		JSONRPCMessage: JSONRPCMessage{JSONRPC: JSONRPCVersion},
		ID:             id,
		Result:         raw,
	}, nil
}

// NewErrorResponse creates an error response
func NewErrorResponse(id interface{}, rpcErr *Error) *Response {
	return &Response{
		JSONRPCMessage: JSONRPCMessage{JSONRPC: JSONRPCVersion},
		ID:             id,
		Error:          rpcErr,
	}
}

// Notification represents a JSON-RPC 2.0 notification
type Notification struct {
	JSONRPCMessage
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// NewNotification creates a notification, marshalling params when non-nil
func NewNotification(method string, params interface{}) (*Notification, error) {
	raw, err := marshalOptional(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params: %w", err)
	}
	return &Notification{
		JSONRPCMessage: JSONRPCMessage{JSONRPC: JSONRPCVersion},
		Method:         method,
		Params:         raw,
	}, nil
}

// Error represents a JSON-RPC 2.0 error object
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// MessageKind is the shape of an inbound JSON-RPC message
type MessageKind int

const (
	KindInvalid MessageKind = iota
	KindRequest
	KindNotification
	KindResponse
)

// Classify inspects raw JSON and reports which kind of message it holds
func Classify(data []byte) MessageKind {
	var msg struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      json.RawMessage `json:"id"`
		Method  string          `json:"method"`
		Result  json.RawMessage `json:"result"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(data, &msg); err != nil || msg.JSONRPC != JSONRPCVersion {
		return KindInvalid
	}
	hasID := len(msg.ID) > 0 && string(msg.ID) != "null"
	switch {
	case msg.Method != "" && hasID:
		return KindRequest
	case msg.Method != "":
		return KindNotification
	case hasID && (len(msg.Result) > 0 || len(msg.Error) > 0):
		return KindResponse
	default:
		return KindInvalid
	}
}

func marshalOptional(v interface{}) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(v)
}
