package protocol

import "encoding/json"

// Tool describes a callable tool
type Tool struct {
	Name        string           `json:"name"`
	Title       string           `json:"title,omitempty"`
	Description string           `json:"description"`
	InputSchema json.RawMessage  `json:"inputSchema"`
	Annotations *ToolAnnotations `json:"annotations,omitempty"`
}

// ToolAnnotations are behavioural hints for clients
type ToolAnnotations struct {
	Title          string `json:"title,omitempty"`
	ReadOnlyHint   bool   `json:"readOnlyHint"`
	IdempotentHint bool   `json:"idempotentHint"`
	OpenWorldHint  bool   `json:"openWorldHint"`
}

// ListToolsParams is the payload of tools/list
type ListToolsParams struct {
	Cursor string `json:"cursor,omitempty"`
}

// ListToolsResult is the reply to tools/list
type ListToolsResult struct {
	Tools      []Tool `json:"tools"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// CallToolParams is the payload of tools/call
type CallToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Meta      *RequestMeta    `json:"_meta,omitempty"`
}

// Content is one block of tool output
type Content struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// CallToolResult is the reply to tools/call
type CallToolResult struct {
	Content           []Content   `json:"content"`
	StructuredContent interface{} `json:"structuredContent,omitempty"`
	IsError           bool        `json:"isError,omitempty"`
}

// TextResult builds a CallToolResult holding a single text block
func TextResult(text string, isError bool) *CallToolResult {
	return &CallToolResult{
		Content: []Content{{Type: "text", Text: text}},
		IsError: isError,
	}
}
