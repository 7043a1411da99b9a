package protocol

// ProtocolVersion is the MCP revision this server speaks
const ProtocolVersion = "2025-06-18"

// MCP method names
const (
	MethodInitialize  = "initialize"
	MethodInitialized = "notifications/initialized"
	MethodPing        = "ping"
	MethodCancelled   = "notifications/cancelled"
	MethodSetLogLevel = "logging/setLevel"

	MethodListTools = "tools/list"
	MethodCallTool  = "tools/call"

	MethodProgress   = "notifications/progress"
	MethodLogMessage = "notifications/message"
)

// Implementation names a client or server
type Implementation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Title   string `json:"title,omitempty"`
}

// InitializeParams is sent by the client to open a session
type InitializeParams struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	Capabilities    map[string]interface{} `json:"capabilities,omitempty"`
	ClientInfo      Implementation         `json:"clientInfo"`
}

// ToolsCapability advertises tool support
type ToolsCapability struct {
	ListChanged bool `json:"listChanged"`
}

// ServerCapabilities lists what the server supports
type ServerCapabilities struct {
	Tools   *ToolsCapability `json:"tools,omitempty"`
	Logging *struct{}        `json:"logging,omitempty"`
}

// InitializeResult is the server's reply to initialize
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      Implementation     `json:"serverInfo"`
	Instructions    string             `json:"instructions,omitempty"`
}

// CancelledParams identifies a request the client gave up on
type CancelledParams struct {
	RequestID interface{} `json:"requestId"`
	Reason    string      `json:"reason,omitempty"`
}

// ProgressParams is the payload of notifications/progress
type ProgressParams struct {
	ProgressToken interface{} `json:"progressToken"`
	Progress      float64     `json:"progress"`
	Total         float64     `json:"total,omitempty"`
	Message       string      `json:"message,omitempty"`
}

// LogLevel follows the syslog severities used by MCP
type LogLevel string

const (
	LogLevelDebug   LogLevel = "debug"
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
)

// SetLogLevelParams is the payload of logging/setLevel
type SetLogLevelParams struct {
	Level LogLevel `json:"level"`
}

// LogMessageParams is the payload of notifications/message
type LogMessageParams struct {
	Level  LogLevel    `json:"level"`
	Logger string      `json:"logger,omitempty"`
	Data   interface{} `json:"data"`
}

// RequestMeta is the optional _meta object on requests
type RequestMeta struct {
	ProgressToken interface{} `json:"progressToken,omitempty"`
}

// EmptyResult is returned by ping
type EmptyResult struct{}
