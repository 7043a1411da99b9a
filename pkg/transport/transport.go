package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/ajitpratap0/blockscout-mcp-go/pkg/protocol"
)

// ErrTransportClosed is returned when sending on a stopped transport
var ErrTransportClosed = errors.New("transport closed")

// Transport is the lifecycle shared by all transports
type Transport interface {
	// Start serves messages until ctx is done, the input ends or Stop is
	// called. It blocks.
	Start(ctx context.Context) error

	// Stop halts the transport and waits for in-flight requests
	Stop(ctx context.Context) error
}

// Session is the client connection a message arrived on
type Session interface {
	// ID identifies the session; stable for its lifetime
	ID() string

	// Notify sends a JSON-RPC notification to the client
	Notify(ctx context.Context, method string, params interface{}) error
}

// Handler processes inbound messages
type Handler interface {
	// HandleMessage handles one raw message and returns the encoded
	// response, or nil when there is nothing to send back
	HandleMessage(ctx context.Context, sess Session, data []byte) []byte
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(ctx context.Context, sess Session, data []byte) []byte

// HandleMessage calls f
func (f HandlerFunc) HandleMessage(ctx context.Context, sess Session, data []byte) []byte {
	return f(ctx, sess, data)
}

// ErrorHandler receives transport level errors
type ErrorHandler func(err error)

// TransportType identifies a transport implementation
type TransportType string

const (
	TransportTypeStdio          TransportType = "stdio"
	TransportTypeStreamableHTTP TransportType = "streamable_http"
)

// TransportConfig selects and configures a transport
type TransportConfig struct {
	Type TransportType

	// StdioReader and StdioWriter replace stdin and stdout when set
	StdioReader io.Reader
	StdioWriter io.Writer

	ErrorHandler ErrorHandler
}

// NewTransport creates the transport described by config. The streamable
// HTTP transport is an http.Handler and is built by the server package.
func NewTransport(config TransportConfig, handler Handler) (Transport, error) {
	switch config.Type {
	case TransportTypeStdio, "":
		t := NewStdioTransport(config.StdioReader, config.StdioWriter, handler)
		if config.ErrorHandler != nil {
			t.SetErrorHandler(config.ErrorHandler)
		}
		return t, nil
	default:
		return nil, fmt.Errorf("unsupported transport type %q", config.Type)
	}
}

// EncodeNotification renders a notification message
func EncodeNotification(method string, params interface{}) ([]byte, error) {
	n, err := protocol.NewNotification(method, params)
	if err != nil {
		return nil, fmt.Errorf("error creating notification: %w", err)
	}
	return json.Marshal(n)
}
