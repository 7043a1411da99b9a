package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mcperrors "github.com/ajitpratap0/blockscout-mcp-go/pkg/errors"
	"github.com/ajitpratap0/blockscout-mcp-go/pkg/protocol"
	"github.com/ajitpratap0/blockscout-mcp-go/pkg/sizeguard"
	"github.com/ajitpratap0/blockscout-mcp-go/pkg/tools"
	"github.com/ajitpratap0/blockscout-mcp-go/pkg/transport"
	"github.com/ajitpratap0/blockscout-mcp-go/pkg/utils"
)

const echoSchema = `{
	"type": "object",
	"properties": {
		"value": {"type": "string"},
		"count": {"type": "integer"},
		"flag":  {"type": "boolean"},
		"items": {"type": "array", "items": {"type": "string"}},
		"extra": {}
	},
	"additionalProperties": false
}`

// testRegistry registers tools that exercise each response path
func testRegistry(t *testing.T, started chan<- struct{}) *tools.Registry {
	t.Helper()
	r := tools.NewRegistry(nil)
	r.MustRegister(
		tools.Tool{
			Name:        "echo",
			Description: "returns its arguments",
			InputSchema: json.RawMessage(echoSchema),
			Handler: func(ctx context.Context, call *tools.Call) (*tools.Response, error) {
				call.Progress(ctx, 1, 2, "halfway")
				call.Info(ctx, "echoing")
				return &tools.Response{Data: map[string]interface{}(call.Args)}, nil
			},
		},
		tools.Tool{
			Name:        "block",
			Description: "waits for cancellation",
			Handler: func(ctx context.Context, call *tools.Call) (*tools.Response, error) {
				if started != nil {
					started <- struct{}{}
				}
				<-ctx.Done()
				return nil, ctx.Err()
			},
		},
		tools.Tool{
			Name:        "upstream",
			Description: "fails upstream",
			Handler: func(ctx context.Context, call *tools.Call) (*tools.Response, error) {
				return nil, mcperrors.UpstreamError("blockscout", "https://explorer.test/api", 503, "down", nil)
			},
		},
		tools.Tool{
			Name:        "large",
			Description: "returns a payload over the limit",
			Handler: func(ctx context.Context, call *tools.Call) (*tools.Response, error) {
				if err := sizeguard.New(10).CheckContext(ctx, 100); err != nil {
					return nil, err
				}
				return &tools.Response{Data: "large payload"}, nil
			},
		},
	)
	return r
}

func newTestServer(t *testing.T, started chan<- struct{}) *Server {
	return New(testRegistry(t, started),
		WithName("blockscout-mcp"),
		WithVersion("test"),
		WithInstructions("use the tools"),
	)
}

type notification struct {
	Method string
	Params json.RawMessage
}

type fakeSession struct {
	id string

	mu    sync.Mutex
	notes []notification
}

func (s *fakeSession) ID() string { return s.id }

func (s *fakeSession) Notify(_ context.Context, method string, params interface{}) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes = append(s.notes, notification{Method: method, Params: raw})
	return nil
}

func (s *fakeSession) notifications() []notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notification(nil), s.notes...)
}

func request(t *testing.T, id interface{}, method string, params interface{}) []byte {
	t.Helper()
	req, err := protocol.NewRequest(id, method, params)
	require.NoError(t, err)
	data, err := json.Marshal(req)
	require.NoError(t, err)
	return data
}

func send(t *testing.T, s *Server, sess transport.Session, id interface{}, method string, params interface{}) *protocol.Response {
	t.Helper()
	out := s.HandleMessage(context.Background(), sess, request(t, id, method, params))
	require.NotNil(t, out)
	var resp protocol.Response
	require.NoError(t, json.Unmarshal(out, &resp))
	return &resp
}

func initialize(t *testing.T, s *Server, sess transport.Session) {
	t.Helper()
	resp := send(t, s, sess, 0, protocol.MethodInitialize, protocol.InitializeParams{
		ProtocolVersion: protocol.ProtocolVersion,
		ClientInfo:      protocol.Implementation{Name: "test-client", Version: "1.0"},
	})
	require.Nil(t, resp.Error)
}

func callTool(t *testing.T, s *Server, sess transport.Session, id interface{}, params protocol.CallToolParams) *protocol.Response {
	t.Helper()
	return send(t, s, sess, id, protocol.MethodCallTool, params)
}

func TestInitialize(t *testing.T) {
	s := newTestServer(t, nil)
	sess := &fakeSession{id: "a"}

	tests := []struct {
		name      string
		requested string
		want      string
	}{
		{"latest", protocol.ProtocolVersion, protocol.ProtocolVersion},
		{"older supported", "2025-03-26", "2025-03-26"},
		{"unknown proposes latest", "1999-01-01", protocol.ProtocolVersion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := send(t, s, sess, 1, protocol.MethodInitialize, protocol.InitializeParams{ProtocolVersion: tt.requested})
			require.Nil(t, resp.Error)

			var result protocol.InitializeResult
			require.NoError(t, json.Unmarshal(resp.Result, &result))
			assert.Equal(t, tt.want, result.ProtocolVersion)
			assert.Equal(t, "blockscout-mcp", result.ServerInfo.Name)
			assert.Equal(t, "test", result.ServerInfo.Version)
			assert.Equal(t, "use the tools", result.Instructions)
			assert.NotNil(t, result.Capabilities.Tools)
			assert.NotNil(t, result.Capabilities.Logging)
		})
	}
}

func TestRequestsBeforeInitialize(t *testing.T) {
	s := newTestServer(t, nil)
	sess := &fakeSession{id: "a"}

	resp := send(t, s, sess, 1, protocol.MethodPing, nil)
	assert.Nil(t, resp.Error, "ping is allowed before initialize")

	resp = send(t, s, sess, 2, protocol.MethodListTools, nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, mcperrors.CodeServerNotReady, resp.Error.Code)
}

func TestListTools(t *testing.T) {
	s := newTestServer(t, nil)
	sess := &fakeSession{id: "a"}
	initialize(t, s, sess)

	resp := send(t, s, sess, 1, protocol.MethodListTools, nil)
	require.Nil(t, resp.Error)
	var result protocol.ListToolsResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))

	names := make([]string, 0, len(result.Tools))
	for _, tool := range result.Tools {
		names = append(names, tool.Name)
	}
	assert.Equal(t, []string{"block", "echo", "large", "upstream"}, names)
}

func TestCallToolReturnsEnvelopeAndProgress(t *testing.T) {
	s := newTestServer(t, nil)
	sess := &fakeSession{id: "a"}
	initialize(t, s, sess)

	resp := callTool(t, s, sess, 7, protocol.CallToolParams{
		Name:      "echo",
		Arguments: json.RawMessage(`{"value":"x","count":3}`),
		Meta:      &protocol.RequestMeta{ProgressToken: "tok"},
	})
	require.Nil(t, resp.Error)

	var result protocol.CallToolResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.False(t, result.IsError)
	require.Len(t, result.Content, 1)
	assert.Equal(t, "text", result.Content[0].Type)
	assert.JSONEq(t, `{"data":{"value":"x","count":3}}`, result.Content[0].Text)

	notes := sess.notifications()
	require.Len(t, notes, 2)
	assert.Equal(t, protocol.MethodProgress, notes[0].Method)
	assert.JSONEq(t, `{"progressToken":"tok","progress":1,"total":2,"message":"halfway"}`, string(notes[0].Params))
	assert.Equal(t, protocol.MethodLogMessage, notes[1].Method)
	assert.JSONEq(t, `{"level":"info","logger":"blockscout-mcp","data":"echoing"}`, string(notes[1].Params))
}

func TestCallToolWithoutTokenAndRaisedLogLevel(t *testing.T) {
	s := newTestServer(t, nil)
	sess := &fakeSession{id: "a"}
	initialize(t, s, sess)

	resp := send(t, s, sess, 1, protocol.MethodSetLogLevel, protocol.SetLogLevelParams{Level: protocol.LogLevelWarning})
	require.Nil(t, resp.Error)

	resp = callTool(t, s, sess, 2, protocol.CallToolParams{Name: "echo"})
	require.Nil(t, resp.Error)
	assert.Empty(t, sess.notifications())
}

func TestSetLogLevelRejectsUnknownLevel(t *testing.T) {
	s := newTestServer(t, nil)
	sess := &fakeSession{id: "a"}
	initialize(t, s, sess)

	resp := send(t, s, sess, 1, protocol.MethodSetLogLevel, map[string]string{"level": "verbose"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, mcperrors.CodeInvalidParameter, resp.Error.Code)
}

func TestCallToolErrors(t *testing.T) {
	s := newTestServer(t, nil)
	sess := &fakeSession{id: "a"}
	initialize(t, s, sess)

	t.Run("unknown tool is a protocol error", func(t *testing.T) {
		resp := callTool(t, s, sess, 1, protocol.CallToolParams{Name: "nope"})
		require.NotNil(t, resp.Error)
		assert.Equal(t, mcperrors.CodeToolNotFound, resp.Error.Code)
	})

	t.Run("schema violation is a protocol error", func(t *testing.T) {
		resp := callTool(t, s, sess, 2, protocol.CallToolParams{Name: "echo", Arguments: json.RawMessage(`{"count":"three"}`)})
		require.NotNil(t, resp.Error)
		assert.Equal(t, mcperrors.CodeInvalidParams, resp.Error.Code)
	})

	t.Run("missing name", func(t *testing.T) {
		resp := callTool(t, s, sess, 3, protocol.CallToolParams{})
		require.NotNil(t, resp.Error)
		assert.Equal(t, mcperrors.CodeMissingParameter, resp.Error.Code)
	})

	tests := []struct {
		tool string
		code int
		name string
	}{
		{"upstream", mcperrors.CodeUpstreamError, "UpstreamError"},
		{"large", mcperrors.CodeResponseTooLarge, "ResponseTooLarge"},
	}
	for _, tt := range tests {
		t.Run(tt.tool+" is reported in band", func(t *testing.T) {
			resp := callTool(t, s, sess, 4, protocol.CallToolParams{Name: tt.tool})
			require.Nil(t, resp.Error)

			var result protocol.CallToolResult
			require.NoError(t, json.Unmarshal(resp.Result, &result))
			assert.True(t, result.IsError)
			require.Len(t, result.Content, 1)

			var body struct {
				Error     protocol.Error `json:"error"`
				ErrorType string         `json:"error_type"`
			}
			require.NoError(t, json.Unmarshal([]byte(result.Content[0].Text), &body))
			assert.Equal(t, tt.code, body.Error.Code)
			assert.Equal(t, tt.name, body.ErrorType)
		})
	}
}

func TestCancelledNotificationAbortsToolCall(t *testing.T) {
	lc := utils.StartLeakCheck(t)
	defer lc.Verify()

	started := make(chan struct{}, 1)
	s := newTestServer(t, started)
	sess := &fakeSession{id: "a"}
	initialize(t, s, sess)

	done := make(chan *protocol.Response, 1)
	go func() {
		done <- callTool(t, s, sess, 42, protocol.CallToolParams{Name: "block"})
	}()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("tool did not start")
	}
	assert.Equal(t, 1, s.activeRequestCount())

	n, err := protocol.NewNotification(protocol.MethodCancelled, protocol.CancelledParams{RequestID: 42, Reason: "user"})
	require.NoError(t, err)
	data, err := json.Marshal(n)
	require.NoError(t, err)
	assert.Nil(t, s.HandleMessage(context.Background(), sess, data))

	select {
	case resp := <-done:
		require.NotNil(t, resp.Error)
		assert.Equal(t, mcperrors.CodeOperationCanceled, resp.Error.Code)
	case <-time.After(2 * time.Second):
		t.Fatal("cancellation did not abort the call")
	}
	assert.Equal(t, 0, s.activeRequestCount())
}

func TestCloseSessionCancelsInflightCalls(t *testing.T) {
	started := make(chan struct{}, 1)
	s := newTestServer(t, started)
	sess := &fakeSession{id: "gone"}
	initialize(t, s, sess)

	done := make(chan *protocol.Response, 1)
	go func() {
		done <- callTool(t, s, sess, "x", protocol.CallToolParams{Name: "block"})
	}()
	<-started

	s.CloseSession("gone")
	select {
	case resp := <-done:
		require.NotNil(t, resp.Error)
	case <-time.After(2 * time.Second):
		t.Fatal("closing the session did not cancel the call")
	}

	resp := send(t, s, sess, 1, protocol.MethodListTools, nil)
	require.NotNil(t, resp.Error, "a closed session must initialize again")
	assert.Equal(t, mcperrors.CodeServerNotReady, resp.Error.Code)
}

func TestMalformedMessages(t *testing.T) {
	s := newTestServer(t, nil)
	sess := &fakeSession{id: "a"}

	tests := []struct {
		name string
		in   string
		code int
	}{
		{"parse error", `{"jsonrpc":`, protocol.ParseError},
		{"not a request", `{"jsonrpc":"2.0","foo":1}`, protocol.InvalidRequest},
		{"batch", `[{"jsonrpc":"2.0","id":1,"method":"ping"}]`, protocol.InvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := s.HandleMessage(context.Background(), sess, []byte(tt.in))
			var resp protocol.Response
			require.NoError(t, json.Unmarshal(out, &resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}

	t.Run("unknown method", func(t *testing.T) {
		initialize(t, s, sess)
		resp := send(t, s, sess, 1, "resources/list", nil)
		require.NotNil(t, resp.Error)
		assert.Equal(t, mcperrors.CodeMethodNotFound, resp.Error.Code)
	})
}

func TestStdioEndToEnd(t *testing.T) {
	s := newTestServer(t, nil)

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	tr := transport.NewStdioTransport(inR, outW, s)

	done := make(chan error, 1)
	go func() { done <- tr.Start(context.Background()) }()

	lines := make(chan string, 16)
	go func() {
		scanner := bufio.NewScanner(outR)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	next := func() string {
		select {
		case line := <-lines:
			return line
		case <-time.After(2 * time.Second):
			t.Fatal("no output from stdio transport")
			return ""
		}
	}
	write := func(msg string) {
		_, err := fmt.Fprintln(inW, msg)
		require.NoError(t, err)
	}

	write(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-06-18","clientInfo":{"name":"cli","version":"1"}}}`)
	assert.Contains(t, next(), `"protocolVersion":"2025-06-18"`)
	write(`{"jsonrpc":"2.0","method":"notifications/initialized"}`)

	write(`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"echo","arguments":{"value":"v"},"_meta":{"progressToken":9}}}`)
	assert.Contains(t, next(), `"method":"notifications/progress"`)
	assert.Contains(t, next(), `"method":"notifications/message"`)
	final := next()
	assert.Contains(t, final, `"id":2`)
	assert.Contains(t, final, `"structuredContent":{"data":{"value":"v"}}`)

	require.NoError(t, inW.Close())
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("transport did not stop at end of input")
	}
	_ = outW.Close()
}

func TestStdioPipelinedHandshake(t *testing.T) {
	s := newTestServer(t, nil)
	in := strings.NewReader(
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-06-18","clientInfo":{"name":"cli","version":"1"}}}` + "\n" +
			`{"jsonrpc":"2.0","method":"notifications/initialized"}` + "\n" +
			`{"jsonrpc":"2.0","id":2,"method":"tools/list"}` + "\n")
	var out bytes.Buffer
	tr := transport.NewStdioTransport(in, &out, s)
	require.NoError(t, tr.Start(context.Background()))

	responses := map[string]protocol.Response{}
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		var resp protocol.Response
		require.NoError(t, json.Unmarshal([]byte(line), &resp))
		responses[fmt.Sprint(resp.ID)] = resp
	}
	require.Len(t, responses, 2)
	list := responses["2"]
	require.Nil(t, list.Error, "tools/list pipelined behind initialize")
	assert.Contains(t, string(list.Result), `"name":"echo"`)
}
