package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	mcperrors "github.com/ajitpratap0/blockscout-mcp-go/pkg/errors"
	"github.com/ajitpratap0/blockscout-mcp-go/pkg/logging"
	"github.com/ajitpratap0/blockscout-mcp-go/pkg/observability"
	"github.com/ajitpratap0/blockscout-mcp-go/pkg/protocol"
	"github.com/ajitpratap0/blockscout-mcp-go/pkg/sizeguard"
	"github.com/ajitpratap0/blockscout-mcp-go/pkg/tools"
	"github.com/ajitpratap0/blockscout-mcp-go/pkg/transport"
)

// protocol revisions this server accepts from clients
var supportedProtocolVersions = []string{protocol.ProtocolVersion, "2025-03-26", "2024-11-05"}

// log levels in increasing severity
var logLevelRank = map[protocol.LogLevel]int{
	protocol.LogLevelDebug:   0,
	protocol.LogLevelInfo:    1,
	protocol.LogLevelWarning: 2,
	protocol.LogLevelError:   3,
}

// Server dispatches MCP requests to the tool registry
type Server struct {
	name         string
	title        string
	version      string
	instructions string

	registry *tools.Registry
	logger   logging.Logger
	metrics  observability.MetricsProvider

	sessions     map[string]*sessionState
	sessionsLock sync.Mutex

	// Request tracking for cancellation, keyed by session and request id
	activeRequests     map[string]context.CancelFunc
	activeRequestsLock sync.Mutex
}

type sessionState struct {
	initialized bool
	clientInfo  protocol.Implementation
	logLevel    protocol.LogLevel
}

// ServerOption configures a Server
type ServerOption func(*Server)

// WithName sets the server name reported in initialize
func WithName(name string) ServerOption {
	return func(s *Server) { s.name = name }
}

// WithTitle sets the human readable server title
func WithTitle(title string) ServerOption {
	return func(s *Server) { s.title = title }
}

// WithVersion sets the server version reported in initialize
func WithVersion(version string) ServerOption {
	return func(s *Server) { s.version = version }
}

// WithInstructions sets the instructions returned by initialize
func WithInstructions(instructions string) ServerOption {
	return func(s *Server) { s.instructions = instructions }
}

// WithLogger sets the server logger
func WithLogger(logger logging.Logger) ServerOption {
	return func(s *Server) { s.logger = logger }
}

// WithMetrics sets the metrics provider
func WithMetrics(metrics observability.MetricsProvider) ServerOption {
	return func(s *Server) { s.metrics = metrics }
}

// New creates a Server over registry
func New(registry *tools.Registry, options ...ServerOption) *Server {
	s := &Server{
		name:           "blockscout-mcp",
		version:        "dev",
		registry:       registry,
		logger:         logging.L(),
		metrics:        observability.NoopMetrics(),
		sessions:       make(map[string]*sessionState),
		activeRequests: make(map[string]context.CancelFunc),
	}
	for _, option := range options {
		option(s)
	}
	s.logger = s.logger.WithFields(logging.String("component", "server"))
	return s
}

// Registry returns the tool registry the server dispatches to
func (s *Server) Registry() *tools.Registry { return s.registry }

// Name returns the server name
func (s *Server) Name() string { return s.name }

// Version returns the server version
func (s *Server) Version() string { return s.version }

// HandleMessage implements transport.Handler
func (s *Server) HandleMessage(ctx context.Context, sess transport.Session, data []byte) []byte {
	switch protocol.Classify(data) {
	case protocol.KindRequest:
		var req protocol.Request
		if err := json.Unmarshal(data, &req); err != nil {
			return encode(protocol.NewErrorResponse(nil, &protocol.Error{Code: protocol.InvalidRequest, Message: err.Error()}))
		}
		resp := s.handleRequest(ctx, sess, &req)
		if resp == nil {
			return nil
		}
		return encode(resp)

	case protocol.KindNotification:
		var n protocol.Notification
		if err := json.Unmarshal(data, &n); err == nil {
			s.handleNotification(ctx, sess, &n)
		}
		return nil

	case protocol.KindResponse:
		// the server never issues requests
		return nil

	default:
		if !json.Valid(data) {
			return encode(protocol.NewErrorResponse(nil, &protocol.Error{Code: protocol.ParseError, Message: "Parse error"}))
		}
		return encode(protocol.NewErrorResponse(nil, &protocol.Error{Code: protocol.InvalidRequest, Message: "Invalid Request"}))
	}
}

func encode(resp *protocol.Response) []byte {
	data, err := json.Marshal(resp)
	if err != nil {
		data, _ = json.Marshal(protocol.NewErrorResponse(resp.ID, mcperrors.ToJSONRPCError(
			mcperrors.InternalError("marshal_response", err))))
	}
	return data
}

func (s *Server) handleRequest(ctx context.Context, sess transport.Session, req *protocol.Request) *protocol.Response {
	started := time.Now()
	ctx, span := observability.StartMethodSpan(ctx, req.Method)
	result, err := s.dispatch(ctx, sess, req)
	observability.EndSpan(span, err)
	s.metrics.RecordRequest(ctx, req.Method, observability.StatusOf(err), time.Since(started))

	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Debug("request failed",
			logging.String("method", req.Method), logging.String("session", sess.ID()))
		return protocol.NewErrorResponse(req.ID, mcperrors.ToJSONRPCError(err))
	}
	resp, err := protocol.NewResponse(req.ID, result)
	if err != nil {
		return protocol.NewErrorResponse(req.ID, mcperrors.ToJSONRPCError(mcperrors.InternalError("marshal_result", err)))
	}
	return resp
}

func (s *Server) dispatch(ctx context.Context, sess transport.Session, req *protocol.Request) (interface{}, error) {
	switch req.Method {
	case protocol.MethodInitialize:
		return s.handleInitialize(ctx, sess, req.Params)
	case protocol.MethodPing:
		return &protocol.EmptyResult{}, nil
	}

	if err := s.requireInitialized(sess, req.Method); err != nil {
		return nil, err
	}
	switch req.Method {
	case protocol.MethodListTools:
		return &protocol.ListToolsResult{Tools: s.registry.List()}, nil
	case protocol.MethodCallTool:
		return s.handleCallTool(ctx, sess, req)
	case protocol.MethodSetLogLevel:
		return s.handleSetLogLevel(sess, req.Params)
	default:
		return nil, mcperrors.MethodNotFound(req.Method)
	}
}

func (s *Server) handleNotification(ctx context.Context, sess transport.Session, n *protocol.Notification) {
	switch n.Method {
	case protocol.MethodInitialized:
		s.withSession(sess.ID(), func(st *sessionState) { st.initialized = true })
		s.logger.Info("connection initialized", logging.String("session", sess.ID()))
	case protocol.MethodCancelled:
		var params protocol.CancelledParams
		if err := json.Unmarshal(n.Params, &params); err != nil {
			s.logger.Warn("malformed cancellation", logging.ErrorField(err))
			return
		}
		s.cancelRequest(requestKey(sess.ID(), params.RequestID))
	default:
		s.logger.Debug("ignoring notification", logging.String("method", n.Method))
	}
}

func (s *Server) handleInitialize(ctx context.Context, sess transport.Session, raw json.RawMessage) (interface{}, error) {
	var params protocol.InitializeParams
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, mcperrors.NewError(mcperrors.CodeInvalidParams, "invalid initialize params", mcperrors.CategoryValidation).
				WithDetail(err.Error())
		}
	}

	s.withSession(sess.ID(), func(st *sessionState) {
		st.initialized = true
		st.clientInfo = params.ClientInfo
	})
	s.logger.WithContext(ctx).Info("initializing connection",
		logging.String("client", params.ClientInfo.Name),
		logging.String("client_version", params.ClientInfo.Version),
		logging.String("protocol_version", params.ProtocolVersion),
		logging.String("session", sess.ID()))

	return &protocol.InitializeResult{
		ProtocolVersion: negotiateVersion(params.ProtocolVersion),
		Capabilities: protocol.ServerCapabilities{
			Tools:   &protocol.ToolsCapability{},
			Logging: &struct{}{},
		},
		ServerInfo:   protocol.Implementation{Name: s.name, Title: s.title, Version: s.version},
		Instructions: s.instructions,
	}, nil
}

// negotiateVersion echoes a supported client revision and otherwise
// proposes the latest one
func negotiateVersion(requested string) string {
	for _, v := range supportedProtocolVersions {
		if v == requested {
			return v
		}
	}
	return protocol.ProtocolVersion
}

func (s *Server) handleSetLogLevel(sess transport.Session, raw json.RawMessage) (interface{}, error) {
	var params protocol.SetLogLevelParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, mcperrors.NewError(mcperrors.CodeInvalidParams, "invalid logging/setLevel params", mcperrors.CategoryValidation).
			WithDetail(err.Error())
	}
	if _, ok := logLevelRank[params.Level]; !ok {
		return nil, mcperrors.InvalidParameter("level", params.Level, "expected debug, info, warning or error")
	}
	s.withSession(sess.ID(), func(st *sessionState) { st.logLevel = params.Level })
	return &protocol.EmptyResult{}, nil
}

func (s *Server) handleCallTool(ctx context.Context, sess transport.Session, req *protocol.Request) (interface{}, error) {
	var params protocol.CallToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return nil, mcperrors.NewError(mcperrors.CodeInvalidParams, "invalid tools/call params", mcperrors.CategoryValidation).
			WithDetail(err.Error())
	}
	if params.Name == "" {
		return nil, mcperrors.MissingParameter("name")
	}

	key := requestKey(sess.ID(), req.ID)
	ctx, cancel := context.WithCancel(ctx)
	s.trackRequest(key, cancel)
	defer func() {
		s.completeRequest(key)
		cancel()
	}()

	ctx = sizeguard.WithChannel(ctx, sizeguard.ChannelMCP, "")
	reporter := &mcpReporter{server: s, session: sess}
	if params.Meta != nil {
		reporter.token = params.Meta.ProgressToken
	}

	resp, err := s.registry.Call(ctx, params.Name, params.Arguments, reporter)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, mcperrors.OperationCanceled("tools/call " + params.Name)
		}
		// unknown tools and schema violations are protocol errors
		if mcperrors.IsCode(err, mcperrors.CodeToolNotFound) || mcperrors.IsCode(err, mcperrors.CodeInvalidParams) {
			return nil, err
		}
		if sizeguard.IsResponseTooLarge(err) {
			s.metrics.RecordSizeGuardDenial(ctx, sizeguard.ChannelMCP.String())
		}
		s.logger.WithContext(ctx).WithError(err).Info("tool call failed", logging.String("tool", params.Name))
		return toolErrorResult(err), nil
	}

	text, err := json.Marshal(resp)
	if err != nil {
		return nil, mcperrors.InternalError("marshal_tool_response", err)
	}
	return &protocol.CallToolResult{
		Content:           []protocol.Content{{Type: "text", Text: string(text)}},
		StructuredContent: resp,
	}, nil
}

// toolErrorResult reports a tool failure in-band so the model can read
// the error code and react to it
func toolErrorResult(err error) *protocol.CallToolResult {
	rpcErr := mcperrors.ToJSONRPCError(err)
	body := map[string]interface{}{
		"error":      rpcErr,
		"error_type": mcperrors.GetErrorCodeName(rpcErr.Code),
	}
	text, _ := json.Marshal(body)
	return &protocol.CallToolResult{
		Content:           []protocol.Content{{Type: "text", Text: string(text)}},
		StructuredContent: body,
		IsError:           true,
	}
}

func (s *Server) requireInitialized(sess transport.Session, method string) error {
	s.sessionsLock.Lock()
	st, ok := s.sessions[sess.ID()]
	initialized := ok && st.initialized
	s.sessionsLock.Unlock()
	if !initialized {
		return mcperrors.ServerNotReady("initialize must complete before " + method)
	}
	return nil
}

func (s *Server) withSession(id string, fn func(*sessionState)) {
	s.sessionsLock.Lock()
	defer s.sessionsLock.Unlock()
	st, ok := s.sessions[id]
	if !ok {
		st = &sessionState{logLevel: protocol.LogLevelInfo}
		s.sessions[id] = st
	}
	fn(st)
}

// logEnabled reports whether a notifications/message at level should be
// sent to the session
func (s *Server) logEnabled(sessionID string, level protocol.LogLevel) bool {
	s.sessionsLock.Lock()
	defer s.sessionsLock.Unlock()
	threshold := protocol.LogLevelInfo
	if st, ok := s.sessions[sessionID]; ok {
		threshold = st.logLevel
	}
	return logLevelRank[level] >= logLevelRank[threshold]
}

// CloseSession forgets session state and cancels its in-flight requests
func (s *Server) CloseSession(id string) {
	s.sessionsLock.Lock()
	delete(s.sessions, id)
	s.sessionsLock.Unlock()

	prefix := id + "/"
	s.activeRequestsLock.Lock()
	defer s.activeRequestsLock.Unlock()
	for key, cancel := range s.activeRequests {
		if strings.HasPrefix(key, prefix) {
			cancel()
			delete(s.activeRequests, key)
		}
	}
}

// Shutdown cancels every in-flight request
func (s *Server) Shutdown() {
	s.activeRequestsLock.Lock()
	defer s.activeRequestsLock.Unlock()
	for key, cancel := range s.activeRequests {
		cancel()
		delete(s.activeRequests, key)
	}
}

func requestKey(sessionID string, requestID interface{}) string {
	return fmt.Sprintf("%s/%v", sessionID, requestID)
}

func (s *Server) trackRequest(key string, cancel context.CancelFunc) {
	s.activeRequestsLock.Lock()
	defer s.activeRequestsLock.Unlock()
	s.activeRequests[key] = cancel
}

func (s *Server) completeRequest(key string) {
	s.activeRequestsLock.Lock()
	defer s.activeRequestsLock.Unlock()
	delete(s.activeRequests, key)
}

func (s *Server) cancelRequest(key string) bool {
	s.activeRequestsLock.Lock()
	defer s.activeRequestsLock.Unlock()
	if cancel, ok := s.activeRequests[key]; ok {
		cancel()
		delete(s.activeRequests, key)
		s.logger.Info("cancelled request", logging.String("request", key))
		return true
	}
	s.logger.Debug("request not found for cancellation", logging.String("request", key))
	return false
}

// activeRequestCount is used by tests
func (s *Server) activeRequestCount() int {
	s.activeRequestsLock.Lock()
	defer s.activeRequestsLock.Unlock()
	return len(s.activeRequests)
}
