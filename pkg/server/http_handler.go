package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ajitpratap0/blockscout-mcp-go/pkg/logging"
	"github.com/ajitpratap0/blockscout-mcp-go/pkg/protocol"
	"github.com/ajitpratap0/blockscout-mcp-go/pkg/transport"
)

// SessionHeader carries the streamable HTTP session id
const SessionHeader = "Mcp-Session-Id"

const (
	maxBodySize           = 4 << 20
	defaultSessionTimeout = 30 * time.Minute
	defaultKeepAlive      = 15 * time.Second
)

var errNoStream = errors.New("no open event stream for session")

// HTTPOptions configures HTTPHandler
type HTTPOptions struct {
	// SessionTimeout expires sessions idle for longer, default 30m
	SessionTimeout time.Duration
	// AllowedOrigins lists the browser origins accepted. "*" allows any,
	// localhost entries also match any port.
	AllowedOrigins []string
	// KeepAlive is the interval of SSE comment pings, default 15s
	KeepAlive time.Duration
}

// HTTPHandler implements the MCP streamable HTTP transport
type HTTPHandler struct {
	server *Server
	logger logging.Logger

	mu             sync.RWMutex
	sessions       map[string]*httpSession
	allowedOrigins []string
	sessionTimeout time.Duration
	keepAlive      time.Duration

	now         func() time.Time
	cleanupDone chan struct{}
	closeOnce   sync.Once
}

// httpSession is one Mcp-Session-Id. Notifications outside a streamed
// tools/call go to the GET listener stream when one is open.
type httpSession struct {
	id string

	mu       sync.Mutex
	lastUsed time.Time
	listener *sseStream
	eventID  int64
}

func (s *httpSession) ID() string { return s.id }

func (s *httpSession) Notify(ctx context.Context, method string, params interface{}) error {
	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()
	if listener == nil {
		return errNoStream
	}
	data, err := transport.EncodeNotification(method, params)
	if err != nil {
		return err
	}
	return listener.send(s.nextEventID(), data)
}

func (s *httpSession) nextEventID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eventID++
	return s.eventID
}

// requestSession routes notifications of one streamed request onto its own
// response stream
type requestSession struct {
	*httpSession
	stream *sseStream
}

func (s *requestSession) Notify(ctx context.Context, method string, params interface{}) error {
	data, err := transport.EncodeNotification(method, params)
	if err != nil {
		return err
	}
	if err := s.stream.send(s.nextEventID(), data); err == nil {
		return nil
	}
	return s.httpSession.Notify(ctx, method, params)
}

// anonymousSession is used for messages rejected before a session is known
type anonymousSession struct{}

func (anonymousSession) ID() string { return "" }
func (anonymousSession) Notify(context.Context, string, interface{}) error {
	return errNoStream
}

type sseStream struct {
	mu      sync.Mutex
	w       io.Writer
	flusher http.Flusher
	closed  bool
}

func newSSEStream(w http.ResponseWriter) (*sseStream, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	return &sseStream{w: w, flusher: flusher}, true
}

func (s *sseStream) send(id int64, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errNoStream
	}
	if _, err := fmt.Fprintf(s.w, "id: %d\nevent: message\ndata: %s\n\n", id, data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *sseStream) ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errNoStream
	}
	if _, err := io.WriteString(s.w, ": ping\n\n"); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *sseStream) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// NewHTTPHandler creates the streamable HTTP handler and starts the
// session cleanup loop. Call Close to stop it.
func NewHTTPHandler(srv *Server, opts HTTPOptions) *HTTPHandler {
	if opts.SessionTimeout <= 0 {
		opts.SessionTimeout = defaultSessionTimeout
	}
	if opts.KeepAlive <= 0 {
		opts.KeepAlive = defaultKeepAlive
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"http://localhost", "https://localhost"}
	}
	h := &HTTPHandler{
		server:         srv,
		logger:         srv.logger.WithFields(logging.String("transport", "streamable_http")),
		sessions:       make(map[string]*httpSession),
		allowedOrigins: opts.AllowedOrigins,
		sessionTimeout: opts.SessionTimeout,
		keepAlive:      opts.KeepAlive,
		now:            time.Now,
		cleanupDone:    make(chan struct{}),
	}
	go h.cleanupLoop()
	return h
}

// Close stops session cleanup and drops every session
func (h *HTTPHandler) Close() {
	h.closeOnce.Do(func() {
		close(h.cleanupDone)
		h.mu.Lock()
		ids := make([]string, 0, len(h.sessions))
		for id := range h.sessions {
			ids = append(ids, id)
		}
		h.mu.Unlock()
		for _, id := range ids {
			h.removeSession(id)
		}
	})
}

// SessionCount returns the number of live sessions
func (h *HTTPHandler) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

func (h *HTTPHandler) cleanupLoop() {
	interval := h.sessionTimeout / 2
	if interval > time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-h.cleanupDone:
			return
		case <-ticker.C:
			h.cleanupExpiredSessions()
		}
	}
}

func (h *HTTPHandler) cleanupExpiredSessions() {
	now := h.now()
	var expired []string
	h.mu.RLock()
	for id, sess := range h.sessions {
		sess.mu.Lock()
		if now.Sub(sess.lastUsed) > h.sessionTimeout {
			expired = append(expired, id)
		}
		sess.mu.Unlock()
	}
	h.mu.RUnlock()

	for _, id := range expired {
		h.removeSession(id)
		h.logger.Debug("session expired", logging.String("session", id))
	}
}

func (h *HTTPHandler) createSession(ctx context.Context) *httpSession {
	sess := &httpSession{id: uuid.NewString(), lastUsed: h.now()}
	h.mu.Lock()
	h.sessions[sess.id] = sess
	h.mu.Unlock()
	h.server.metrics.RecordActiveSessions(ctx, 1)
	return sess
}

// lookupSession returns the live session and refreshes its idle timer
func (h *HTTPHandler) lookupSession(id string) (*httpSession, bool) {
	h.mu.RLock()
	sess, ok := h.sessions[id]
	h.mu.RUnlock()
	if !ok {
		return nil, false
	}

	now := h.now()
	sess.mu.Lock()
	expired := now.Sub(sess.lastUsed) > h.sessionTimeout
	if !expired {
		sess.lastUsed = now
	}
	sess.mu.Unlock()
	if expired {
		h.removeSession(id)
		return nil, false
	}
	return sess, true
}

func (h *HTTPHandler) removeSession(id string) bool {
	h.mu.Lock()
	sess, ok := h.sessions[id]
	delete(h.sessions, id)
	h.mu.Unlock()
	if !ok {
		return false
	}

	sess.mu.Lock()
	if sess.listener != nil {
		sess.listener.close()
		sess.listener = nil
	}
	sess.mu.Unlock()
	h.server.CloseSession(id)
	h.server.metrics.RecordActiveSessions(context.Background(), -1)
	return true
}

// ServeHTTP implements http.Handler
func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// DNS rebinding protection
	if !h.isOriginAllowed(r.Header.Get("Origin")) {
		http.Error(w, "Origin not allowed", http.StatusForbidden)
		return
	}

	switch r.Method {
	case http.MethodPost:
		h.handlePost(w, r)
	case http.MethodGet:
		h.handleGet(w, r)
	case http.MethodDelete:
		h.handleDelete(w, r)
	default:
		w.Header().Set("Allow", "GET, POST, DELETE")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *HTTPHandler) handlePost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	kind := protocol.Classify(body)
	if kind == protocol.KindInvalid {
		writeJSON(w, http.StatusBadRequest, h.server.HandleMessage(r.Context(), anonymousSession{}, body))
		return
	}

	var peek struct {
		Method string `json:"method"`
	}
	_ = json.Unmarshal(body, &peek)

	sessionID := r.Header.Get(SessionHeader)
	var sess *httpSession
	switch {
	case sessionID == "" && kind == protocol.KindRequest && peek.Method == protocol.MethodInitialize:
		sess = h.createSession(r.Context())
		h.logger.Info("session created", logging.String("session", sess.id))
	case sessionID == "":
		http.Error(w, "Missing "+SessionHeader+" header", http.StatusBadRequest)
		return
	default:
		var ok bool
		if sess, ok = h.lookupSession(sessionID); !ok {
			http.Error(w, "Session not found", http.StatusNotFound)
			return
		}
	}
	w.Header().Set(SessionHeader, sess.id)

	if kind != protocol.KindRequest {
		h.server.HandleMessage(r.Context(), sess, body)
		w.WriteHeader(http.StatusAccepted)
		return
	}

	if peek.Method == protocol.MethodCallTool && acceptsEventStream(r) {
		if stream, ok := newSSEStream(w); ok {
			h.streamRequest(w, r, sess, stream, body)
			return
		}
	}
	writeJSON(w, http.StatusOK, h.server.HandleMessage(r.Context(), sess, body))
}

// streamRequest answers one request as an SSE stream carrying its
// notifications followed by the response
func (h *HTTPHandler) streamRequest(w http.ResponseWriter, r *http.Request, sess *httpSession, stream *sseStream, body []byte) {
	setEventStreamHeaders(w)
	w.WriteHeader(http.StatusOK)
	stream.flusher.Flush()
	defer stream.close()

	done := make(chan []byte, 1)
	go func() {
		done <- h.server.HandleMessage(r.Context(), &requestSession{httpSession: sess, stream: stream}, body)
	}()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()
	for {
		select {
		case resp := <-done:
			if resp != nil {
				if err := stream.send(sess.nextEventID(), resp); err != nil {
					h.logger.Debug("failed to write response event", logging.ErrorField(err))
				}
			}
			return
		case <-ticker.C:
			if err := stream.ping(); err != nil {
				// the request context cancels the call, wait for it to unwind
				<-done
				return
			}
		}
	}
}

// handleGet opens the session's listener stream for notifications not tied
// to a request
func (h *HTTPHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	if !acceptsEventStream(r) {
		http.Error(w, "Accept must include text/event-stream", http.StatusNotAcceptable)
		return
	}
	sess, status := h.requireSession(r)
	if sess == nil {
		http.Error(w, http.StatusText(status), status)
		return
	}
	stream, ok := newSSEStream(w)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	sess.mu.Lock()
	if sess.listener != nil {
		sess.mu.Unlock()
		http.Error(w, "Event stream already open for session", http.StatusConflict)
		return
	}
	sess.listener = stream
	sess.mu.Unlock()
	defer func() {
		stream.close()
		sess.mu.Lock()
		if sess.listener == stream {
			sess.listener = nil
		}
		sess.mu.Unlock()
	}()

	setEventStreamHeaders(w)
	w.Header().Set(SessionHeader, sess.id)
	w.WriteHeader(http.StatusOK)
	stream.flusher.Flush()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.cleanupDone:
			return
		case <-ticker.C:
			if err := stream.ping(); err != nil {
				return
			}
		}
	}
}

func (h *HTTPHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get(SessionHeader)
	if id == "" {
		http.Error(w, "Missing "+SessionHeader+" header", http.StatusBadRequest)
		return
	}
	if !h.removeSession(id) {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	h.logger.Info("session terminated", logging.String("session", id))
	w.WriteHeader(http.StatusOK)
}

// requireSession returns the request's session, or nil with the status to
// reply with
func (h *HTTPHandler) requireSession(r *http.Request) (*httpSession, int) {
	id := r.Header.Get(SessionHeader)
	if id == "" {
		return nil, http.StatusBadRequest
	}
	sess, ok := h.lookupSession(id)
	if !ok {
		return nil, http.StatusNotFound
	}
	return sess, http.StatusOK
}

// isOriginAllowed accepts requests without an Origin header, which
// non-browser clients omit, and otherwise matches the allowed list
func (h *HTTPHandler) isOriginAllowed(origin string) bool {
	if origin == "" {
		return true
	}
	h.mu.RLock()
	origins := h.allowedOrigins
	h.mu.RUnlock()

	for _, allowed := range origins {
		if allowed == "*" || matchOrigin(allowed, origin) {
			return true
		}
	}
	return false
}

// matchOrigin matches exactly, or any port of a localhost pattern
func matchOrigin(allowed, origin string) bool {
	if allowed == origin {
		return true
	}
	return isLocalhostPattern(allowed) && isLocalhostOrigin(origin)
}

var localhostOrigins = []string{
	"http://localhost",
	"https://localhost",
	"http://127.0.0.1",
	"https://127.0.0.1",
	"http://[::1]",
	"https://[::1]",
}

func isLocalhostPattern(allowed string) bool {
	for _, p := range localhostOrigins {
		if allowed == p {
			return true
		}
	}
	return false
}

func isLocalhostOrigin(origin string) bool {
	for _, p := range localhostOrigins {
		if origin == p || strings.HasPrefix(origin, p+":") {
			return true
		}
	}
	return false
}

func acceptsEventStream(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/event-stream")
}

func setEventStreamHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
