package server

import (
	"bufio"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/blockscout-mcp-go/pkg/protocol"
)

const initializeBody = `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-06-18","clientInfo":{"name":"http","version":"1"}}}`

func newTestHTTPHandler(t *testing.T, opts HTTPOptions) (*HTTPHandler, *httptest.Server) {
	t.Helper()
	h := NewHTTPHandler(newTestServer(t, nil), opts)
	ts := httptest.NewServer(h)
	t.Cleanup(func() {
		ts.Close()
		h.Close()
	})
	return h, ts
}

func post(t *testing.T, url, session, body string, headers map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if session != "" {
		req.Header.Set(SessionHeader, session)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// openSession initializes a session and returns its id
func openSession(t *testing.T, url string) string {
	t.Helper()
	resp := post(t, url, "", initializeBody, nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	id := resp.Header.Get(SessionHeader)
	require.NotEmpty(t, id)

	resp = post(t, url, id, `{"jsonrpc":"2.0","method":"notifications/initialized"}`, nil)
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	return id
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestHTTPSessionLifecycle(t *testing.T) {
	h, ts := newTestHTTPHandler(t, HTTPOptions{})
	id := openSession(t, ts.URL)
	assert.Equal(t, 1, h.SessionCount())

	resp := post(t, ts.URL, id, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Contains(t, readBody(t, resp), `"name":"echo"`)

	req, err := http.NewRequest(http.MethodDelete, ts.URL, nil)
	require.NoError(t, err)
	req.Header.Set(SessionHeader, id)
	del, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	del.Body.Close()
	assert.Equal(t, http.StatusOK, del.StatusCode)
	assert.Equal(t, 0, h.SessionCount())

	resp = post(t, ts.URL, id, `{"jsonrpc":"2.0","id":3,"method":"tools/list"}`, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHTTPSessionRequired(t *testing.T) {
	_, ts := newTestHTTPHandler(t, HTTPOptions{})

	tests := []struct {
		name    string
		session string
		body    string
		status  int
	}{
		{"missing session", "", `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`, http.StatusBadRequest},
		{"unknown session", "nope", `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`, http.StatusNotFound},
		{"malformed body", "", `{"jsonrpc":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, ts.URL, tt.session, tt.body, nil)
			resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestHTTPOriginValidation(t *testing.T) {
	_, ts := newTestHTTPHandler(t, HTTPOptions{AllowedOrigins: []string{"http://localhost", "https://app.example"}})

	tests := []struct {
		origin string
		status int
	}{
		{"", http.StatusOK},
		{"http://localhost:6274", http.StatusOK},
		{"https://app.example", http.StatusOK},
		{"https://evil.example", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			headers := map[string]string{}
			if tt.origin != "" {
				headers["Origin"] = tt.origin
			}
			resp := post(t, ts.URL, "", initializeBody, headers)
			resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestHTTPToolCallStreamsProgress(t *testing.T) {
	_, ts := newTestHTTPHandler(t, HTTPOptions{})
	id := openSession(t, ts.URL)

	resp := post(t, ts.URL, id,
		`{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":"echo","arguments":{"value":"v"},"_meta":{"progressToken":"p"}}}`,
		map[string]string{"Accept": "application/json, text/event-stream"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	var data []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		if line := scanner.Text(); strings.HasPrefix(line, "data: ") {
			data = append(data, strings.TrimPrefix(line, "data: "))
		}
	}
	resp.Body.Close()

	require.Len(t, data, 3)
	assert.Contains(t, data[0], protocol.MethodProgress)
	assert.Contains(t, data[1], protocol.MethodLogMessage)
	assert.Contains(t, data[2], `"id":5`)
	assert.Contains(t, data[2], `"structuredContent":{"data":{"value":"v"}}`)
}

func TestHTTPListenerStream(t *testing.T) {
	_, ts := newTestHTTPHandler(t, HTTPOptions{KeepAlive: 10 * time.Millisecond})
	id := openSession(t, ts.URL)

	req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set(SessionHeader, id)
	listener, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer listener.Body.Close()
	require.Equal(t, http.StatusOK, listener.StatusCode)

	second, err := http.DefaultClient.Do(req.Clone(req.Context()))
	require.NoError(t, err)
	second.Body.Close()
	assert.Equal(t, http.StatusConflict, second.StatusCode)

	// a JSON tools/call sends its notifications to the listener
	resp := post(t, ts.URL, id,
		`{"jsonrpc":"2.0","id":6,"method":"tools/call","params":{"name":"echo","_meta":{"progressToken":1}}}`, nil)
	assert.Contains(t, readBody(t, resp), `"id":6`)

	reader := bufio.NewReader(listener.Body)
	found := false
	for i := 0; i < 50 && !found; i++ {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		found = strings.Contains(line, protocol.MethodProgress)
	}
	assert.True(t, found, "progress notification on the listener stream")
}

func TestHTTPSessionExpiry(t *testing.T) {
	h, ts := newTestHTTPHandler(t, HTTPOptions{SessionTimeout: time.Hour})
	id := openSession(t, ts.URL)

	base := time.Now()
	h.now = func() time.Time { return base.Add(2 * time.Hour) }
	h.cleanupExpiredSessions()
	assert.Equal(t, 0, h.SessionCount())

	resp := post(t, ts.URL, id, `{"jsonrpc":"2.0","id":2,"method":"ping"}`, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHTTPMethodNotAllowed(t *testing.T) {
	_, ts := newTestHTTPHandler(t, HTTPOptions{})
	req, err := http.NewRequest(http.MethodPut, ts.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, "GET, POST, DELETE", resp.Header.Get("Allow"))
}
