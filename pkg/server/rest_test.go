package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mcperrors "github.com/ajitpratap0/blockscout-mcp-go/pkg/errors"
	"github.com/ajitpratap0/blockscout-mcp-go/pkg/observability"
	"github.com/ajitpratap0/blockscout-mcp-go/pkg/sizeguard"
)

func newTestRouter(t *testing.T, enableREST bool) *httptest.Server {
	t.Helper()
	router := NewRouter(newTestServer(t, nil), RouterOptions{EnableREST: enableREST})
	ts := httptest.NewServer(router)
	t.Cleanup(func() {
		ts.Close()
		router.Close()
	})
	return ts
}

func get(t *testing.T, rawURL string, headers map[string]string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp.StatusCode, readBody(t, resp)
}

func TestRESTHealthAndTools(t *testing.T) {
	ts := newTestRouter(t, true)

	status, body := get(t, ts.URL+"/health", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"ok"}`, body)

	status, body = get(t, ts.URL+"/v1/tools", nil)
	assert.Equal(t, http.StatusOK, status)
	var list []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(body), &list))
	assert.Len(t, list, 4)

	status, _ = get(t, ts.URL+"/metrics", nil)
	assert.Equal(t, http.StatusNotFound, status, "metrics disabled")
}

func TestRESTMetricsRecordSizeGuardDenials(t *testing.T) {
	metrics, err := observability.NewMetricsProvider(observability.MetricsConfig{ServiceName: "test"})
	require.NoError(t, err)
	srv := New(testRegistry(t, nil), WithMetrics(metrics))
	router := NewRouter(srv, RouterOptions{EnableREST: true})
	ts := httptest.NewServer(router)
	defer func() {
		ts.Close()
		router.Close()
	}()

	status, _ := get(t, ts.URL+"/v1/large", nil)
	require.Equal(t, http.StatusRequestEntityTooLarge, status)

	status, body := get(t, ts.URL+"/metrics", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "response_size_denials_total")
	assert.Contains(t, body, `channel="rest"`)
}

func TestRESTDisabled(t *testing.T) {
	ts := newTestRouter(t, false)
	status, _ := get(t, ts.URL+"/v1/tools", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestRESTCoercesQueryParameters(t *testing.T) {
	ts := newTestRouter(t, true)

	q := url.Values{}
	q.Set("value", "0xabc")
	q.Set("count", "3")
	q.Set("flag", "true")
	q.Set("items", "a, b")
	q.Set("extra", `{"k":[1]}`)
	status, body := get(t, ts.URL+"/v1/echo?"+q.Encode(), nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.JSONEq(t, `{"data":{"value":"0xabc","count":3,"flag":true,"items":["a","b"],"extra":{"k":[1]}}}`, body)

	status, body = get(t, ts.URL+"/v1/echo?items=x&items=y", nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.JSONEq(t, `{"data":{"items":["x","y"]}}`, body)
}

func TestRESTErrorStatuses(t *testing.T) {
	ts := newTestRouter(t, true)

	tests := []struct {
		name    string
		path    string
		headers map[string]string
		status  int
		errType string
	}{
		{"unknown tool", "/v1/nope", nil, http.StatusNotFound, "ToolNotFound"},
		{"bad boolean", "/v1/echo?flag=maybe", nil, http.StatusBadRequest, "InvalidParameter"},
		{"schema violation", "/v1/echo?unknown=1", nil, http.StatusBadRequest, "InvalidParams"},
		{"upstream status", "/v1/upstream", nil, http.StatusServiceUnavailable, "UpstreamError"},
		{"too large", "/v1/large", nil, http.StatusRequestEntityTooLarge, "ResponseTooLarge"},
		{"too large with override", "/v1/large", map[string]string{sizeguard.OverrideHeader: "TRUE"}, http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := get(t, ts.URL+tt.path, tt.headers)
			assert.Equal(t, tt.status, status, body)
			if tt.status != http.StatusOK {
				var e map[string]string
				require.NoError(t, json.Unmarshal([]byte(body), &e))
				assert.NotEmpty(t, e["error"])
				assert.Equal(t, tt.errType, e["error_type"])
			}
		})
	}
}

func TestRESTStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"invalid cursor", mcperrors.InvalidCursor(errors.New("bad")), http.StatusBadRequest},
		{"unavailable chain", mcperrors.UpstreamUnavailable("blockscout", "chain 1"), http.StatusNotFound},
		{"upstream 404", mcperrors.UpstreamError("blockscout", "u", 404, "", nil), http.StatusNotFound},
		{"upstream transport", mcperrors.UpstreamError("blockscout", "u", 0, "", errors.New("dial")), http.StatusBadGateway},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, restStatus(tt.err))
		})
	}
}

func TestRESTCORSExposesSessionHeader(t *testing.T) {
	ts := newTestRouter(t, true)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/mcp", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", SessionHeader)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, strings.ToLower(resp.Header.Get("Access-Control-Allow-Headers")), strings.ToLower(SessionHeader))
}
