package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mcperrors "github.com/ajitpratap0/blockscout-mcp-go/pkg/errors"
)

func jsonLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(line, &m))
		out = append(out, m)
	}
	return out
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", DebugLevel, false},
		{"INFO", InfoLevel, false},
		{"", InfoLevel, false},
		{"warning", WarnLevel, false},
		{"error", ErrorLevel, false},
		{"verbose", InfoLevel, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJSONLoggerFieldsAndLevels(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: InfoLevel, Format: "json", Writer: &buf})

	l.Debug("hidden")
	l.WithFields(String("tool", "get_latest_block"), Int("chain_id", 1)).Info("tool called")

	lines := jsonLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "tool called", lines[0]["msg"])
	assert.Equal(t, "get_latest_block", lines[0]["tool"])
	assert.EqualValues(t, 1, lines[0]["chain_id"])
}

func TestSetLevelAffectsDerivedLoggers(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: WarnLevel, Format: "json", Writer: &buf})
	child := l.WithFields(String("component", "test"))

	child.Info("dropped")
	l.SetLevel(DebugLevel)
	child.Debug("kept")

	lines := jsonLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "kept", lines[0]["msg"])
	assert.Equal(t, DebugLevel, l.GetLevel())
}

func TestWithErrorAddsMCPCode(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Format: "json", Writer: &buf})

	l.WithError(mcperrors.MissingParameter("chain_id")).Error("bad call")

	lines := jsonLines(t, &buf)
	require.Len(t, lines, 1)
	assert.EqualValues(t, mcperrors.CodeMissingParameter, lines[0]["error_code"])
	assert.Equal(t, string(mcperrors.CategoryValidation), lines[0]["error_category"])
	assert.Contains(t, lines[0]["error"], "chain_id")
}

func TestWithContextRequestID(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Format: "json", Writer: &buf})

	ctx := ContextWithRequestID(context.Background(), "req-42")
	l.WithContext(ctx).Info("hello")
	l.WithContext(context.Background()).Info("plain")

	lines := jsonLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "req-42", lines[0]["request_id"])
	assert.NotContains(t, lines[1], "request_id")
}

func TestTextFormatUsesTint(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Writer: &buf, NoColor: true})
	l.Info("started", String("addr", ":8000"))

	out := buf.String()
	assert.Contains(t, out, "INF")
	assert.Contains(t, out, "started")
	assert.Contains(t, out, "addr=:8000")
}

func TestHTTPMiddleware(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Format: "json", Writer: &buf})

	var seen string
	h := HTTPMiddleware(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("ok"))
	}))

	t.Run("generates id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
		assert.Equal(t, http.StatusTeapot, rec.Code)
	})

	t.Run("keeps incoming id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(RequestIDHeader, "abc")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, "abc", seen)
	})

	lines := jsonLines(t, &buf)
	require.NotEmpty(t, lines)
	last := lines[len(lines)-1]
	assert.Equal(t, "HTTP request completed", last["msg"])
	assert.EqualValues(t, http.StatusTeapot, last["status"])
	assert.EqualValues(t, 2, last["bytes"])
}
