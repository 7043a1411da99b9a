package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	mcperrors "github.com/ajitpratap0/blockscout-mcp-go/pkg/errors"
	"github.com/ajitpratap0/blockscout-mcp-go/pkg/logging"
	"github.com/ajitpratap0/blockscout-mcp-go/pkg/sizeguard"
	"github.com/ajitpratap0/blockscout-mcp-go/pkg/tools"
)

// RouterOptions configures NewRouter
type RouterOptions struct {
	// EnableREST mounts the /v1 façade next to /mcp
	EnableREST bool
	HTTP       HTTPOptions
}

// Router serves MCP over streamable HTTP at /mcp plus health, metrics and,
// optionally, the REST façade
type Router struct {
	chi.Router
	MCP *HTTPHandler
}

// NewRouter builds the HTTP surface for srv
func NewRouter(srv *Server, opts RouterOptions) *Router {
	logger := srv.logger.WithFields(logging.String("component", "http"))
	mcp := NewHTTPHandler(srv, opts.HTTP)

	origins := opts.HTTP.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(logging.HTTPMiddleware(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization", SessionHeader,
			sizeguard.OverrideHeader, logging.RequestIDHeader, "Mcp-Protocol-Version"},
		ExposedHeaders: []string{SessionHeader, logging.RequestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeValue(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", srv.metrics.Handler())
	r.Handle("/mcp", mcp)

	if opts.EnableREST {
		rest := &restHandler{registry: srv.registry, server: srv, logger: logger}
		r.Route("/v1", func(r chi.Router) {
			r.Get("/tools", rest.listTools)
			r.Get("/{tool}", rest.callTool)
		})
	}

	return &Router{Router: r, MCP: mcp}
}

// Close releases the MCP sessions
func (r *Router) Close() { r.MCP.Close() }

type restHandler struct {
	registry *tools.Registry
	server   *Server
	logger   logging.Logger
}

func (h *restHandler) listTools(w http.ResponseWriter, _ *http.Request) {
	writeValue(w, http.StatusOK, h.registry.List())
}

func (h *restHandler) callTool(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "tool")
	tool, ok := h.registry.Get(name)
	if !ok {
		h.writeError(w, r, mcperrors.ToolNotFound(name))
		return
	}

	args, err := coerceQuery(r.URL.Query(), tool.ParamTypes())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	raw, err := json.Marshal(args)
	if err != nil {
		h.writeError(w, r, mcperrors.InternalError("marshal_arguments", err))
		return
	}

	ctx := sizeguard.WithChannel(r.Context(), sizeguard.ChannelREST, r.Header.Get(sizeguard.OverrideHeader))
	resp, err := h.registry.Call(ctx, name, raw, tools.LogReporter{Logger: h.logger})
	if err != nil {
		if sizeguard.IsResponseTooLarge(err) {
			h.server.metrics.RecordSizeGuardDenial(ctx, sizeguard.ChannelREST.String())
		}
		h.writeError(w, r, err)
		return
	}
	writeValue(w, http.StatusOK, resp)
}

func (h *restHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := restStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.WithContext(r.Context()).WithError(err).Error("tool call failed", logging.String("path", r.URL.Path))
	}
	writeValue(w, status, map[string]string{
		"error":      err.Error(),
		"error_type": mcperrors.GetErrorCodeName(mcperrors.ToJSONRPCError(err).Code),
	})
}

// restStatus maps a tool error onto an HTTP status
func restStatus(err error) int {
	switch {
	case sizeguard.IsResponseTooLarge(err):
		return http.StatusRequestEntityTooLarge
	case mcperrors.IsCode(err, mcperrors.CodeToolNotFound), mcperrors.IsCode(err, mcperrors.CodeUpstreamUnavailable):
		return http.StatusNotFound
	case mcperrors.IsCategory(err, mcperrors.CategoryValidation), mcperrors.IsCode(err, mcperrors.CodeInvalidParams):
		return http.StatusBadRequest
	}
	if status, ok := mcperrors.UpstreamStatus(err); ok && status >= http.StatusBadRequest {
		return status
	}
	if mcperrors.IsCode(err, mcperrors.CodeUpstreamError) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// coerceQuery turns query parameters into tool arguments using the JSON
// types declared by the tool's input schema. Parameters the schema does
// not declare pass through as strings and are rejected by validation.
func coerceQuery(query map[string][]string, types map[string]string) (map[string]interface{}, error) {
	args := make(map[string]interface{}, len(query))
	for key, values := range query {
		if len(values) == 0 {
			continue
		}
		value := values[0]
		switch types[key] {
		case "boolean":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return nil, mcperrors.InvalidParameter(key, value, "expected true or false")
			}
			args[key] = b
		case "integer", "number":
			if _, err := strconv.ParseFloat(value, 64); err != nil {
				return nil, mcperrors.InvalidParameter(key, value, "expected a number")
			}
			args[key] = json.Number(value)
		case "array":
			list, err := coerceArray(key, values)
			if err != nil {
				return nil, err
			}
			args[key] = list
		case "object":
			var obj map[string]interface{}
			if err := json.Unmarshal([]byte(value), &obj); err != nil {
				return nil, mcperrors.InvalidParameter(key, value, "expected a JSON object")
			}
			args[key] = obj
		case "string":
			args[key] = value
		default:
			args[key] = maybeJSON(value)
		}
	}
	return args, nil
}

// coerceArray accepts repeated parameters, a JSON array or a comma
// separated list
func coerceArray(key string, values []string) ([]interface{}, error) {
	if len(values) > 1 {
		out := make([]interface{}, len(values))
		for i, v := range values {
			out[i] = v
		}
		return out, nil
	}
	value := strings.TrimSpace(values[0])
	if strings.HasPrefix(value, "[") {
		var out []interface{}
		if err := json.Unmarshal([]byte(value), &out); err != nil {
			return nil, mcperrors.InvalidParameter(key, value, "expected a JSON array")
		}
		return out, nil
	}
	if value == "" {
		return []interface{}{}, nil
	}
	parts := strings.Split(value, ",")
	out := make([]interface{}, len(parts))
	for i, p := range parts {
		out[i] = strings.TrimSpace(p)
	}
	return out, nil
}

// maybeJSON decodes values of untyped parameters that look like JSON
// arrays or objects
func maybeJSON(value string) interface{} {
	trimmed := strings.TrimSpace(value)
	if !strings.HasPrefix(trimmed, "[") && !strings.HasPrefix(trimmed, "{") {
		return value
	}
	var out interface{}
	if err := json.Unmarshal([]byte(trimmed), &out); err != nil {
		return value
	}
	return out
}

func writeValue(w http.ResponseWriter, status int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":"failed to encode response"}`)
	}
	writeJSON(w, status, body)
}
