// Package tools implements the explorer tools exposed over MCP and REST.
//
// Every tool receives validated arguments, talks to the upstream services
// through small interfaces and returns a Response envelope. Paginated
// tools hand back a next_call descriptor whose cursor is produced by the
// pagination package.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	mcperrors "github.com/ajitpratap0/blockscout-mcp-go/pkg/errors"
	"github.com/ajitpratap0/blockscout-mcp-go/pkg/observability"
	"github.com/ajitpratap0/blockscout-mcp-go/pkg/pagination"
	"github.com/ajitpratap0/blockscout-mcp-go/pkg/protocol"
	"github.com/ajitpratap0/blockscout-mcp-go/pkg/utils"
)

// Handler runs one tool invocation
type Handler func(ctx context.Context, call *Call) (*Response, error)

// Tool describes a callable tool
type Tool struct {
	Name        string
	Title       string
	Description string
	InputSchema json.RawMessage
	Handler     Handler

	schema *jsonschema.Schema
}

// Definition renders the tool for tools/list
func (t *Tool) Definition() protocol.Tool {
	return protocol.Tool{
		Name:        t.Name,
		Title:       t.Title,
		Description: t.Description,
		InputSchema: t.InputSchema,
		Annotations: &protocol.ToolAnnotations{
			Title:          t.Title,
			ReadOnlyHint:   true,
			IdempotentHint: true,
			OpenWorldHint:  true,
		},
	}
}

// ParamTypes maps each declared argument to its JSON Schema type, "" when
// the schema leaves it open
func (t *Tool) ParamTypes() map[string]string {
	var doc struct {
		Properties map[string]struct {
			Type string `json:"type"`
		} `json:"properties"`
	}
	out := map[string]string{}
	if err := json.Unmarshal(t.InputSchema, &doc); err != nil {
		return out
	}
	for name, prop := range doc.Properties {
		out[name] = prop.Type
	}
	return out
}

// Call carries the arguments and progress sink of one invocation
type Call struct {
	Tool     string
	Args     Args
	Reporter pagination.Reporter
}

// Progress reports progress out of total
func (c *Call) Progress(ctx context.Context, progress, total float64, message string) {
	c.Reporter.Progress(ctx, progress, total, message)
}

// Info emits an informational message
func (c *Call) Info(ctx context.Context, message string) {
	c.Reporter.Info(ctx, message)
}

// Registry holds the registered tools
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]*Tool
	metrics observability.MetricsProvider
}

// NewRegistry creates an empty registry. metrics may be nil.
func NewRegistry(metrics observability.MetricsProvider) *Registry {
	if metrics == nil {
		metrics = observability.NoopMetrics()
	}
	return &Registry{tools: make(map[string]*Tool), metrics: metrics}
}

// Register compiles the tool's input schema and adds it
func (r *Registry) Register(t Tool) error {
	if t.Name == "" || t.Handler == nil {
		return fmt.Errorf("tool %q: name and handler are required", t.Name)
	}
	if len(t.InputSchema) == 0 {
		t.InputSchema = json.RawMessage(`{"type":"object","properties":{}}`)
	}
	schema, err := utils.CompileSchema(t.Name, t.InputSchema)
	if err != nil {
		return err
	}
	t.schema = schema

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("tool %q registered twice", t.Name)
	}
	r.tools[t.Name] = &t
	return nil
}

// MustRegister is Register for static tool tables
func (r *Registry) MustRegister(tools ...Tool) {
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
}

// Get looks a tool up by name
func (r *Registry) Get(name string) (*Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns the tool definitions sorted by name
func (r *Registry) List() []protocol.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]protocol.Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t.Definition())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Call validates args against the tool's schema and runs it. A nil
// reporter discards progress.
func (r *Registry) Call(ctx context.Context, name string, args json.RawMessage, reporter pagination.Reporter) (*Response, error) {
	t, ok := r.Get(name)
	if !ok {
		return nil, mcperrors.ToolNotFound(name)
	}

	decoded, err := decodeArgs(args)
	if err != nil {
		return nil, mcperrors.NewError(mcperrors.CodeInvalidParams, "arguments must be a JSON object", mcperrors.CategoryValidation).
			WithDetail(err.Error())
	}
	if err := utils.ValidateAgainstSchema(map[string]interface{}(decoded), t.schema); err != nil {
		return nil, mcperrors.NewError(mcperrors.CodeInvalidParams, "invalid arguments for "+name, mcperrors.CategoryValidation).
			WithDetail(err.Error())
	}

	if reporter == nil {
		reporter = NopReporter{}
	}
	call := &Call{Tool: name, Args: decoded, Reporter: reporter}

	var resp *Response
	err = observability.ObserveToolCall(ctx, r.metrics, name, func(ctx context.Context) error {
		var herr error
		resp, herr = t.Handler(ctx, call)
		return herr
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func decodeArgs(raw json.RawMessage) (Args, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return Args{}, nil
	}
	v, err := utils.DecodeJSON(raw)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("got %T", v)
	}
	return Args(obj), nil
}
