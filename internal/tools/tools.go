// Package tools provides the tool registry the orchestrator executes
// against. Local built-ins register at startup; remote tool families are
// injected by the embedding application and guarded by circuit breakers
// at the call site.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/otto-ai/otto/internal/errors"
)

// Tool is a callable tool.
type Tool interface {
	// Name returns the tool's identifier.
	Name() string

	// Description returns what the tool does.
	Description() string

	// Execute runs the tool with the given input.
	Execute(ctx context.Context, input map[string]any) (*Result, error)
}

// Result is the outcome of one tool execution.
type Result struct {
	Success    bool   `json:"success"`
	Data       any    `json:"data,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// NewSuccessResult creates a successful result.
func NewSuccessResult(data any) *Result {
	return &Result{Success: true, Data: data}
}

// NewErrorResult creates an error result.
func NewErrorResult(err error) *Result {
	return &Result{Success: false, Error: err.Error()}
}

// TimedResult stamps a result with the elapsed duration.
func TimedResult(result *Result, start time.Time) *Result {
	result.DurationMs = time.Since(start).Milliseconds()
	return result
}

// Text renders the result payload for plan history and prompts.
func (r *Result) Text() string {
	if !r.Success {
		return r.Error
	}
	switch v := r.Data.(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(encoded)
	}
}

// Registry maps tool names to executables and their schemas.
// Registration happens during startup wiring; lookups afterwards are
// read-only, so no locking is needed.
type Registry struct {
	tools   map[string]Tool
	schemas map[string]*Schema
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:   make(map[string]Tool),
		schemas: make(map[string]*Schema),
	}
}

// Register adds a tool with its schema. Re-registering a name replaces
// the previous entry.
func (r *Registry) Register(tool Tool, schema *Schema) {
	name := tool.Name()
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = tool
	r.schemas[name] = schema
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Schema retrieves a tool's schema by name.
func (r *Registry) Schema(name string) (*Schema, bool) {
	s, ok := r.schemas[name]
	return s, ok
}

// List returns registered tool names in registration order.
func (r *Registry) List() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Invoke runs a tool by name. Unknown names and missing required
// parameters fail before the tool runs; tool-level failures come back
// as Result.Success=false or an execution error.
func (r *Registry) Invoke(ctx context.Context, name string, input map[string]any) (*Result, error) {
	tool, ok := r.tools[name]
	if !ok {
		return nil, apperrors.NewBuilder(apperrors.CodeToolNotFound, fmt.Sprintf("tool %q is not registered", name)).
			Permanent().
			WithContext("tool", name).
			Build()
	}

	if schema, ok := r.schemas[name]; ok {
		if err := schema.ValidateInput(input); err != nil {
			return nil, apperrors.NewBuilder(apperrors.CodeToolInvalidParams, fmt.Sprintf("invalid parameters for tool %q", name)).
				Permanent().
				Wrap(err).
				WithContext("tool", name).
				Build()
		}
	}

	start := time.Now()
	result, err := tool.Execute(ctx, input)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, apperrors.Wrap(err, apperrors.CodeToolTimeout, fmt.Sprintf("tool %q timed out", name), apperrors.CategoryTemporary)
		}
		return nil, apperrors.Wrap(err, apperrors.CodeToolExecutionFailed, fmt.Sprintf("tool %q failed", name), apperrors.CategoryTemporary)
	}
	if result.DurationMs == 0 {
		result.DurationMs = time.Since(start).Milliseconds()
	}
	return result, nil
}

// ToModelFormat exports all schemas in the tool-use format sent to the
// model provider.
func (r *Registry) ToModelFormat() []map[string]any {
	result := make([]map[string]any, 0, len(r.order))
	for _, name := range r.order {
		schema := r.schemas[name]
		if schema == nil {
			continue
		}
		result = append(result, map[string]any{
			"name":         schema.Name,
			"description":  schema.Description,
			"input_schema": schema.Parameters,
		})
	}
	return result
}

// ToOpenAIFormat exports all schemas in OpenAI function-calling format.
func (r *Registry) ToOpenAIFormat() []map[string]any {
	result := make([]map[string]any, 0, len(r.order))
	for _, name := range r.order {
		schema := r.schemas[name]
		if schema == nil {
			continue
		}
		result = append(result, map[string]any{
			"type":     "function",
			"function": schema,
		})
	}
	return result
}
