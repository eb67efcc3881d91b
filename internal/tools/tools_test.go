package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/otto-ai/otto/internal/errors"
)

type fakeTool struct {
	name   string
	result *Result
	err    error
	calls  int
}

func (f *fakeTool) Name() string        { return f.name }
func (f *fakeTool) Description() string { return "fake" }

func (f *fakeTool) Execute(ctx context.Context, input map[string]any) (*Result, error) {
	f.calls++
	return f.result, f.err
}

func TestRegistryRegisterAndList(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&fakeTool{name: "beta"}, NewSchema("beta", "b").Build())
	reg.Register(&fakeTool{name: "alpha"}, NewSchema("alpha", "a").Build())

	assert.Equal(t, []string{"beta", "alpha"}, reg.List(), "registration order preserved")

	_, ok := reg.Get("alpha")
	assert.True(t, ok)
	_, ok = reg.Get("gamma")
	assert.False(t, ok)
}

func TestInvokeUnknownTool(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Invoke(context.Background(), "missing", nil)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeToolNotFound))
}

func TestInvokeValidatesRequiredParams(t *testing.T) {
	reg := NewRegistry()
	ft := &fakeTool{name: "echo", result: NewSuccessResult("hi")}
	reg.Register(ft, NewSchema("echo", "echo").
		AddParam("text", "string", "text to echo", true).
		Build())

	_, err := reg.Invoke(context.Background(), "echo", map[string]any{})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeToolInvalidParams))
	assert.Zero(t, ft.calls, "tool must not run with invalid params")

	_, err = reg.Invoke(context.Background(), "echo", map[string]any{"text": ""})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeToolInvalidParams))

	res, err := reg.Invoke(context.Background(), "echo", map[string]any{"text": "hi"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, ft.calls)
}

func TestInvokeWrapsExecutionError(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&fakeTool{name: "broken", err: errors.New("disk on fire")}, NewSchema("broken", "x").Build())

	_, err := reg.Invoke(context.Background(), "broken", nil)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeToolExecutionFailed))
	assert.Contains(t, err.Error(), "disk on fire")
}

func TestInvokeStampsDuration(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&fakeTool{name: "quick", result: NewSuccessResult("done")}, NewSchema("quick", "q").Build())

	res, err := reg.Invoke(context.Background(), "quick", nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.DurationMs, int64(0))
}

func TestResultText(t *testing.T) {
	tests := []struct {
		name   string
		result *Result
		want   string
	}{
		{"string data", NewSuccessResult("plain text"), "plain text"},
		{"nil data", NewSuccessResult(nil), ""},
		{"map data", NewSuccessResult(map[string]any{"count": 2}), `{"count":2}`},
		{"error result", NewErrorResult(errors.New("nope")), "nope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.result.Text())
		})
	}
}

func TestSchemaBuilder(t *testing.T) {
	schema := NewSchema("search", "Search things").
		AddParam("query", "string", "what to search", true).
		AddParam("limit", "integer", "max results", false).
		AddParamWithEnum("mode", "string", "search mode", []string{"fast", "deep"}, false).
		Build()

	assert.Equal(t, "search", schema.Name)
	assert.Equal(t, []string{"query"}, schema.Required())

	props := schema.Parameters["properties"].(map[string]any)
	assert.Contains(t, props, "query")
	assert.Contains(t, props, "limit")
	mode := props["mode"].(map[string]any)
	assert.Equal(t, []string{"fast", "deep"}, mode["enum"])
}

func TestSchemaExportFormats(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&fakeTool{name: "a"}, NewSchema("a", "first").Build())
	reg.Register(&fakeTool{name: "b"}, NewSchema("b", "second").Build())

	model := reg.ToModelFormat()
	require.Len(t, model, 2)
	assert.Equal(t, "a", model[0]["name"])
	assert.Contains(t, model[0], "input_schema")

	openai := reg.ToOpenAIFormat()
	require.Len(t, openai, 2)
	assert.Equal(t, "function", openai[0]["type"])
}
