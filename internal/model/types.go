// Package model provides the remote model client used for intent
// fallback, planning, and synthesis.
package model

// Request is a model inference request.
type Request struct {
	System      string  `json:"system,omitempty"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	JSON        bool    `json:"json,omitempty"` // request a JSON object response
	Tools       []Tool  `json:"tools,omitempty"`
}

// Response is a model inference response: text, or a native tool call,
// or both.
type Response struct {
	Text       string     `json:"text"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	TokensUsed int        `json:"tokens_used"`
	Model      string     `json:"model"`
	DurationMs int64      `json:"duration_ms"`
}

// Tool is a tool definition offered to the model.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}
