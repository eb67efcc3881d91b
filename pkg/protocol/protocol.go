// Package protocol provides shared data structures used across Otto components.
// These types can be imported by external tools and extensions.
package protocol

import "time"

// Turn roles as stored in conversation context.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Request represents an incoming request from a caller. Immutable once built:
// the pipeline reads Context but never owns or mutates it.
type Request struct {
	ID       string `json:"id"`
	CallerID string `json:"caller_id"`
	Text     string `json:"text"`
	Context  []Turn `json:"context,omitempty"` // Prior turns, oldest first
}

// Turn is a single entry of conversation history.
type Turn struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Result is what the pipeline returns for a request. Degraded signals that a
// dependency was unavailable or a budget was exhausted; the text is still safe
// and non-empty, so calling layers only need this flag for annotation.
type Result struct {
	Text          string `json:"text"`
	Intent        string `json:"intent"`
	ToolCallsMade int    `json:"tool_calls_made"`
	Degraded      bool   `json:"degraded"`
}

// ToolCallRecord describes one executed tool call, exposed for audit trails.
type ToolCallRecord struct {
	Tool       string         `json:"tool"`
	Arguments  map[string]any `json:"arguments,omitempty"`
	Output     string         `json:"output,omitempty"`
	Error      string         `json:"error,omitempty"`
	DurationMs int64          `json:"duration_ms"`
}
