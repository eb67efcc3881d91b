package orchestrator

import (
	"encoding/json"
	"strings"

	"github.com/otto-ai/otto/internal/model"
)

const (
	actionToolCall = "tool_call"
	actionFinal    = "final"
)

// Decision is one planning choice: call a tool or answer.
type Decision struct {
	Action    string
	Tool      string
	Arguments map[string]any
	Answer    string
}

// Final reports whether the decision ends the loop.
func (d *Decision) Final() bool {
	return d.Action != actionToolCall
}

// parseDecision interprets a model response as a planning decision.
// Native tool calls win; then the strict JSON protocol; anything out
// of schema is treated as a final answer and left for the validator.
func parseDecision(resp *model.Response) *Decision {
	if len(resp.ToolCalls) > 0 {
		call := resp.ToolCalls[0]
		return &Decision{
			Action:    actionToolCall,
			Tool:      call.Name,
			Arguments: call.Input,
		}
	}

	raw := strings.TrimSpace(resp.Text)
	if obj := extractObject(raw); obj != "" {
		var decoded struct {
			Action    string         `json:"action"`
			Tool      string         `json:"tool"`
			Arguments map[string]any `json:"arguments"`
			Answer    string         `json:"answer"`
		}
		if err := json.Unmarshal([]byte(obj), &decoded); err == nil {
			switch decoded.Action {
			case actionToolCall:
				if decoded.Tool != "" {
					return &Decision{
						Action:    actionToolCall,
						Tool:      decoded.Tool,
						Arguments: decoded.Arguments,
					}
				}
			case actionFinal:
				return &Decision{Action: actionFinal, Answer: decoded.Answer}
			}
		}
	}

	return &Decision{Action: actionFinal, Answer: raw}
}

// extractObject returns the outermost {...} span of raw, or "".
func extractObject(raw string) string {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end <= start {
		return ""
	}
	return raw[start : end+1]
}
