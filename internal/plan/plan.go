// Package plan provides the working execution plan for a single request.
//
// A Plan is append-only: steps are added as the orchestrator decides on
// them and are never reordered or removed, so the history fed back to
// the planner is a faithful record of what actually ran. A Plan is owned
// by one request goroutine and is not safe for concurrent use.
package plan

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/otto-ai/otto/pkg/protocol"
)

// Status is the lifecycle state of a step.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Step is one tool invocation in a plan.
type Step struct {
	ID        int            `json:"id"`
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
	Status    Status         `json:"status"`
	Output    string         `json:"output,omitempty"`
	Error     string         `json:"error,omitempty"`
	StartedAt time.Time      `json:"started_at,omitempty"`
	Duration  time.Duration  `json:"duration,omitempty"`
}

// Start marks the step as running.
func (s *Step) Start() {
	s.Status = StatusRunning
	s.StartedAt = time.Now()
}

// Succeed records a successful outcome.
func (s *Step) Succeed(output string) {
	s.Status = StatusSucceeded
	s.Output = output
	s.Duration = time.Since(s.StartedAt)
}

// Fail records a failed outcome.
func (s *Step) Fail(err error) {
	s.Status = StatusFailed
	if err != nil {
		s.Error = err.Error()
	}
	s.Duration = time.Since(s.StartedAt)
}

// Fingerprint returns a canonical identity for the step's tool call.
func (s *Step) Fingerprint() string {
	return Fingerprint(s.Tool, s.Arguments)
}

// Fingerprint builds a canonical tool+arguments identity. json.Marshal
// sorts map keys, so two argument maps with the same contents produce
// the same fingerprint regardless of construction order.
func Fingerprint(tool string, args map[string]any) string {
	if args == nil {
		args = map[string]any{}
	}
	encoded, err := json.Marshal(args)
	if err != nil {
		encoded = []byte(fmt.Sprintf("%v", args))
	}
	return tool + "(" + string(encoded) + ")"
}

// Plan is the append-only step sequence for one request.
type Plan struct {
	steps []*Step
}

// New creates an empty plan.
func New() *Plan {
	return &Plan{}
}

// Append adds a step with the next 1-based ID and returns it.
func (p *Plan) Append(tool string, args map[string]any) *Step {
	step := &Step{
		ID:        len(p.steps) + 1,
		Tool:      tool,
		Arguments: args,
		Status:    StatusPending,
	}
	p.steps = append(p.steps, step)
	return step
}

// Steps returns the steps in execution order.
func (p *Plan) Steps() []*Step {
	return p.steps
}

// Len returns the number of steps.
func (p *Plan) Len() int {
	return len(p.steps)
}

// Last returns the most recent step, or nil for an empty plan.
func (p *Plan) Last() *Step {
	if len(p.steps) == 0 {
		return nil
	}
	return p.steps[len(p.steps)-1]
}

// LastSuccess returns the most recent succeeded step, or nil.
func (p *Plan) LastSuccess() *Step {
	for i := len(p.steps) - 1; i >= 0; i-- {
		if p.steps[i].Status == StatusSucceeded {
			return p.steps[i]
		}
	}
	return nil
}

// Failures counts failed steps.
func (p *Plan) Failures() int {
	n := 0
	for _, s := range p.steps {
		if s.Status == StatusFailed {
			n++
		}
	}
	return n
}

// WouldRepeat reports whether appending the given call would duplicate
// the immediately preceding step. Two identical consecutive calls mean
// the planner is looping, not making progress.
func (p *Plan) WouldRepeat(tool string, args map[string]any) bool {
	last := p.Last()
	if last == nil {
		return false
	}
	return last.Fingerprint() == Fingerprint(tool, args)
}

// Records exports the steps as boundary audit records.
func (p *Plan) Records() []protocol.ToolCallRecord {
	records := make([]protocol.ToolCallRecord, 0, len(p.steps))
	for _, s := range p.steps {
		records = append(records, protocol.ToolCallRecord{
			Tool:       s.Tool,
			Arguments:  s.Arguments,
			Output:     s.Output,
			Error:      s.Error,
			DurationMs: s.Duration.Milliseconds(),
		})
	}
	return records
}

// Transcript renders the execution history for inclusion in a planner
// or synthesis prompt.
func (p *Plan) Transcript() string {
	if len(p.steps) == 0 {
		return "No tools have been executed yet."
	}

	var sb strings.Builder
	for _, s := range p.steps {
		args, _ := json.Marshal(s.Arguments)
		sb.WriteString(fmt.Sprintf("Step %d: %s %s [%s]", s.ID, s.Tool, args, s.Status))
		if s.Duration > 0 {
			sb.WriteString(fmt.Sprintf(" (%dms)", s.Duration.Milliseconds()))
		}
		sb.WriteString("\n")

		switch s.Status {
		case StatusSucceeded:
			sb.WriteString("Output: ")
			sb.WriteString(s.Output)
			sb.WriteString("\n")
		case StatusFailed:
			sb.WriteString("Error: ")
			sb.WriteString(s.Error)
			sb.WriteString("\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
