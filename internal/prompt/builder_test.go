package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/otto-ai/otto/pkg/protocol"
)

func TestBuildSystemPromptSections(t *testing.T) {
	b := NewBuilder("/work")

	out := b.BuildSystemPrompt(SystemContext{Tooling: "location, shell"})

	assert.Contains(t, out, "You are Otto")
	assert.Contains(t, out, "Tooling:\nlocation, shell")
	assert.Contains(t, out, "Workspace:\n/work")
	assert.Contains(t, out, "Runtime:\n")
	sections := strings.Split(out, "\n\n")
	assert.GreaterOrEqual(t, len(sections), 5)
}

func TestBuildSystemPromptDefaults(t *testing.T) {
	b := NewBuilder("")
	out := b.BuildSystemPrompt(SystemContext{})
	assert.Contains(t, out, "Tooling:\nNone.")
}

func TestClassificationPrompt(t *testing.T) {
	b := NewBuilder("")
	out := b.Classification("where am I", []CategoryDoc{
		{Name: "location_query", Description: "asks about the working directory"},
		{Name: "conversation", Description: "small talk"},
	})

	assert.Contains(t, out, "- location_query: asks about the working directory")
	assert.Contains(t, out, "Request:\nwhere am I")
	assert.Contains(t, out, `"category"`)
	assert.Contains(t, out, "exactly one category")
}

func TestPlanningPrompt(t *testing.T) {
	b := NewBuilder("")
	turns := []protocol.Turn{
		{Role: protocol.RoleUser, Content: "hello"},
		{Role: protocol.RoleAssistant, Content: "hi there"},
	}

	out := b.Planning("compare revenues", turns, "Step 1: finance_lookup ...", []ToolDoc{
		{Name: "finance_lookup", Description: "look up company financials"},
	}, "The request also asks about Microsoft. Invoke finance_lookup for Microsoft next.")

	assert.Contains(t, out, "Task:\ncompare revenues")
	assert.Contains(t, out, "User: hello")
	assert.Contains(t, out, "Assistant: hi there")
	assert.Contains(t, out, "- finance_lookup: look up company financials")
	assert.Contains(t, out, "Execution History:\nStep 1: finance_lookup")
	assert.Contains(t, out, "Next Step:\nThe request also asks about Microsoft")
	assert.Contains(t, out, `{"action":"tool_call"`)
}

func TestPlanningPromptOmitsEmptySections(t *testing.T) {
	b := NewBuilder("")
	out := b.Planning("hi", nil, "", nil, "")

	assert.NotContains(t, out, "Conversation Context:")
	assert.NotContains(t, out, "Next Step:")
	assert.Contains(t, out, "Available Tools:\nNone.")
	assert.Contains(t, out, "No tools have been executed yet.")
}

func TestRenderTurnsLimitsHistory(t *testing.T) {
	b := NewBuilder("")
	b.MaxHistory = 2

	turns := []protocol.Turn{
		{Role: protocol.RoleUser, Content: "one"},
		{Role: protocol.RoleUser, Content: "two"},
		{Role: protocol.RoleUser, Content: "three"},
	}

	out := b.renderTurns(turns)
	assert.NotContains(t, out, "one")
	assert.Contains(t, out, "two")
	assert.Contains(t, out, "three")
}

func TestSynthesisPrompt(t *testing.T) {
	b := NewBuilder("")
	out := b.Synthesis("compare revenues", nil, "Step 1: done")

	assert.Contains(t, out, "Execution History:\nStep 1: done")
	assert.Contains(t, out, "Do not call tools")
	assert.NotContains(t, out, `"action"`)
}
