package prompt

import (
	"fmt"
	"strings"

	"github.com/otto-ai/otto/pkg/protocol"
)

// CategoryDoc describes one intent category for the classification
// fallback prompt.
type CategoryDoc struct {
	Name        string
	Description string
}

// Classification builds the fallback classification prompt. The model
// must answer with a single JSON object using only the listed
// categories.
func (b *Builder) Classification(text string, categories []CategoryDoc) string {
	var sections []string

	var cats strings.Builder
	for _, c := range categories {
		fmt.Fprintf(&cats, "- %s: %s\n", c.Name, c.Description)
	}
	sections = append(sections, "Categories:\n"+strings.TrimRight(cats.String(), "\n"))
	sections = append(sections, "Request:\n"+text)
	sections = append(sections,
		`Instructions:
Classify the request into exactly one category from the list.
Respond with a single JSON object and nothing else:
{"category":"<category>","subcategory":"<optional>","confidence":<0.0-1.0>}`)

	return strings.Join(sections, "\n\n")
}

// ToolDoc describes one tool for the planning prompt.
type ToolDoc struct {
	Name        string
	Description string
}

// Planning builds the next-step planning prompt: the request, recent
// conversation, the tools on offer, everything executed so far, and an
// explicit follow-up instruction when one is pending.
func (b *Builder) Planning(text string, turns []protocol.Turn, transcript string, tools []ToolDoc, followUp string) string {
	var sections []string
	sections = append(sections, "Task:\n"+text)

	if rendered := b.renderTurns(turns); rendered != "" {
		sections = append(sections, "Conversation Context:\n"+rendered)
	}

	var td strings.Builder
	for _, t := range tools {
		fmt.Fprintf(&td, "- %s: %s\n", t.Name, t.Description)
	}
	sections = append(sections, "Available Tools:\n"+nonEmpty(strings.TrimRight(td.String(), "\n"), "None."))
	sections = append(sections, "Execution History:\n"+nonEmpty(transcript, "No tools have been executed yet."))

	if followUp != "" {
		sections = append(sections, "Next Step:\n"+followUp)
	}

	sections = append(sections,
		`Instructions:
Decide the single next step. Respond with exactly one JSON object and nothing else, in one of these forms:
{"action":"tool_call","tool":"<tool name>","arguments":{...}}
{"action":"final","answer":"<complete answer for the user>"}
Use "final" once the history contains everything needed to answer.`)

	return strings.Join(sections, "\n\n")
}

// Synthesis builds the final-answer prompt. Tool calls are finished;
// the model composes the reply from the accumulated history only.
func (b *Builder) Synthesis(text string, turns []protocol.Turn, transcript string) string {
	var sections []string
	sections = append(sections, "Task:\n"+text)

	if rendered := b.renderTurns(turns); rendered != "" {
		sections = append(sections, "Conversation Context:\n"+rendered)
	}

	sections = append(sections, "Execution History:\n"+nonEmpty(transcript, "No tools were executed."))
	sections = append(sections,
		`Instructions:
Compose the final answer for the user from the information above.
Do not call tools, do not emit JSON, do not ask the user to run anything.
Respond with plain text.`)

	return strings.Join(sections, "\n\n")
}
