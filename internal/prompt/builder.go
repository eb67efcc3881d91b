// Package prompt builds the prompts Otto sends to the model: system
// context, intent classification, planning, and final synthesis.
package prompt

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/otto-ai/otto/pkg/protocol"
)

// Builder assembles prompts from sections.
type Builder struct {
	Workspace  string
	Timezone   string
	MaxHistory int // conversation turns rendered into prompts
}

// SystemContext carries the optional overrides for the system prompt.
type SystemContext struct {
	Tooling   string
	Safety    string
	Workspace string
	Runtime   string
}

// NewBuilder creates a builder with defaults.
func NewBuilder(workspace string) *Builder {
	return &Builder{
		Workspace:  workspace,
		MaxHistory: 10,
	}
}

// BuildSystemPrompt renders the system prompt sections.
func (b *Builder) BuildSystemPrompt(ctx SystemContext) string {
	var sections []string
	sections = append(sections, "Identity:\nYou are Otto, a conversational assistant that answers directly or orchestrates tools. Be concise and factual.")
	sections = append(sections, "Tooling:\n"+nonEmpty(ctx.Tooling, "None."))
	sections = append(sections, "Safety:\nNever instruct the user to run commands or gather data the tools can handle.")
	sections = append(sections, "Workspace:\n"+nonEmpty(ctx.Workspace, b.workspaceLine()))
	sections = append(sections, "Runtime:\n"+nonEmpty(ctx.Runtime, b.runtimeLine()))
	sections = append(sections, "Current Date & Time:\n"+b.timeLine())
	return strings.Join(sections, "\n\n")
}

func (b *Builder) workspaceLine() string {
	if b.Workspace != "" {
		return b.Workspace
	}
	wd, _ := os.Getwd()
	if wd == "" {
		return "unknown"
	}
	return wd
}

func (b *Builder) runtimeLine() string {
	return fmt.Sprintf("%s/%s go=%s", runtime.GOOS, runtime.GOARCH, runtime.Version())
}

func (b *Builder) timeLine() string {
	if b.Timezone != "" {
		return fmt.Sprintf("Timezone: %s", b.Timezone)
	}
	return fmt.Sprintf("Timezone: %s", time.Now().Location())
}

// renderTurns formats recent conversation turns, oldest first.
func (b *Builder) renderTurns(turns []protocol.Turn) string {
	if len(turns) == 0 {
		return ""
	}
	limit := b.MaxHistory
	if limit <= 0 {
		limit = 10
	}
	if len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}

	var sb strings.Builder
	for _, t := range turns {
		role := "User"
		if t.Role == protocol.RoleAssistant {
			role = "Assistant"
		}
		sb.WriteString(role)
		sb.WriteString(": ")
		sb.WriteString(t.Content)
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func nonEmpty(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
