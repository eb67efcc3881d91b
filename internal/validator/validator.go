// Package validator is the last gate before a response reaches the
// caller. Three ordered layers, each idempotent and each allowed to
// rewrite the text:
//
//  1. Early: a blank draft is recovered from the plan's most recent
//     successful tool output.
//  2. Mid: leaked planning payloads, instructions telling the caller
//     to run commands, and suspiciously thin answers to substantial
//     queries are replaced, preferring real tool output over a
//     generic acknowledgement.
//  3. Final: emptiness and leaks are rechecked once more and a safe
//     generic message forced if anything slipped through.
//
// Validate never fails, so the boundary invariant holds everywhere:
// the returned text is non-empty, is not a planning payload, and does
// not ask the caller to do work the system can do itself.
package validator

import (
	"regexp"
	"strings"

	"github.com/otto-ai/otto/internal/plan"
)

const (
	defaultMinResponseChars     = 20
	defaultNontrivialQueryChars = 40

	genericAck   = "I worked through your request but couldn't compose a full answer. Please try again or rephrase."
	safeFallback = "I ran into an issue generating a response. Could you rephrase your request?"
)

// Reason tokens reported alongside a rewritten response.
const (
	ReasonEmptyDraft        = "empty_draft"
	ReasonEmptyResponse     = "empty_response"
	ReasonPlanningLeak      = "planning_leak"
	ReasonCallerInstruction = "caller_instruction"
	ReasonShortResponse     = "short_response"
	ReasonForcedFallback    = "forced_fallback"
)

// Config tunes the thresholds for the short-response check.
type Config struct {
	MinResponseChars     int // answers shorter than this are suspect
	NontrivialQueryChars int // queries at least this long expect substance
}

// Validator applies the layered response checks.
type Validator struct {
	config Config
}

// New creates a validator, filling zero thresholds with defaults.
func New(config Config) *Validator {
	if config.MinResponseChars <= 0 {
		config.MinResponseChars = defaultMinResponseChars
	}
	if config.NontrivialQueryChars <= 0 {
		config.NontrivialQueryChars = defaultNontrivialQueryChars
	}
	return &Validator{config: config}
}

// Validate runs the three layers over a draft response. It returns
// the text to surface and the reasons for any rewrite; an empty
// reason slice means the draft passed untouched.
func (v *Validator) Validate(text string, p *plan.Plan, query string) (string, []string) {
	var reasons []string
	out := strings.TrimSpace(text)

	if out == "" {
		reasons = append(reasons, ReasonEmptyDraft)
		out = recoverFromPlan(p)
	}

	if reason := v.scan(out, query); reason != "" {
		reasons = append(reasons, reason)
		if recovered := recoverFromPlan(p); recovered != "" {
			out = recovered
		} else {
			out = genericAck
		}
	}

	out = strings.TrimSpace(out)
	if out == "" || leaksPlanning(out) {
		reasons = append(reasons, ReasonForcedFallback)
		out = safeFallback
	}

	return out, reasons
}

// scan returns the first mid-layer violation found in text, or "".
func (v *Validator) scan(text, query string) string {
	switch {
	case text == "":
		return ReasonEmptyResponse
	case leaksPlanning(text):
		return ReasonPlanningLeak
	case instructsCaller(text):
		return ReasonCallerInstruction
	case v.tooShort(text, query):
		return ReasonShortResponse
	}
	return ""
}

func (v *Validator) tooShort(text, query string) bool {
	return len([]rune(query)) >= v.config.NontrivialQueryChars &&
		len([]rune(text)) < v.config.MinResponseChars
}

// planningLeakRegex matches a JSON-ish block carrying the planning
// protocol's keys. [^{}] spans newlines, so multi-line payloads and
// payloads embedded mid-sentence both match.
var planningLeakRegex = regexp.MustCompile(`\{[^{}]*"(?:action|tool|tool_name|arguments|command)"\s*:`)

func leaksPlanning(text string) bool {
	return planningLeakRegex.MatchString(text)
}

// callerInstructionRegexes match text that delegates the system's own
// work to the caller. Mentioning a command in passing is fine; telling
// the caller to run one and report back is not.
var callerInstructionRegexes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:run|execute|type|enter)\s+(?:this|that|the\s+following|these)\s+commands?\b`),
	regexp.MustCompile(`(?i)\byou\s+(?:can|should|need\s+to|will\s+have\s+to)\s+(?:run|execute|type)\s+(?:this|that|the\b|it\b|` + "`)"),
	regexp.MustCompile(`(?i)\b(?:paste|share|send|provide)\s+(?:me\s+)?(?:the\s+)?(?:output|results?)\s+(?:back|here|below|to\s+me)\b`),
	regexp.MustCompile(`(?i)\bcopy\s+and\s+paste\b`),
	regexp.MustCompile(`(?i)\brun\s+(?:it|them)\s+(?:yourself|locally|on\s+your\s+(?:machine|end))\b`),
}

func instructsCaller(text string) bool {
	for _, re := range callerInstructionRegexes {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// recoverFromPlan builds a response from the most recent successful
// tool output, or returns "" when the plan has nothing usable.
func recoverFromPlan(p *plan.Plan) string {
	if p == nil {
		return ""
	}
	step := p.LastSuccess()
	if step == nil || strings.TrimSpace(step.Output) == "" {
		return ""
	}
	return "Here's what I found: " + step.Output
}
