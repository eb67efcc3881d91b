package orchestrator

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/otto-ai/otto/internal/plan"
)

// ActionRule binds request verbs to the tool that serves them. The
// table is ordered: when a request carries several outstanding verbs,
// the earliest rule supplies the follow-up instruction.
type ActionRule struct {
	Verbs []string
	Tool  string
}

// DefaultActionRules covers the built-in local tools. Embedders
// append rules for the remote tool families they register.
func DefaultActionRules() []ActionRule {
	return []ActionRule{
		{Verbs: []string{"load", "read", "open"}, Tool: "file_read"},
		{Verbs: []string{"find", "search", "list", "locate"}, Tool: "file_search"},
		{Verbs: []string{"analyze", "analyse", "summarize", "describe"}, Tool: "analyze_csv"},
		{Verbs: []string{"run", "execute"}, Tool: "shell"},
	}
}

// nextAction builds the explicit instruction for the next planning
// call when the request implies work the plan has not covered yet: a
// second action verb served by an untouched tool, or a comparison
// target no tool call has mentioned. An open-ended "need more tools?"
// re-prompt is exactly the failure mode this replaces, so the
// instruction always names one specific tool.
func (o *Orchestrator) nextAction(text string, p *plan.Plan) string {
	if p.Len() == 0 {
		return ""
	}

	executed := make(map[string]bool, p.Len())
	for _, step := range p.Steps() {
		executed[step.Tool] = true
	}

	words := wordSet(strings.ToLower(text))
	for _, rule := range o.rules {
		if executed[rule.Tool] {
			continue
		}
		if _, ok := o.config.Registry.Get(rule.Tool); !ok {
			continue
		}
		for _, verb := range rule.Verbs {
			if words[verb] {
				return fmt.Sprintf("The request also asks to %s. Invoke the %s tool next.", verb, rule.Tool)
			}
		}
	}

	if last := p.Last(); last != nil {
		for _, target := range comparisonTargets(text) {
			if !argsMention(p, target) {
				return fmt.Sprintf("The request also covers %s. Invoke the %s tool for %s next.", target, last.Tool, target)
			}
		}
	}

	return ""
}

func wordSet(msg string) map[string]bool {
	fields := strings.FieldsFunc(msg, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	words := make(map[string]bool, len(fields))
	for _, f := range fields {
		words[f] = true
	}
	return words
}

var (
	comparisonRegex   = regexp.MustCompile(`(?i)\b(?:compare|versus|difference between)\b|\bvs\.?\b`)
	comparisonPair    = regexp.MustCompile(`(?i)\b(?:compare|difference between)\s+([\w.&-]+)\s+(?:and|to|with|vs\.?|versus)\s+([\w.&-]+)`)
	capitalTokenRegex = regexp.MustCompile(`\b[A-Z][A-Za-z0-9&.-]*\b`)
)

var comparisonStopwords = map[string]bool{
	"compare": true, "versus": true, "vs": true, "and": true, "the": true,
	"between": true, "difference": true, "with": true, "what": true,
	"how": true, "which": true, "who": true, "their": true, "of": true,
	"to": true, "please": true, "show": true, "me": true, "i": true,
}

// comparisonTargets extracts the entities a comparison request names:
// the "X and Y" pair around the comparison verb plus any capitalized
// tokens that are not sentence furniture.
func comparisonTargets(text string) []string {
	if !comparisonRegex.MatchString(text) {
		return nil
	}

	var targets []string
	seen := make(map[string]bool)
	add := func(t string) {
		t = strings.Trim(t, ".,!?")
		key := strings.ToLower(t)
		if t == "" || seen[key] || comparisonStopwords[key] {
			return
		}
		seen[key] = true
		targets = append(targets, t)
	}

	if m := comparisonPair.FindStringSubmatch(text); len(m) > 2 {
		add(m[1])
		add(m[2])
	}
	for _, token := range capitalTokenRegex.FindAllString(text, -1) {
		add(token)
	}
	return targets
}

// argsMention reports whether any executed step's arguments name the
// target.
func argsMention(p *plan.Plan, target string) bool {
	needle := strings.ToLower(target)
	for _, step := range p.Steps() {
		encoded, err := json.Marshal(step.Arguments)
		if err != nil {
			continue
		}
		if strings.Contains(strings.ToLower(string(encoded)), needle) {
			return true
		}
	}
	return false
}
