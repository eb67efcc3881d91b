// Package orchestrator runs the remote execution path: an iterative
// plan/execute loop over the tool registry, bounded by iteration and
// wall-clock budgets, with every model call behind the shared breaker.
//
// The loop never fails outright. Tool errors become failed plan steps
// the next planning call can react to; a breaker-open or exhausted
// budget degrades to a draft built from whatever the plan collected.
package orchestrator

import (
	"context"
	"errors"
	"strings"
	"time"

	apperrors "github.com/otto-ai/otto/internal/errors"
	"github.com/otto-ai/otto/internal/model"
	"github.com/otto-ai/otto/internal/plan"
	"github.com/otto-ai/otto/internal/prompt"
	"github.com/otto-ai/otto/internal/resilience"
	"github.com/otto-ai/otto/internal/tools"
	"github.com/otto-ai/otto/pkg/logx"
	"github.com/otto-ai/otto/pkg/protocol"
)

const (
	defaultMaxIterations = 5
	defaultMaxWallClock  = 30 * time.Second
	defaultToolTimeout   = 10 * time.Second
	defaultMaxTokens     = 1024
)

// Model plans tool calls and synthesizes final answers.
type Model interface {
	Complete(ctx context.Context, req *model.Request) (*model.Response, error)
}

// Config tunes the orchestration loop. Zero values take defaults.
type Config struct {
	MaxIterations int           // planning calls per request
	MaxWallClock  time.Duration // total budget per request
	ToolTimeout   time.Duration // budget per tool execution
	MaxTokens     int
	ActionRules   []ActionRule // nil takes the default table

	Model    Model
	Breaker  *resilience.CircuitBreaker
	Registry *tools.Registry
	Prompts  *prompt.Builder
}

// Budget overrides the loop bounds for one run. Zero fields fall back
// to the configured defaults.
type Budget struct {
	Iterations int
	WallClock  time.Duration
}

// Draft is the orchestrator's output: the response text before
// validation, plus the plan that produced it.
type Draft struct {
	Text       string
	Degraded   bool // breaker open or budget exhausted on the way here
	TokensUsed int
	Plan       *plan.Plan
}

// ToolCalls reports how many tool executions the draft ran.
func (d *Draft) ToolCalls() int {
	return d.Plan.Len()
}

// Orchestrator drives the plan/execute loop. Safe for concurrent use;
// per-request state lives in the plan.
type Orchestrator struct {
	config       Config
	rules        []ActionRule
	systemPrompt string
}

// New creates an orchestrator over the given registry and model.
func New(cfg Config) *Orchestrator {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = defaultMaxIterations
	}
	if cfg.MaxWallClock <= 0 {
		cfg.MaxWallClock = defaultMaxWallClock
	}
	if cfg.ToolTimeout <= 0 {
		cfg.ToolTimeout = defaultToolTimeout
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Prompts == nil {
		cfg.Prompts = prompt.NewBuilder("")
	}
	if cfg.Registry == nil {
		cfg.Registry = tools.NewRegistry()
	}
	rules := cfg.ActionRules
	if rules == nil {
		rules = DefaultActionRules()
	}
	return &Orchestrator{
		config: cfg,
		rules:  rules,
		systemPrompt: cfg.Prompts.BuildSystemPrompt(prompt.SystemContext{
			Tooling: strings.Join(cfg.Registry.List(), ", "),
		}),
	}
}

// Run executes the remote path for one request and always returns a
// draft, degraded at worst.
func (o *Orchestrator) Run(ctx context.Context, req *protocol.Request, budget Budget) *Draft {
	iterations := budget.Iterations
	if iterations <= 0 {
		iterations = o.config.MaxIterations
	}
	wallClock := budget.WallClock
	if wallClock <= 0 {
		wallClock = o.config.MaxWallClock
	}
	ctx, cancel := context.WithTimeout(ctx, wallClock)
	defer cancel()

	draft := &Draft{Plan: plan.New()}
	followUp := ""
	exhausted := true

	for iter := 0; iter < iterations; iter++ {
		if ctx.Err() != nil {
			err := apperrors.Wrap(ctx.Err(), apperrors.CodeBudgetExhausted, "wall-clock budget exhausted", apperrors.CategoryTemporary)
			return o.degraded(draft, err.Error())
		}

		decision, err := o.nextStep(ctx, req, draft, followUp)
		if err != nil {
			return o.degraded(draft, "planning unavailable: "+err.Error())
		}

		if decision.Final() {
			if strings.TrimSpace(decision.Answer) != "" {
				draft.Text = decision.Answer
				return draft
			}
			exhausted = false
			break // empty final, synthesize from the plan instead
		}

		if draft.Plan.WouldRepeat(decision.Tool, decision.Arguments) {
			logx.Info().
				Str("request_id", req.ID).
				Str("tool", decision.Tool).
				Msg("planning cycle detected, synthesizing")
			exhausted = false
			break
		}

		step := draft.Plan.Append(decision.Tool, decision.Arguments)
		o.execute(ctx, req.ID, step)
		followUp = o.nextAction(req.Text, draft.Plan)
	}

	if exhausted {
		draft.Degraded = true
	}
	return o.synthesize(ctx, req, draft)
}

// nextStep asks the model for one planning decision through the breaker.
func (o *Orchestrator) nextStep(ctx context.Context, req *protocol.Request, draft *Draft, followUp string) (*Decision, error) {
	mreq := &model.Request{
		System:    o.systemPrompt,
		Prompt:    o.config.Prompts.Planning(req.Text, req.Context, draft.Plan.Transcript(), o.toolDocs(), followUp),
		MaxTokens: o.config.MaxTokens,
		Tools:     o.modelTools(),
	}

	resp, err := o.complete(ctx, mreq)
	if err != nil {
		return nil, err
	}
	draft.TokensUsed += resp.TokensUsed
	return parseDecision(resp), nil
}

// complete runs one model call through the breaker. Breaker rejections
// come back tagged as a dependency outage so the degrade log carries
// the code.
func (o *Orchestrator) complete(ctx context.Context, mreq *model.Request) (*model.Response, error) {
	var resp *model.Response
	err := o.config.Breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		resp, err = o.config.Model.Complete(ctx, mreq)
		return err
	})
	if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyRequests) {
		return nil, apperrors.Wrap(err, apperrors.CodeDependencyUnavailable, "model dependency unavailable", apperrors.CategoryTemporary)
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// execute runs one tool call and records the outcome on the step.
// Failures are recorded, not raised: the next planning call sees them.
func (o *Orchestrator) execute(ctx context.Context, requestID string, step *plan.Step) {
	ctx, cancel := context.WithTimeout(ctx, o.config.ToolTimeout)
	defer cancel()

	step.Start()
	result, err := o.config.Registry.Invoke(ctx, step.Tool, step.Arguments)
	switch {
	case err != nil:
		step.Fail(err)
	case !result.Success:
		step.Fail(errors.New(result.Error))
	default:
		step.Succeed(result.Text())
	}

	if step.Error != "" {
		logx.Warn().
			Str("request_id", requestID).
			Str("tool", step.Tool).
			Str("error", step.Error).
			Msg("tool call failed, feeding back to planner")
	}
}

// synthesize composes the final answer from the accumulated plan. The
// prompt forbids further tool calls; a failed or empty synthesis
// degrades to plan-derived text.
func (o *Orchestrator) synthesize(ctx context.Context, req *protocol.Request, draft *Draft) *Draft {
	mreq := &model.Request{
		System:    o.systemPrompt,
		Prompt:    o.config.Prompts.Synthesis(req.Text, req.Context, draft.Plan.Transcript()),
		MaxTokens: o.config.MaxTokens,
	}

	resp, err := o.complete(ctx, mreq)
	if err != nil {
		return o.degraded(draft, "synthesis unavailable: "+err.Error())
	}

	draft.TokensUsed += resp.TokensUsed
	if strings.TrimSpace(resp.Text) == "" {
		return o.degraded(draft, "synthesis returned no text")
	}
	draft.Text = resp.Text
	return draft
}

// degraded fills the draft from the plan's best output.
func (o *Orchestrator) degraded(draft *Draft, reason string) *Draft {
	draft.Degraded = true
	if last := draft.Plan.LastSuccess(); last != nil {
		draft.Text = "Here's what I found so far: " + last.Output
	} else {
		draft.Text = "I couldn't reach the services needed for this request. Please try again in a moment."
	}
	logx.Warn().Str("reason", reason).Msg("returning degraded draft")
	return draft
}

func (o *Orchestrator) toolDocs() []prompt.ToolDoc {
	names := o.config.Registry.List()
	docs := make([]prompt.ToolDoc, 0, len(names))
	for _, name := range names {
		if schema, ok := o.config.Registry.Schema(name); ok {
			docs = append(docs, prompt.ToolDoc{Name: schema.Name, Description: schema.Description})
		}
	}
	return docs
}

func (o *Orchestrator) modelTools() []model.Tool {
	names := o.config.Registry.List()
	defs := make([]model.Tool, 0, len(names))
	for _, name := range names {
		if schema, ok := o.config.Registry.Schema(name); ok {
			defs = append(defs, model.Tool{
				Name:        schema.Name,
				Description: schema.Description,
				Parameters:  schema.Parameters,
			})
		}
	}
	return defs
}
