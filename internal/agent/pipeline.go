// Package agent wires the full request pipeline behind one Process
// call: classification, routing, admission control, orchestration,
// response validation, and conversation memory.
//
// A single Pipeline serves all callers concurrently. The only error
// Process ever surfaces is malformed boundary input; every downstream
// failure (model outage, open breaker, storage trouble) degrades into
// a usable Result instead.
package agent

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/otto-ai/otto/internal/classifier"
	"github.com/otto-ai/otto/internal/config"
	"github.com/otto-ai/otto/internal/cost"
	"github.com/otto-ai/otto/internal/errors"
	"github.com/otto-ai/otto/internal/governor"
	"github.com/otto-ai/otto/internal/memory"
	"github.com/otto-ai/otto/internal/model"
	"github.com/otto-ai/otto/internal/orchestrator"
	"github.com/otto-ai/otto/internal/prompt"
	"github.com/otto-ai/otto/internal/resilience"
	"github.com/otto-ai/otto/internal/router"
	"github.com/otto-ai/otto/internal/stats"
	"github.com/otto-ai/otto/internal/tools"
	"github.com/otto-ai/otto/internal/tools/local"
	"github.com/otto-ai/otto/internal/validator"
	"github.com/otto-ai/otto/pkg/logx"
	"github.com/otto-ai/otto/pkg/protocol"
)

const busyReply = "I'm handling a lot of requests right now. Give me a moment and try again."

// RemoteTool is a remote tool family an embedder exposes through the
// pipeline. Each family gets its own circuit breaker, and its verbs
// extend the orchestrator's follow-up rules.
type RemoteTool struct {
	Tool   tools.Tool
	Schema *tools.Schema
	Family string   // breaker name suffix, defaults to the tool name
	Verbs  []string // request verbs this family serves
}

// Options injects collaborators into New. The zero value builds
// everything from the config.
type Options struct {
	Model       model.Model
	Store       memory.Store
	RemoteTools []RemoteTool
}

// Pipeline is the conversational agent.
type Pipeline struct {
	cfg        *config.Config
	classifier *classifier.Classifier
	gov        *governor.Governor
	breakers   *resilience.Registry
	orch       *orchestrator.Orchestrator
	validator  *validator.Validator
	registry   *tools.Registry
	store      memory.Store
	stats      *stats.Collector
	costs      *cost.Tracker
	modelName  string
}

// New assembles a pipeline from the config, using opts to override
// individual collaborators.
func New(cfg *config.Config, opts Options) (*Pipeline, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	collector := stats.NewCollector()
	breakers := resilience.NewRegistry(resilience.Config{
		WindowSize:       cfg.Breaker.WindowSize,
		MinSamples:       cfg.Breaker.MinSamples,
		FailureThreshold: cfg.Breaker.FailureThreshold,
		RecoveryTimeout:  cfg.Breaker.RecoveryTimeout(),
		OnStateChange: func(name string, from, to resilience.State) {
			evt := logx.Info()
			if to == resilience.StateOpen {
				collector.RecordBreakerOpen()
				evt = logx.Warn()
			}
			evt.Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	})

	mdl := opts.Model
	if mdl == nil {
		m, err := model.New(cfg.Model)
		if err != nil {
			return nil, err
		}
		mdl = m
	}

	store := opts.Store
	if store == nil {
		s, err := memory.Open(cfg.Memory)
		if err != nil {
			return nil, err
		}
		store = s
	}

	registry := tools.NewRegistry()
	local.Register(registry, cfg.Tools)

	rules := orchestrator.DefaultActionRules()
	for _, rt := range opts.RemoteTools {
		family := rt.Family
		if family == "" {
			family = rt.Tool.Name()
		}
		breaker := breakers.GetOrCreate("tool." + family)
		registry.Register(tools.Guard(rt.Tool, breaker), rt.Schema)
		if len(rt.Verbs) > 0 {
			rules = append(rules, orchestrator.ActionRule{Verbs: rt.Verbs, Tool: rt.Tool.Name()})
		}
	}

	prompts := prompt.NewBuilder(cfg.Tools.WorkspaceDir)
	modelBreaker := breakers.GetOrCreate("model")

	clf := classifier.New(classifier.Config{
		CacheSize:      cfg.Classifier.CacheSize,
		CacheTTL:       cfg.Classifier.CacheTTL(),
		RemoteTimeout:  cfg.Classifier.RemoteTimeout(),
		MaxRemoteChars: cfg.Classifier.MaxRemoteChars,
		MinConfidence:  cfg.Classifier.MinConfidence,
		Model:          mdl,
		Breaker:        modelBreaker,
		Prompts:        prompts,
	})

	// The orchestrator snapshots the tool listing for its system
	// prompt, so every Register call has to happen before this point.
	orch := orchestrator.New(orchestrator.Config{
		MaxIterations: cfg.Orchestrator.MaxIterations,
		MaxWallClock:  cfg.Orchestrator.MaxWallClock(),
		ToolTimeout:   cfg.Orchestrator.ToolTimeout(),
		MaxTokens:     cfg.Model.MaxTokens,
		ActionRules:   rules,
		Model:         mdl,
		Breaker:       modelBreaker,
		Registry:      registry,
		Prompts:       prompts,
	})

	return &Pipeline{
		cfg:        cfg,
		classifier: clf,
		gov: governor.New(governor.Config{
			GlobalLimit:     cfg.Pipeline.GlobalConcurrency,
			CallerLimit:     cfg.Pipeline.CallerConcurrency,
			WarnUtilization: cfg.Pipeline.WarnUtilization,
		}),
		breakers:  breakers,
		orch:      orch,
		validator: validator.New(validator.Config{
			MinResponseChars:     cfg.Validator.MinResponseChars,
			NontrivialQueryChars: cfg.Validator.NontrivialQueryChars,
		}),
		registry:  registry,
		store:     store,
		stats:     collector,
		costs:     cost.NewTracker(),
		modelName: mdl.Name(),
	}, nil
}

// Process runs one request through the pipeline.
func (p *Pipeline) Process(ctx context.Context, req *protocol.Request) (*protocol.Result, error) {
	start := time.Now()

	if req == nil {
		p.stats.RecordError()
		return nil, errors.User(errors.CodeInvalidRequest, "request is nil")
	}
	if strings.TrimSpace(req.CallerID) == "" {
		p.stats.RecordError()
		return nil, errors.NewBuilder(errors.CodeMissingCaller, "caller_id is required").
			User().
			WithSuggestion("set caller_id to a stable per-user identifier").
			Build()
	}

	// Work on a copy so the caller's request stays untouched.
	r := *req
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if len(r.Context) == 0 && p.store != nil {
		turns, err := p.store.GetContext(ctx, r.CallerID, p.cfg.Memory.ContextTurns)
		if err != nil {
			logx.Warn().Err(err).Str("request_id", r.ID).Msg("conversation context unavailable, continuing without it")
		} else {
			r.Context = turns
		}
	}

	intent := p.classifier.Classify(ctx, r.Text)
	p.stats.RecordClassification(string(intent.Source))

	route := router.Route(intent)
	p.stats.RecordRoute(route.Local())
	logx.Debug().
		Str("request_id", r.ID).
		Str("intent", intent.String()).
		Str("mode", string(route.Mode)).
		Str("reason", route.Reason).
		Msg("request routed")

	var (
		result *protocol.Result
		tokens int
	)
	if route.Local() {
		result = p.runLocal(ctx, &r, route)
	} else {
		result, tokens = p.runRemote(ctx, &r, route)
	}

	p.remember(ctx, &r, result)

	if result.Degraded {
		p.stats.RecordDegraded()
	}
	p.stats.RecordToolCalls(result.ToolCallsMade)
	p.stats.RecordRequest(tokens, time.Since(start))
	logx.Info().
		Str("request_id", r.ID).
		Str("caller_id", r.CallerID).
		Str("intent", result.Intent).
		Int("tool_calls", result.ToolCallsMade).
		Bool("degraded", result.Degraded).
		Dur("duration", time.Since(start)).
		Msg("request completed")
	return result, nil
}

// runLocal serves a request entirely in-process: a canned reply for
// small talk, or a single local tool call. Local requests never touch
// the governor or the breakers.
func (p *Pipeline) runLocal(ctx context.Context, req *protocol.Request, route *router.RoutePlan) *protocol.Result {
	intent := route.Intent

	var text string
	toolCalls := 0
	if route.Tool() == "" {
		text = cannedReply(intent, req.Text)
	} else {
		res, err := p.registry.Invoke(ctx, route.Tool(), toolArgs(intent))
		switch {
		case err != nil:
			logx.Warn().Err(err).Str("request_id", req.ID).Str("tool", route.Tool()).Msg("local tool failed")
			text = "I couldn't complete that: " + err.Error() + ". Try rephrasing the request."
		case !res.Success:
			toolCalls = 1
			text = "I couldn't complete that: " + res.Error + ". Try rephrasing the request."
		default:
			toolCalls = 1
			text = res.Text()
		}
	}

	validated, reasons := p.validator.Validate(text, nil, req.Text)
	if len(reasons) > 0 {
		p.stats.RecordRewrites(len(reasons))
	}
	return &protocol.Result{
		Text:          validated,
		Intent:        intent.String(),
		ToolCallsMade: toolCalls,
	}
}

// runRemote serves a request through the governor and the
// orchestrator. Admission rejections come back degraded but usable,
// with a retry hint instead of an error.
func (p *Pipeline) runRemote(ctx context.Context, req *protocol.Request, route *router.RoutePlan) (*protocol.Result, int) {
	permit, err := p.gov.Admit(req.CallerID)
	if err != nil {
		p.stats.RecordRejected()
		logx.Warn().Err(err).Str("request_id", req.ID).Str("caller_id", req.CallerID).Msg("admission rejected")
		return &protocol.Result{
			Text:     busyReply,
			Intent:   route.Intent.String(),
			Degraded: true,
		}, 0
	}
	defer permit.Release()

	draft := p.orch.Run(ctx, req, orchestrator.Budget{})
	if draft.Plan.Len() > 0 {
		logx.Debug().
			Str("request_id", req.ID).
			Interface("tool_calls", draft.Plan.Records()).
			Msg("remote plan executed")
	}

	validated, reasons := p.validator.Validate(draft.Text, draft.Plan, req.Text)
	if len(reasons) > 0 {
		p.stats.RecordRewrites(len(reasons))
		logx.Debug().Str("request_id", req.ID).Strs("reasons", reasons).Msg("validator rewrote response")
	}
	if draft.TokensUsed > 0 {
		p.costs.Record(p.modelName, draft.TokensUsed)
	}
	return &protocol.Result{
		Text:          validated,
		Intent:        route.Intent.String(),
		ToolCallsMade: draft.ToolCalls(),
		Degraded:      draft.Degraded,
	}, draft.TokensUsed
}

// remember appends the exchange to the conversation store. Storage
// failures are logged and swallowed: losing one turn of history is
// better than failing a request that already has an answer.
func (p *Pipeline) remember(ctx context.Context, req *protocol.Request, result *protocol.Result) {
	if p.store == nil || strings.TrimSpace(req.Text) == "" {
		return
	}
	now := time.Now()
	user := protocol.Turn{Role: protocol.RoleUser, Content: req.Text, CreatedAt: now}
	if err := p.store.Append(ctx, req.CallerID, user); err != nil {
		logx.Warn().Err(err).Str("request_id", req.ID).Msg("failed to store user turn")
		return
	}
	reply := protocol.Turn{Role: protocol.RoleAssistant, Content: result.Text, CreatedAt: now}
	if err := p.store.Append(ctx, req.CallerID, reply); err != nil {
		logx.Warn().Err(err).Str("request_id", req.ID).Msg("failed to store assistant turn")
	}
}

// Breakers exposes the circuit breaker registry for operator surfaces.
func (p *Pipeline) Breakers() *resilience.Registry {
	return p.breakers
}

// Stats returns a point-in-time view across every instrumented
// component.
func (p *Pipeline) Stats() *Stats {
	return &Stats{
		Pipeline:   p.stats.Collect(),
		Classifier: p.classifier.Metrics(),
		Governor:   p.gov.Metrics(),
		Breakers:   p.breakers.AllMetrics(),
		Cost:       p.costs.Usage(),
	}
}

// Stats is the composite observability snapshot.
type Stats struct {
	Pipeline   *stats.Snapshot      `json:"pipeline"`
	Classifier classifier.Metrics   `json:"classifier"`
	Governor   governor.Metrics     `json:"governor"`
	Breakers   []resilience.Metrics `json:"breakers"`
	Cost       *cost.Usage          `json:"cost"`
}

// Shutdown releases pipeline resources. In-flight requests are not
// awaited; stop submitting before calling it.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	p.classifier.PurgeCache()
	if p.store == nil {
		return nil
	}
	if err := p.store.Close(); err != nil {
		return errors.Wrap(err, errors.CodeStoreUnavailable, "closing conversation store", errors.CategorySystem)
	}
	return nil
}

func toolArgs(intent *classifier.Intent) map[string]any {
	args := make(map[string]any, len(intent.Variables))
	for k, v := range intent.Variables {
		args[k] = v
	}
	return args
}
