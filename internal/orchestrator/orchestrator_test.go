package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otto-ai/otto/internal/model"
	"github.com/otto-ai/otto/internal/resilience"
	"github.com/otto-ai/otto/internal/tools"
	"github.com/otto-ai/otto/pkg/protocol"
)

type scriptedModel struct {
	mu      sync.Mutex
	script  []func(req *model.Request) (*model.Response, error)
	prompts []string
	calls   int
}

func (m *scriptedModel) Complete(_ context.Context, req *model.Request) (*model.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, req.Prompt)
	if m.calls >= len(m.script) {
		return nil, errors.New("script exhausted")
	}
	step := m.script[m.calls]
	m.calls++
	return step(req)
}

func (m *scriptedModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *scriptedModel) prompt(i int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i >= len(m.prompts) {
		return ""
	}
	return m.prompts[i]
}

func reply(text string) func(*model.Request) (*model.Response, error) {
	return func(*model.Request) (*model.Response, error) {
		return &model.Response{Text: text, TokensUsed: 10}, nil
	}
}

func failWith(err error) func(*model.Request) (*model.Response, error) {
	return func(*model.Request) (*model.Response, error) {
		return nil, err
	}
}

func toolCallJSON(tool, args string) string {
	return fmt.Sprintf(`{"action":"tool_call","tool":%q,"arguments":%s}`, tool, args)
}

type fakeTool struct {
	name string
	fn   func(ctx context.Context, input map[string]any) (*tools.Result, error)
}

func (f *fakeTool) Name() string        { return f.name }
func (f *fakeTool) Description() string { return "test tool" }

func (f *fakeTool) Execute(ctx context.Context, input map[string]any) (*tools.Result, error) {
	return f.fn(ctx, input)
}

func financeRegistry() *tools.Registry {
	reg := tools.NewRegistry()
	reg.Register(
		&fakeTool{name: "finance_lookup", fn: func(_ context.Context, input map[string]any) (*tools.Result, error) {
			company, _ := input["company"].(string)
			return tools.NewSuccessResult(company + " revenue: $100B"), nil
		}},
		tools.NewSchema("finance_lookup", "look up company financials").
			AddParam("company", "string", "company name", true).
			Build(),
	)
	return reg
}

func newTestOrchestrator(m Model, reg *tools.Registry, breaker *resilience.CircuitBreaker) *Orchestrator {
	if breaker == nil {
		breaker = resilience.New("model", resilience.DefaultConfig())
	}
	return New(Config{Model: m, Breaker: breaker, Registry: reg})
}

func request(text string) *protocol.Request {
	return &protocol.Request{ID: "req-1", CallerID: "caller-1", Text: text}
}

func TestRunSingleToolThenFinal(t *testing.T) {
	sm := &scriptedModel{script: []func(*model.Request) (*model.Response, error){
		reply(toolCallJSON("finance_lookup", `{"company":"Apple"}`)),
		reply(`{"action":"final","answer":"Apple made $100B last year."}`),
	}}
	o := newTestOrchestrator(sm, financeRegistry(), nil)

	draft := o.Run(context.Background(), request("what was Apple's revenue"), Budget{})

	require.NotNil(t, draft)
	assert.Equal(t, "Apple made $100B last year.", draft.Text)
	assert.False(t, draft.Degraded)
	assert.Equal(t, 1, draft.ToolCalls())
	assert.Equal(t, 2, sm.callCount())

	steps := draft.Plan.Steps()
	require.Len(t, steps, 1)
	assert.Contains(t, steps[0].Output, "Apple revenue")
}

func TestCompareRequestMakesTwoToolCalls(t *testing.T) {
	sm := &scriptedModel{script: []func(*model.Request) (*model.Response, error){
		reply(toolCallJSON("finance_lookup", `{"company":"Apple"}`)),
		reply(toolCallJSON("finance_lookup", `{"company":"Microsoft"}`)),
		reply(`{"action":"final","answer":"Apple: $100B. Microsoft: $100B."}`),
	}}
	o := newTestOrchestrator(sm, financeRegistry(), nil)

	draft := o.Run(context.Background(), request("compare Apple and Microsoft revenue"), Budget{})

	assert.False(t, draft.Degraded)
	require.Equal(t, 2, draft.ToolCalls())

	steps := draft.Plan.Steps()
	assert.NotEqual(t, steps[0].Fingerprint(), steps[1].Fingerprint())

	// After the Apple call the planner is told exactly what to do
	// next, not asked an open-ended question.
	second := sm.prompt(1)
	assert.Contains(t, second, "Next Step:")
	assert.Contains(t, second, "Microsoft")
	assert.Contains(t, second, "finance_lookup")

	// Both targets covered: nothing left to suggest.
	assert.NotContains(t, sm.prompt(2), "Next Step:")
}

func TestCycleDetectionStopsLoop(t *testing.T) {
	sm := &scriptedModel{script: []func(*model.Request) (*model.Response, error){
		reply(toolCallJSON("finance_lookup", `{"company":"Apple"}`)),
		reply(toolCallJSON("finance_lookup", `{"company":"Apple"}`)),
		reply("Apple's revenue is $100B."),
	}}
	o := newTestOrchestrator(sm, financeRegistry(), nil)

	draft := o.Run(context.Background(), request("what was Apple's revenue"), Budget{})

	assert.Equal(t, 1, draft.ToolCalls(), "repeated call must not execute twice")
	assert.Equal(t, "Apple's revenue is $100B.", draft.Text)
	assert.False(t, draft.Degraded)
	assert.Equal(t, 3, sm.callCount())
}

func TestIterationBudgetExhaustedDegrades(t *testing.T) {
	sm := &scriptedModel{script: []func(*model.Request) (*model.Response, error){
		reply(toolCallJSON("finance_lookup", `{"company":"Apple"}`)),
		reply(toolCallJSON("finance_lookup", `{"company":"Microsoft"}`)),
		reply("Best-effort summary of what I could gather."),
	}}
	o := newTestOrchestrator(sm, financeRegistry(), nil)

	draft := o.Run(context.Background(), request("compare Apple and Microsoft revenue"), Budget{Iterations: 2})

	assert.True(t, draft.Degraded)
	assert.Equal(t, 2, draft.ToolCalls())
	assert.Equal(t, "Best-effort summary of what I could gather.", draft.Text)
}

func TestOpenBreakerReturnsDegradedDraft(t *testing.T) {
	sm := &scriptedModel{script: []func(*model.Request) (*model.Response, error){
		reply("should never be reached"),
	}}
	breaker := resilience.New("model", resilience.DefaultConfig())
	breaker.ForceOpen()
	o := newTestOrchestrator(sm, financeRegistry(), breaker)

	start := time.Now()
	draft := o.Run(context.Background(), request("compare Apple and Microsoft revenue"), Budget{})
	elapsed := time.Since(start)

	assert.True(t, draft.Degraded)
	assert.NotEmpty(t, draft.Text)
	assert.Zero(t, draft.ToolCalls())
	assert.Zero(t, sm.callCount())
	assert.Less(t, elapsed, 100*time.Millisecond)
}

func TestBreakerOpenMidRunKeepsToolOutput(t *testing.T) {
	breaker := resilience.New("model", resilience.DefaultConfig())
	reg := tools.NewRegistry()
	reg.Register(
		&fakeTool{name: "finance_lookup", fn: func(context.Context, map[string]any) (*tools.Result, error) {
			breaker.ForceOpen() // backend dies right after the first tool call
			return tools.NewSuccessResult("Apple revenue: $100B"), nil
		}},
		tools.NewSchema("finance_lookup", "look up company financials").
			AddParam("company", "string", "company name", true).
			Build(),
	)
	sm := &scriptedModel{script: []func(*model.Request) (*model.Response, error){
		reply(toolCallJSON("finance_lookup", `{"company":"Apple"}`)),
	}}
	o := newTestOrchestrator(sm, reg, breaker)

	draft := o.Run(context.Background(), request("what was Apple's revenue"), Budget{})

	assert.True(t, draft.Degraded)
	assert.Contains(t, draft.Text, "Apple revenue: $100B")
	assert.Equal(t, 1, draft.ToolCalls())
}

func TestToolFailureFeedsBackToPlanner(t *testing.T) {
	reg := tools.NewRegistry()
	reg.Register(
		&fakeTool{name: "finance_lookup", fn: func(_ context.Context, input map[string]any) (*tools.Result, error) {
			if company, _ := input["company"].(string); company == "Aple" {
				return tools.NewErrorResult(errors.New("unknown company Aple")), nil
			}
			return tools.NewSuccessResult("Apple revenue: $100B"), nil
		}},
		tools.NewSchema("finance_lookup", "look up company financials").
			AddParam("company", "string", "company name", true).
			Build(),
	)
	sm := &scriptedModel{script: []func(*model.Request) (*model.Response, error){
		reply(toolCallJSON("finance_lookup", `{"company":"Aple"}`)),
		reply(toolCallJSON("finance_lookup", `{"company":"Apple"}`)),
		reply(`{"action":"final","answer":"Apple made $100B."}`),
	}}
	o := newTestOrchestrator(sm, reg, nil)

	draft := o.Run(context.Background(), request("what was Apple's revenue"), Budget{})

	assert.Equal(t, "Apple made $100B.", draft.Text)
	assert.False(t, draft.Degraded)
	assert.Equal(t, 1, draft.Plan.Failures())

	// The retry prompt carries the failure so the planner can adjust.
	assert.Contains(t, sm.prompt(1), "unknown company Aple")

	steps := draft.Plan.Steps()
	require.Len(t, steps, 2)
	assert.NotEmpty(t, steps[0].Error)
	assert.Contains(t, steps[1].Output, "Apple revenue")
}

func TestProseAnswerTreatedAsFinal(t *testing.T) {
	sm := &scriptedModel{script: []func(*model.Request) (*model.Response, error){
		reply("Paris is the capital of France."),
	}}
	o := newTestOrchestrator(sm, financeRegistry(), nil)

	draft := o.Run(context.Background(), request("what is the capital of France"), Budget{})

	assert.Equal(t, "Paris is the capital of France.", draft.Text)
	assert.False(t, draft.Degraded)
	assert.Zero(t, draft.ToolCalls())
	assert.Equal(t, 1, sm.callCount())
}

func TestNativeToolCallsHonored(t *testing.T) {
	sm := &scriptedModel{script: []func(*model.Request) (*model.Response, error){
		func(*model.Request) (*model.Response, error) {
			return &model.Response{ToolCalls: []model.ToolCall{
				{ID: "call-1", Name: "finance_lookup", Input: map[string]any{"company": "Apple"}},
			}}, nil
		},
		reply(`{"action":"final","answer":"Done."}`),
	}}
	o := newTestOrchestrator(sm, financeRegistry(), nil)

	draft := o.Run(context.Background(), request("what was Apple's revenue"), Budget{})

	assert.Equal(t, 1, draft.ToolCalls())
	assert.Equal(t, "Done.", draft.Text)
}

func TestEmptyFinalAnswerSynthesizes(t *testing.T) {
	sm := &scriptedModel{script: []func(*model.Request) (*model.Response, error){
		reply(toolCallJSON("finance_lookup", `{"company":"Apple"}`)),
		reply(`{"action":"final","answer":""}`),
		reply("Apple brought in $100B."),
	}}
	o := newTestOrchestrator(sm, financeRegistry(), nil)

	draft := o.Run(context.Background(), request("what was Apple's revenue"), Budget{})

	assert.Equal(t, "Apple brought in $100B.", draft.Text)
	assert.False(t, draft.Degraded)
	assert.Equal(t, 3, sm.callCount())
}

func TestSynthesisFailureFallsBackToPlan(t *testing.T) {
	sm := &scriptedModel{script: []func(*model.Request) (*model.Response, error){
		reply(toolCallJSON("finance_lookup", `{"company":"Apple"}`)),
		failWith(errors.New("model down")),
	}}
	o := newTestOrchestrator(sm, financeRegistry(), nil)

	draft := o.Run(context.Background(), request("what was Apple's revenue"), Budget{Iterations: 1})

	assert.True(t, draft.Degraded)
	assert.Contains(t, draft.Text, "Apple revenue: $100B")
}

func TestPlanningPromptCarriesHistory(t *testing.T) {
	sm := &scriptedModel{script: []func(*model.Request) (*model.Response, error){
		reply(toolCallJSON("finance_lookup", `{"company":"Apple"}`)),
		reply(`{"action":"final","answer":"Apple made $100B."}`),
	}}
	o := newTestOrchestrator(sm, financeRegistry(), nil)

	req := request("what was Apple's revenue")
	req.Context = []protocol.Turn{
		{Role: protocol.RoleUser, Content: "hi"},
		{Role: protocol.RoleAssistant, Content: "Hello! How can I help?"},
	}
	o.Run(context.Background(), req, Budget{})

	first := sm.prompt(0)
	assert.Contains(t, first, "No tools have been executed yet.")
	assert.Contains(t, first, "User: hi")
	assert.Contains(t, first, "finance_lookup")

	second := sm.prompt(1)
	assert.Contains(t, second, "Step 1: finance_lookup")
	assert.Contains(t, second, "Apple revenue: $100B")
}

func TestUnknownToolRecordedAsFailedStep(t *testing.T) {
	sm := &scriptedModel{script: []func(*model.Request) (*model.Response, error){
		reply(toolCallJSON("no_such_tool", `{}`)),
		reply(`{"action":"final","answer":"I could not use that tool."}`),
	}}
	o := newTestOrchestrator(sm, financeRegistry(), nil)

	draft := o.Run(context.Background(), request("do something odd"), Budget{})

	assert.Equal(t, "I could not use that tool.", draft.Text)
	assert.Equal(t, 1, draft.Plan.Failures())
}
