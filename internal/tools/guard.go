package tools

import (
	"context"
	"errors"

	"github.com/otto-ai/otto/internal/resilience"
)

// Guarded wraps a remote tool family with its circuit breaker.
// Local tools register bare; remote families register guarded so a
// failing backend trips fast without ever gating local execution.
type Guarded struct {
	tool    Tool
	breaker *resilience.CircuitBreaker
}

// Guard wraps tool with breaker.
func Guard(tool Tool, breaker *resilience.CircuitBreaker) *Guarded {
	return &Guarded{tool: tool, breaker: breaker}
}

// Name returns the wrapped tool's identifier.
func (g *Guarded) Name() string {
	return g.tool.Name()
}

// Description returns what the wrapped tool does.
func (g *Guarded) Description() string {
	return g.tool.Description()
}

// Execute runs the wrapped tool through the breaker. Error results
// count as breaker failures too, so a degrading backend opens the
// breaker even when the tool reports failure in-band.
func (g *Guarded) Execute(ctx context.Context, input map[string]any) (*Result, error) {
	return resilience.CallWithResult(g.breaker, ctx, func(ctx context.Context) (*Result, error) {
		result, err := g.tool.Execute(ctx, input)
		if err != nil {
			return nil, err
		}
		if !result.Success {
			return nil, errors.New(result.Error)
		}
		return result, nil
	})
}
