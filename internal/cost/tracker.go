// Package cost tracks remote token usage and estimated spend.
package cost

import (
	"sort"
	"sync"
	"time"
)

// Blended per-million-token rates. Model responses report one usage
// total, so rates here average prompt and completion pricing.
var defaultRates = map[string]float64{
	"anthropic/claude-3.5-sonnet": 6.0,
	"anthropic/claude-3.5-haiku":  1.6,
	"openai/gpt-4o-mini":          0.375,
}

// fallbackRatePerMillion prices models with no table entry.
const fallbackRatePerMillion = 2.0

// Tracker accumulates per-model token usage. Safe for concurrent use.
type Tracker struct {
	mu    sync.Mutex
	rates map[string]float64
	usage map[string]*modelUsage
	since time.Time
}

type modelUsage struct {
	requests int64
	tokens   int64
	cost     float64
}

// ModelUsage is one model's accumulated usage.
type ModelUsage struct {
	Model    string  `json:"model"`
	Requests int64   `json:"requests"`
	Tokens   int64   `json:"tokens"`
	CostUSD  float64 `json:"cost_usd"`
}

// Usage is a snapshot of all accumulated usage.
type Usage struct {
	Since    time.Time    `json:"since"`
	Requests int64        `json:"requests"`
	Tokens   int64        `json:"tokens"`
	CostUSD  float64      `json:"cost_usd"`
	PerModel []ModelUsage `json:"per_model,omitempty"`
}

// NewTracker creates a tracker seeded with the default rate table.
func NewTracker() *Tracker {
	rates := make(map[string]float64, len(defaultRates))
	for model, rate := range defaultRates {
		rates[model] = rate
	}
	return &Tracker{
		rates: rates,
		usage: make(map[string]*modelUsage),
		since: time.Now(),
	}
}

// SetRate overrides the blended per-million-token rate for a model.
func (t *Tracker) SetRate(model string, perMillion float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rates[model] = perMillion
}

// Record accumulates one request's token usage against a model.
func (t *Tracker) Record(model string, tokens int) {
	if model == "" {
		model = "unknown"
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	u := t.usage[model]
	if u == nil {
		u = &modelUsage{}
		t.usage[model] = u
	}
	u.requests++
	u.tokens += int64(tokens)
	u.cost += float64(tokens) / 1_000_000 * t.rate(model)
}

func (t *Tracker) rate(model string) float64 {
	if rate, ok := t.rates[model]; ok {
		return rate
	}
	return fallbackRatePerMillion
}

// Usage returns a snapshot with models sorted by spend, then name.
func (t *Tracker) Usage() *Usage {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := &Usage{Since: t.since}
	for model, u := range t.usage {
		out.Requests += u.requests
		out.Tokens += u.tokens
		out.CostUSD += u.cost
		out.PerModel = append(out.PerModel, ModelUsage{
			Model:    model,
			Requests: u.requests,
			Tokens:   u.tokens,
			CostUSD:  u.cost,
		})
	}

	sort.Slice(out.PerModel, func(i, j int) bool {
		if out.PerModel[i].CostUSD != out.PerModel[j].CostUSD {
			return out.PerModel[i].CostUSD > out.PerModel[j].CostUSD
		}
		return out.PerModel[i].Model < out.PerModel[j].Model
	})
	return out
}

// Reset clears accumulated usage, keeping the rate table.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.usage = make(map[string]*modelUsage)
	t.since = time.Now()
}
