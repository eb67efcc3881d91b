package resilience

import (
	"sync"

	"github.com/otto-ai/otto/pkg/logx"
)

// Registry hands out one shared breaker per dependency name. Components must
// never construct their own breaker for a shared dependency; they ask the
// registry so failure history accumulates in a single place.
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
	defaults Config
}

// NewRegistry creates a registry that builds breakers from the given defaults.
func NewRegistry(defaults Config) *Registry {
	if defaults.WindowSize <= 0 {
		defaults = DefaultConfig()
	}
	return &Registry{
		breakers: make(map[string]*CircuitBreaker),
		defaults: defaults,
	}
}

// Get returns the breaker for name, or nil if none exists yet.
func (r *Registry) Get(name string) *CircuitBreaker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.breakers[name]
}

// GetOrCreate returns the shared breaker for name, creating it on first use.
func (r *Registry) GetOrCreate(name string) *CircuitBreaker {
	r.mu.RLock()
	cb, ok := r.breakers[name]
	r.mu.RUnlock()
	if ok {
		return cb
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Re-check under the write lock
	if cb, ok := r.breakers[name]; ok {
		return cb
	}

	cfg := r.defaults
	if cfg.OnStateChange == nil {
		cfg.OnStateChange = logStateChange
	}

	cb = New(name, cfg)
	r.breakers[name] = cb
	return cb
}

// All returns a snapshot of every registered breaker.
func (r *Registry) All() map[string]*CircuitBreaker {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]*CircuitBreaker, len(r.breakers))
	for name, cb := range r.breakers {
		out[name] = cb
	}
	return out
}

// ResetAll closes every registered breaker.
func (r *Registry) ResetAll() {
	for _, cb := range r.All() {
		cb.Reset()
	}
}

// AllMetrics returns metrics for every registered breaker.
func (r *Registry) AllMetrics() []Metrics {
	breakers := r.All()
	out := make([]Metrics, 0, len(breakers))
	for _, cb := range breakers {
		out = append(out, cb.Metrics())
	}
	return out
}

func logStateChange(name string, from, to State) {
	evt := logx.Info()
	if to == StateOpen {
		evt = logx.Warn()
	}
	evt.Str("breaker", name).
		Str("from", from.String()).
		Str("to", to.String()).
		Msg("circuit breaker state change")
}
