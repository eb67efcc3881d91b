// Package resilience provides circuit breakers for remote dependencies.
//
// One breaker instance guards each distinct dependency name for the process
// lifetime; all concurrent requests to that dependency share it. An open
// breaker fails callers in sub-millisecond time instead of letting them pile
// up behind a dead dependency.
package resilience

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// State represents the breaker state.
type State int

const (
	StateClosed State = iota // Normal operation, calls pass through
	StateOpen                // Failing fast, no dependency calls attempted
	StateHalfOpen            // Cooldown elapsed, a single probe is allowed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

var (
	// ErrCircuitOpen is returned when the breaker rejects a call outright.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrTooManyRequests is returned when a half-open breaker already has
	// its probe in flight.
	ErrTooManyRequests = errors.New("circuit breaker half-open probe in flight")
)

// Config configures a circuit breaker.
type Config struct {
	// WindowSize is the number of recent call outcomes kept in the rolling window.
	WindowSize int

	// MinSamples is the number of recorded outcomes required before the
	// breaker may trip, so a single early failure never opens it.
	MinSamples int

	// FailureThreshold is the failure rate (0-1) above which the breaker opens.
	FailureThreshold float64

	// RecoveryTimeout is how long an open breaker waits before allowing a probe.
	RecoveryTimeout time.Duration

	// OnStateChange is invoked on every transition. Called from its own
	// goroutine so a slow observer never blocks callers.
	OnStateChange func(name string, from, to State)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		WindowSize:       20,
		MinSamples:       5,
		FailureThreshold: 0.5,
		RecoveryTimeout:  30 * time.Second,
	}
}

// CircuitBreaker is a three-state fail-fast gate around one remote dependency.
type CircuitBreaker struct {
	name   string
	config Config

	mu          sync.Mutex
	state       State
	outcomes    []bool // ring buffer, true = failure
	outcomeIdx  int
	outcomeLen  int
	openedAt    time.Time
	probeActive bool

	totalCalls    atomic.Int64
	totalFailures atomic.Int64
	totalRejected atomic.Int64
}

// New creates a breaker for the named dependency.
func New(name string, config Config) *CircuitBreaker {
	if config.WindowSize <= 0 {
		config.WindowSize = 20
	}
	if config.MinSamples <= 0 {
		config.MinSamples = 5
	}
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 0.5
	}
	if config.RecoveryTimeout <= 0 {
		config.RecoveryTimeout = 30 * time.Second
	}

	return &CircuitBreaker{
		name:     name,
		config:   config,
		state:    StateClosed,
		outcomes: make([]bool, config.WindowSize),
	}
}

// Name returns the dependency name this breaker guards.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Call runs fn through the breaker, recording its outcome.
func (cb *CircuitBreaker) Call(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.allowRequest(); err != nil {
		cb.totalRejected.Add(1)
		return err
	}

	cb.totalCalls.Add(1)
	err := fn(ctx)
	if err != nil {
		cb.totalFailures.Add(1)
		cb.recordFailure()
		return err
	}

	cb.recordSuccess()
	return nil
}

// CallWithResult runs fn through the breaker and returns its result.
// A standalone function since Go doesn't allow generic methods.
func CallWithResult[T any](cb *CircuitBreaker, ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	var result T
	err := cb.Call(ctx, func(ctx context.Context) error {
		var innerErr error
		result, innerErr = fn(ctx)
		return innerErr
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

// allowRequest decides whether a call may proceed, advancing Open to HalfOpen
// when the cooldown has elapsed. The caller that triggers that transition
// becomes the probe.
func (cb *CircuitBreaker) allowRequest() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil

	case StateOpen:
		if time.Since(cb.openedAt) < cb.config.RecoveryTimeout {
			return ErrCircuitOpen
		}
		cb.transitionTo(StateHalfOpen)
		cb.probeActive = true
		return nil

	case StateHalfOpen:
		if cb.probeActive {
			return ErrTooManyRequests
		}
		cb.probeActive = true
		return nil
	}

	return ErrCircuitOpen
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.recordOutcome(false)

	case StateHalfOpen:
		// Probe succeeded: dependency recovered.
		cb.probeActive = false
		cb.resetWindow()
		cb.transitionTo(StateClosed)
	}
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.recordOutcome(true)
		if cb.outcomeLen >= cb.config.MinSamples && cb.failureRate() > cb.config.FailureThreshold {
			cb.openedAt = time.Now()
			cb.transitionTo(StateOpen)
		}

	case StateHalfOpen:
		// Probe failed: restart the cooldown.
		cb.probeActive = false
		cb.openedAt = time.Now()
		cb.transitionTo(StateOpen)
	}
}

// recordOutcome writes one outcome into the ring buffer. Caller holds mu.
func (cb *CircuitBreaker) recordOutcome(failed bool) {
	cb.outcomes[cb.outcomeIdx] = failed
	cb.outcomeIdx = (cb.outcomeIdx + 1) % len(cb.outcomes)
	if cb.outcomeLen < len(cb.outcomes) {
		cb.outcomeLen++
	}
}

// failureRate computes the failure fraction over the window. Caller holds mu.
func (cb *CircuitBreaker) failureRate() float64 {
	if cb.outcomeLen == 0 {
		return 0
	}
	failures := 0
	for i := 0; i < cb.outcomeLen; i++ {
		if cb.outcomes[i] {
			failures++
		}
	}
	return float64(failures) / float64(cb.outcomeLen)
}

// resetWindow clears recorded outcomes. Caller holds mu.
func (cb *CircuitBreaker) resetWindow() {
	for i := range cb.outcomes {
		cb.outcomes[i] = false
	}
	cb.outcomeIdx = 0
	cb.outcomeLen = 0
}

// transitionTo changes state and notifies the observer. Caller holds mu.
func (cb *CircuitBreaker) transitionTo(next State) {
	prev := cb.state
	if prev == next {
		return
	}
	cb.state = next

	if cb.config.OnStateChange != nil {
		go cb.config.OnStateChange(cb.name, prev, next)
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// ForceOpen trips the breaker immediately, starting a fresh cooldown.
func (cb *CircuitBreaker) ForceOpen() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.openedAt = time.Now()
	cb.probeActive = false
	cb.transitionTo(StateOpen)
}

// Reset closes the breaker and clears the window.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.probeActive = false
	cb.resetWindow()
	cb.transitionTo(StateClosed)
}

// Metrics describes a breaker's current standing.
type Metrics struct {
	Name          string  `json:"name"`
	State         string  `json:"state"`
	FailureRate   float64 `json:"failure_rate"`
	WindowSamples int     `json:"window_samples"`
	TotalCalls    int64   `json:"total_calls"`
	TotalFailures int64   `json:"total_failures"`
	TotalRejected int64   `json:"total_rejected"`
}

// Metrics returns a snapshot of the breaker's counters.
func (cb *CircuitBreaker) Metrics() Metrics {
	cb.mu.Lock()
	state := cb.state
	rate := cb.failureRate()
	samples := cb.outcomeLen
	cb.mu.Unlock()

	return Metrics{
		Name:          cb.name,
		State:         state.String(),
		FailureRate:   rate,
		WindowSamples: samples,
		TotalCalls:    cb.totalCalls.Load(),
		TotalFailures: cb.totalFailures.Load(),
		TotalRejected: cb.totalRejected.Load(),
	}
}
