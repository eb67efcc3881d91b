// Package governor enforces concurrency limits on request admission.
//
// Admission is gated by two counting semaphores: a global cap shared by
// every caller and a smaller per-caller cap. A request that cannot take
// both slots immediately is rejected; nothing ever queues.
package governor

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	apperrors "github.com/otto-ai/otto/internal/errors"
	"github.com/otto-ai/otto/pkg/logx"
)

var (
	// ErrGlobalLimit indicates the system-wide concurrency cap is reached.
	ErrGlobalLimit = errors.New("global concurrency limit reached")

	// ErrCallerLimit indicates the per-caller concurrency cap is reached.
	ErrCallerLimit = errors.New("caller concurrency limit reached")
)

// retryHint is the delay suggested to rejected callers.
const retryHint = 2 * time.Second

// warnInterval throttles near-capacity log warnings.
const warnInterval = 10 * time.Second

// Config holds governor limits.
type Config struct {
	// GlobalLimit caps in-flight requests across all callers.
	GlobalLimit int

	// CallerLimit caps in-flight requests per caller.
	CallerLimit int

	// WarnUtilization is the global utilization fraction above which
	// admissions log a warning (0 disables).
	WarnUtilization float64
}

// DefaultConfig returns production limits.
func DefaultConfig() Config {
	return Config{
		GlobalLimit:     50,
		CallerLimit:     3,
		WarnUtilization: 0.9,
	}
}

// callerSlot tracks one caller's semaphore. refs counts outstanding
// permits plus in-flight acquisitions so the entry can be dropped from
// the map exactly when it reaches zero.
type callerSlot struct {
	sem  chan struct{}
	refs int
}

// Governor admits or rejects requests against global and per-caller caps.
type Governor struct {
	config Config
	global chan struct{}

	mu      sync.Mutex
	callers map[string]*callerSlot

	lastWarn int64 // unix nanos, accessed atomically

	totalAdmitted  int64
	rejectedGlobal int64
	rejectedCaller int64
}

// New creates a Governor. Non-positive limits fall back to defaults.
func New(config Config) *Governor {
	def := DefaultConfig()
	if config.GlobalLimit <= 0 {
		config.GlobalLimit = def.GlobalLimit
	}
	if config.CallerLimit <= 0 {
		config.CallerLimit = def.CallerLimit
	}

	return &Governor{
		config:  config,
		global:  make(chan struct{}, config.GlobalLimit),
		callers: make(map[string]*callerSlot),
	}
}

// Admit reserves a global and a per-caller slot for one request. On
// success it returns a Permit that must be released when the request
// finishes. On saturation it fails immediately without queueing.
func (g *Governor) Admit(callerID string) (*Permit, error) {
	slot := g.retainSlot(callerID)

	select {
	case g.global <- struct{}{}:
	default:
		g.releaseSlot(callerID)
		atomic.AddInt64(&g.rejectedGlobal, 1)
		return nil, rejection(ErrGlobalLimit, callerID)
	}

	select {
	case slot.sem <- struct{}{}:
	default:
		<-g.global
		g.releaseSlot(callerID)
		atomic.AddInt64(&g.rejectedCaller, 1)
		return nil, rejection(ErrCallerLimit, callerID)
	}

	atomic.AddInt64(&g.totalAdmitted, 1)
	g.maybeWarn()

	return &Permit{governor: g, callerID: callerID, slot: slot}, nil
}

// retainSlot returns the caller's slot, creating it if needed, and bumps
// its refcount.
func (g *Governor) retainSlot(callerID string) *callerSlot {
	g.mu.Lock()
	defer g.mu.Unlock()

	slot, ok := g.callers[callerID]
	if !ok {
		slot = &callerSlot{sem: make(chan struct{}, g.config.CallerLimit)}
		g.callers[callerID] = slot
	}
	slot.refs++
	return slot
}

// releaseSlot drops one reference and removes the entry at zero.
func (g *Governor) releaseSlot(callerID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	slot, ok := g.callers[callerID]
	if !ok {
		return
	}
	slot.refs--
	if slot.refs <= 0 {
		delete(g.callers, callerID)
	}
}

// maybeWarn logs when global utilization crosses the warn threshold,
// throttled so a saturated system does not flood the log.
func (g *Governor) maybeWarn() {
	if g.config.WarnUtilization <= 0 {
		return
	}

	inFlight := len(g.global)
	util := float64(inFlight) / float64(g.config.GlobalLimit)
	if util < g.config.WarnUtilization {
		return
	}

	now := time.Now().UnixNano()
	last := atomic.LoadInt64(&g.lastWarn)
	if now-last < int64(warnInterval) {
		return
	}
	if !atomic.CompareAndSwapInt64(&g.lastWarn, last, now) {
		return
	}

	logx.Warn().
		Int("in_flight", inFlight).
		Int("limit", g.config.GlobalLimit).
		Float64("utilization", util).
		Msg("governor near capacity")
}

// InFlight returns the current number of admitted requests.
func (g *Governor) InFlight() int {
	return len(g.global)
}

// CallerInFlight returns the number of admitted requests for one caller.
func (g *Governor) CallerInFlight(callerID string) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	if slot, ok := g.callers[callerID]; ok {
		return len(slot.sem)
	}
	return 0
}

// Metrics is a snapshot of governor counters.
type Metrics struct {
	GlobalInFlight int     `json:"global_in_flight"`
	GlobalLimit    int     `json:"global_limit"`
	Utilization    float64 `json:"utilization"`
	ActiveCallers  int     `json:"active_callers"`
	TotalAdmitted  int64   `json:"total_admitted"`
	RejectedGlobal int64   `json:"rejected_global"`
	RejectedCaller int64   `json:"rejected_caller"`
}

// Metrics returns a point-in-time snapshot.
func (g *Governor) Metrics() Metrics {
	g.mu.Lock()
	active := len(g.callers)
	g.mu.Unlock()

	inFlight := len(g.global)
	return Metrics{
		GlobalInFlight: inFlight,
		GlobalLimit:    g.config.GlobalLimit,
		Utilization:    float64(inFlight) / float64(g.config.GlobalLimit),
		ActiveCallers:  active,
		TotalAdmitted:  atomic.LoadInt64(&g.totalAdmitted),
		RejectedGlobal: atomic.LoadInt64(&g.rejectedGlobal),
		RejectedCaller: atomic.LoadInt64(&g.rejectedCaller),
	}
}

// Permit represents one admitted request. Release is idempotent.
type Permit struct {
	governor *Governor
	callerID string
	slot     *callerSlot
	once     sync.Once
}

// Release returns both semaphore slots. Safe to call more than once;
// only the first call has effect.
func (p *Permit) Release() {
	p.once.Do(func() {
		<-p.slot.sem
		<-p.governor.global
		p.governor.releaseSlot(p.callerID)
	})
}

// rejection wraps a limit sentinel in the application error envelope.
func rejection(inner error, callerID string) error {
	return apperrors.NewBuilder(apperrors.CodeAdmissionRejected, fmt.Sprintf("request for caller %q rejected: at capacity", callerID)).
		RateLimit(retryHint).
		Wrap(inner).
		WithSuggestion("Retry after a short delay").
		WithContext("caller_id", callerID).
		Build()
}
