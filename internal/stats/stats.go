// Package stats tracks pipeline counters for the stats surface.
package stats

import (
	"runtime"
	"sync/atomic"
	"time"
)

// Collector accumulates pipeline counters. All methods are safe for
// concurrent use; requests record into it in parallel.
type Collector struct {
	startTime time.Time

	requests      atomic.Int64
	degraded      atomic.Int64
	errors        atomic.Int64
	tokens        atomic.Int64
	totalDuration atomic.Int64 // nanoseconds

	localRequests     atomic.Int64
	remoteRequests    atomic.Int64
	admissionRejected atomic.Int64
	toolCalls         atomic.Int64
	validatorRewrites atomic.Int64
	breakerOpens      atomic.Int64

	classifiedHeuristic atomic.Int64
	classifiedModel     atomic.Int64
	classifiedFallback  atomic.Int64
}

// NewCollector creates a collector anchored at the current time.
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

// Snapshot is the collector's state at a point in time.
type Snapshot struct {
	// Process
	Uptime      string  `json:"uptime"`
	Goroutines  int     `json:"goroutines"`
	HeapAllocMB float64 `json:"heap_alloc_mb"`

	// Requests
	Requests     int64   `json:"requests"`
	Degraded     int64   `json:"degraded"`
	Errors       int64   `json:"errors"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
	TokensUsed   int64   `json:"tokens_used"`

	// Pipeline
	LocalRequests     int64 `json:"local_requests"`
	RemoteRequests    int64 `json:"remote_requests"`
	AdmissionRejected int64 `json:"admission_rejected"`
	ToolCalls         int64 `json:"tool_calls"`
	ValidatorRewrites int64 `json:"validator_rewrites"`
	BreakerOpens      int64 `json:"breaker_opens"`

	// Classification sources
	ClassifiedHeuristic int64 `json:"classified_heuristic"`
	ClassifiedModel     int64 `json:"classified_model"`
	ClassifiedFallback  int64 `json:"classified_fallback"`
}

// RecordRequest records a completed request.
func (c *Collector) RecordRequest(tokens int, duration time.Duration) {
	c.requests.Add(1)
	c.tokens.Add(int64(tokens))
	c.totalDuration.Add(duration.Nanoseconds())
}

// RecordDegraded records a request that finished degraded.
func (c *Collector) RecordDegraded() {
	c.degraded.Add(1)
}

// RecordError records a request rejected with an error.
func (c *Collector) RecordError() {
	c.errors.Add(1)
}

// RecordRoute records which execution mode served a request.
func (c *Collector) RecordRoute(local bool) {
	if local {
		c.localRequests.Add(1)
	} else {
		c.remoteRequests.Add(1)
	}
}

// RecordRejected records an admission rejection.
func (c *Collector) RecordRejected() {
	c.admissionRejected.Add(1)
}

// RecordToolCalls records tool executions for one request.
func (c *Collector) RecordToolCalls(n int) {
	c.toolCalls.Add(int64(n))
}

// RecordRewrites records validator rewrites for one request.
func (c *Collector) RecordRewrites(n int) {
	c.validatorRewrites.Add(int64(n))
}

// RecordBreakerOpen records a breaker transition to open. Wired via
// the breaker's OnStateChange hook.
func (c *Collector) RecordBreakerOpen() {
	c.breakerOpens.Add(1)
}

// RecordClassification records which layer produced an intent.
func (c *Collector) RecordClassification(source string) {
	switch source {
	case "heuristic":
		c.classifiedHeuristic.Add(1)
	case "model":
		c.classifiedModel.Add(1)
	default:
		c.classifiedFallback.Add(1)
	}
}

// StartTime returns when the collector started.
func (c *Collector) StartTime() time.Time {
	return c.startTime
}

// Collect returns a snapshot of all counters plus process state.
func (c *Collector) Collect() *Snapshot {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	requests := c.requests.Load()
	avgLatency := float64(0)
	if requests > 0 {
		avgLatency = float64(c.totalDuration.Load()) / float64(requests) / 1e6
	}

	return &Snapshot{
		Uptime:      time.Since(c.startTime).Round(time.Second).String(),
		Goroutines:  runtime.NumGoroutine(),
		HeapAllocMB: float64(m.HeapAlloc) / 1024 / 1024,

		Requests:     requests,
		Degraded:     c.degraded.Load(),
		Errors:       c.errors.Load(),
		AvgLatencyMs: avgLatency,
		TokensUsed:   c.tokens.Load(),

		LocalRequests:     c.localRequests.Load(),
		RemoteRequests:    c.remoteRequests.Load(),
		AdmissionRejected: c.admissionRejected.Load(),
		ToolCalls:         c.toolCalls.Load(),
		ValidatorRewrites: c.validatorRewrites.Load(),
		BreakerOpens:      c.breakerOpens.Load(),

		ClassifiedHeuristic: c.classifiedHeuristic.Load(),
		ClassifiedModel:     c.classifiedModel.Load(),
		ClassifiedFallback:  c.classifiedFallback.Load(),
	}
}
