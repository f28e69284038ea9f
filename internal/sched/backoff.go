package sched

import (
	"time"

	"github.com/ChuchoCoder/MarketDataExcelUpdater/internal/observ"
)

// failureLogEvery throttles the WARN cadence once an outage is established.
const failureLogEvery = 10

// BackoffGate short-circuits sink calls during an outage so the flush loop
// keeps spinning without hammering a dead sink. State is touched only from
// the scheduler goroutine.
type BackoffGate struct {
	base time.Duration
	max  time.Duration

	consecutiveFailures int
	lastFailureAt       time.Time
}

func NewBackoffGate(base, max time.Duration) *BackoffGate {
	return &BackoffGate{base: base, max: max}
}

// Delay returns the current backoff window: base * 2^(failures-1) clamped to
// the configured maximum. Zero when there is no active failure streak.
func (g *BackoffGate) Delay() time.Duration {
	if g.consecutiveFailures == 0 {
		return 0
	}
	d := g.base
	for i := 1; i < g.consecutiveFailures; i++ {
		d *= 2
		if d >= g.max {
			return g.max
		}
	}
	if d > g.max {
		d = g.max
	}
	return d
}

// Open reports whether the gate allows a sink call at now.
func (g *BackoffGate) Open(now time.Time) bool {
	if g.consecutiveFailures == 0 {
		return true
	}
	return !now.Before(g.lastFailureAt.Add(g.Delay()))
}

// RecordFailure extends the outage window and logs per the cadence: first
// failure WARN with the next delay, failures 2-3 INFO, then one WARN every
// failureLogEvery-th failure.
func (g *BackoffGate) RecordFailure(err error, now time.Time) {
	g.consecutiveFailures++
	g.lastFailureAt = now

	kv := map[string]any{
		"consecutive_failures": g.consecutiveFailures,
		"next_delay_ms":        g.Delay().Milliseconds(),
		"error":                err.Error(),
	}
	switch {
	case g.consecutiveFailures == 1:
		observ.Logf("warn", "sink_failure", kv)
	case g.consecutiveFailures <= 3:
		observ.Logf("info", "sink_failure", kv)
	case g.consecutiveFailures%failureLogEvery == 0:
		observ.Logf("warn", "sink_failure", kv)
	}
	observ.IncCounter("sink_failures_total", nil)
}

// RecordSuccess clears the failure streak, logging once if it closes an
// outage.
func (g *BackoffGate) RecordSuccess() {
	if g.consecutiveFailures > 0 {
		observ.Logf("info", "sink_recovered", map[string]any{
			"failures_recovered": g.consecutiveFailures,
		})
	}
	g.consecutiveFailures = 0
	g.lastFailureAt = time.Time{}
}

// ConsecutiveFailures returns the current failure streak length.
func (g *BackoffGate) ConsecutiveFailures() int { return g.consecutiveFailures }
