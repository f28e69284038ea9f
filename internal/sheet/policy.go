package sheet

import (
	"sync"
	"time"
)

// BatchPolicy decides when the coalescing buffer should flush. It is pure
// state driven by the dispatcher's Record calls and the scheduler's
// ShouldFlush/Reset; it never touches the buffer.
//
// Once ShouldFlush returns true it keeps returning true until Reset -- the
// decision latches so a slow scheduler tick cannot lose a triggered flush.
type BatchPolicy struct {
	mu            sync.Mutex
	highWatermark int
	maxAge        time.Duration
	priority      map[string]bool

	accumulated   int
	firstObserved time.Time
	priorityHit   bool
	latched       bool
}

func NewBatchPolicy(highWatermark int, maxAge time.Duration, prioritySymbols []string) *BatchPolicy {
	p := &BatchPolicy{
		highWatermark: highWatermark,
		maxAge:        maxAge,
		priority:      make(map[string]bool, len(prioritySymbols)),
	}
	for _, s := range prioritySymbols {
		p.priority[s] = true
	}
	return p
}

// Record notes one accepted tick for symbol at now.
func (p *BatchPolicy) Record(symbol string, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.accumulated == 0 {
		p.firstObserved = now
	}
	p.accumulated++
	if p.priority[symbol] {
		p.priorityHit = true
	}
}

// ShouldFlush evaluates the count, age, and priority rules.
func (p *BatchPolicy) ShouldFlush(now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.latched {
		return true
	}
	if p.accumulated == 0 {
		return false
	}
	switch {
	case p.accumulated >= p.highWatermark:
		p.latched = true
	case now.Sub(p.firstObserved) >= p.maxAge:
		p.latched = true
	case p.priorityHit:
		p.latched = true
	}
	return p.latched
}

// Reset returns the policy to the "no quotes since flush" state.
func (p *BatchPolicy) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accumulated = 0
	p.firstObserved = time.Time{}
	p.priorityHit = false
	p.latched = false
}
