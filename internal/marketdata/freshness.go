package marketdata

import (
	"time"
)

// FreshnessTracker records the latest exchange timestamp seen per symbol and
// drives the fresh/stale/recovered transitions. Observe is the only fresh
// edge; DrainNewlyStale is the only stale edge. The dispatcher observes
// before any drain runs, so the two edges cannot race on one symbol within a
// logical step.
type FreshnessTracker struct {
	latest    map[string]time.Time
	stale     map[string]bool
	recovered map[string]bool
}

func NewFreshnessTracker() *FreshnessTracker {
	return &FreshnessTracker{
		latest:    make(map[string]time.Time),
		stale:     make(map[string]bool),
		recovered: make(map[string]bool),
	}
}

// Observe records exchangeTime as the latest-seen for symbol. If the symbol
// was stale it moves to the recovered set, to be consumed exactly once by
// DrainRecovered.
func (ft *FreshnessTracker) Observe(symbol string, exchangeTime time.Time) {
	if cur, ok := ft.latest[symbol]; !ok || exchangeTime.After(cur) {
		ft.latest[symbol] = exchangeTime
	}
	if ft.stale[symbol] {
		delete(ft.stale, symbol)
		ft.recovered[symbol] = true
	}
}

// DrainNewlyStale flags every tracked symbol whose latest-seen is at least
// threshold old and not already stale, and returns a snapshot of the current
// stale set. Symbols observed again since being flagged are not in the set.
func (ft *FreshnessTracker) DrainNewlyStale(threshold time.Duration, now time.Time) []string {
	for symbol, latest := range ft.latest {
		if !ft.stale[symbol] && now.Sub(latest) >= threshold {
			ft.stale[symbol] = true
		}
	}
	out := make([]string, 0, len(ft.stale))
	for symbol := range ft.stale {
		out = append(out, symbol)
	}
	return out
}

// DrainRecovered returns and clears the set of symbols that received a fresh
// observation while flagged stale since the last drain.
func (ft *FreshnessTracker) DrainRecovered() []string {
	out := make([]string, 0, len(ft.recovered))
	for symbol := range ft.recovered {
		out = append(out, symbol)
	}
	ft.recovered = make(map[string]bool)
	return out
}

// IsStale reports whether symbol is currently flagged stale.
func (ft *FreshnessTracker) IsStale(symbol string) bool {
	return ft.stale[symbol]
}

// StaleCount returns the current size of the stale set.
func (ft *FreshnessTracker) StaleCount() int { return len(ft.stale) }
