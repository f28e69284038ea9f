package marketdata

import (
	"testing"
	"time"
)

func TestRetentionCountBound(t *testing.T) {
	rs := NewRetentionStore(2, 5*time.Minute)

	r1 := rs.OnNewTick("X", 1, t0)
	r2 := rs.OnNewTick("X", 2, t0.Add(1*time.Second))
	if r1.EvictedThisCall != 0 || r2.EvictedThisCall != 0 {
		t.Fatalf("no eviction expected while under the bound")
	}

	r3 := rs.OnNewTick("X", 3, t0.Add(2*time.Second))
	if r3.EvictedThisCall != 1 || r3.CurrentLen != 2 || r3.TotalEvicted != 1 {
		t.Fatalf("third tick: %+v, want evicted=1 len=2 total=1", r3)
	}
	if !r3.LastEvictionTime.Equal(t0.Add(2 * time.Second)) || r3.LastEvictionBatch != 1 {
		t.Fatalf("eviction metadata: %+v", r3)
	}
}

func TestRetentionAgeBound(t *testing.T) {
	rs := NewRetentionStore(100, time.Minute)

	rs.OnNewTick("X", 1, t0)
	rs.OnNewTick("X", 2, t0.Add(30*time.Second))
	r := rs.OnNewTick("X", 3, t0.Add(90*time.Second))
	// Head at t0 is 90s old relative to the incoming tick, over the window.
	if r.EvictedThisCall != 1 || r.CurrentLen != 2 {
		t.Fatalf("age eviction: %+v", r)
	}

	r = rs.OnNewTick("X", 4, t0.Add(10*time.Minute))
	// Everything else is now outside the window too.
	if r.CurrentLen != 1 {
		t.Fatalf("want only the newest entry retained, got %+v", r)
	}
}

func TestRetentionBothBoundsEveryCall(t *testing.T) {
	rs := NewRetentionStore(3, time.Minute)

	times := []time.Duration{0, time.Second, 2 * time.Second, 3 * time.Second, 2 * time.Minute}
	for i, d := range times {
		r := rs.OnNewTick("X", int64(i+1), t0.Add(d))
		if r.CurrentLen > 3 {
			t.Fatalf("count bound violated at step %d: %+v", i, r)
		}
	}
	// Last call at +2m evicts everything older than one minute.
	if rs.Len("X") != 1 {
		t.Fatalf("window bound violated: len=%d", rs.Len("X"))
	}
}

func TestRetentionPerSymbolIsolation(t *testing.T) {
	rs := NewRetentionStore(2, time.Hour)
	rs.OnNewTick("A", 1, t0)
	rs.OnNewTick("A", 2, t0)
	rs.OnNewTick("B", 1, t0)
	r := rs.OnNewTick("A", 3, t0)
	if r.EvictedThisCall != 1 || rs.Len("B") != 1 {
		t.Fatalf("eviction must not cross symbols: %+v lenB=%d", r, rs.Len("B"))
	}

	total, lastAt, lastBatch := rs.Totals()
	if total != 1 || lastBatch != 1 || !lastAt.Equal(t0) {
		t.Fatalf("totals: %d %v %d", total, lastAt, lastBatch)
	}
}
