package sheet

import (
	"testing"
	"time"
)

func TestPolicyCountRule(t *testing.T) {
	p := NewBatchPolicy(3, time.Hour, nil)

	p.Record("X", t0)
	p.Record("X", t0)
	if p.ShouldFlush(t0) {
		t.Fatalf("below watermark must not flush")
	}
	p.Record("X", t0)
	if !p.ShouldFlush(t0) {
		t.Fatalf("watermark reached must flush")
	}
}

func TestPolicyAgeRule(t *testing.T) {
	p := NewBatchPolicy(1000, time.Second, nil)

	p.Record("X", t0)
	if p.ShouldFlush(t0.Add(500 * time.Millisecond)) {
		t.Fatalf("young batch must not flush")
	}
	if !p.ShouldFlush(t0.Add(time.Second)) {
		t.Fatalf("aged batch must flush")
	}
}

func TestPolicyPriorityRule(t *testing.T) {
	p := NewBatchPolicy(1000, time.Hour, []string{"GGAL"})

	p.Record("YPFD", t0)
	if p.ShouldFlush(t0) {
		t.Fatalf("non-priority symbol must not trigger")
	}
	p.Record("GGAL", t0)
	if !p.ShouldFlush(t0) {
		t.Fatalf("priority symbol must trigger immediately")
	}
}

// Once true, ShouldFlush stays true until Reset.
func TestPolicyLatchesUntilReset(t *testing.T) {
	p := NewBatchPolicy(2, time.Hour, nil)
	p.Record("X", t0)
	p.Record("X", t0)

	for i := 0; i < 5; i++ {
		if !p.ShouldFlush(t0.Add(time.Duration(i) * time.Millisecond)) {
			t.Fatalf("latched decision must persist (iteration %d)", i)
		}
	}

	p.Reset()
	if p.ShouldFlush(t0.Add(time.Minute)) {
		t.Fatalf("reset must return to the no-quotes state")
	}

	// Age accounting restarts from the next Record.
	p.Record("X", t0.Add(2*time.Minute))
	if p.ShouldFlush(t0.Add(2*time.Minute + 500*time.Millisecond)) {
		t.Fatalf("age must be measured from the first record after reset")
	}
}

func TestPolicyEmptyNeverFlushes(t *testing.T) {
	p := NewBatchPolicy(1, time.Millisecond, []string{"GGAL"})
	if p.ShouldFlush(t0.Add(time.Hour)) {
		t.Fatalf("no quotes since reset means no flush")
	}
}
