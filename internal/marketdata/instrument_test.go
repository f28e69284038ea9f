package marketdata

import (
	"errors"
	"testing"
	"time"
)

var t0 = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

func TestTryUpdateMonotoneTimestamp(t *testing.T) {
	ins := newInstrument("X", 2)

	if _, err := ins.TryUpdate(Quote{Last: Float(100), EventTime: t0.Add(10 * time.Second)}, 2); err != nil {
		t.Fatalf("first update: %v", err)
	}

	// Older timestamp is rejected and nothing mutates.
	before := *ins
	_, err := ins.TryUpdate(Quote{Last: Float(99), EventTime: t0}, 1)
	if !errors.Is(err, ErrStaleTimestamp) {
		t.Fatalf("want ErrStaleTimestamp, got %v", err)
	}
	if ins.LastSequence != before.LastSequence || !ins.LastUpdateTime.Equal(before.LastUpdateTime) ||
		ins.GapCount != before.GapCount || *ins.LastQuote.Last != *before.LastQuote.Last {
		t.Fatalf("rejected tick mutated state: %+v", ins)
	}
}

func TestTryUpdateEqualTimestampAccepted(t *testing.T) {
	ins := newInstrument("X", 2)
	if _, err := ins.TryUpdate(Quote{Last: Float(100), EventTime: t0}, 1); err != nil {
		t.Fatalf("first: %v", err)
	}
	res, err := ins.TryUpdate(Quote{Last: Float(101), EventTime: t0}, 2)
	if err != nil || !res.Accepted {
		t.Fatalf("equal timestamps must be accepted, got %+v err=%v", res, err)
	}
	if *ins.LastQuote.Last != 101 {
		t.Fatalf("cotemporal update not applied")
	}
}

func TestTryUpdateDuplicate(t *testing.T) {
	ins := newInstrument("X", 2)
	_, _ = ins.TryUpdate(Quote{Last: Float(100), EventTime: t0}, 3)

	res, err := ins.TryUpdate(Quote{Last: Float(200), EventTime: t0.Add(time.Second)}, 3)
	if err != nil {
		t.Fatalf("duplicate must not error: %v", err)
	}
	if !res.Accepted || res.Classification != ClassDuplicate {
		t.Fatalf("want accepted duplicate, got %+v", res)
	}
	if *ins.LastQuote.Last != 100 {
		t.Fatalf("duplicate must not replace the stored quote")
	}
	if ins.LastSequence != 3 {
		t.Fatalf("duplicate must not move the cursor, got %d", ins.LastSequence)
	}
}

func TestTryUpdateGapAccounting(t *testing.T) {
	ins := newInstrument("X", 2)

	steps := []struct {
		seq      int64
		at       time.Time
		class    Classification
		wantGaps int64
	}{
		{5, t0, ClassFirst, 0},
		{6, t0.Add(1 * time.Second), ClassInOrder, 0},
		{10, t0.Add(2 * time.Second), ClassGap, 1},
		{11, t0.Add(3 * time.Second), ClassInOrder, 1},
		{8, t0.Add(4 * time.Second), ClassGap, 2},
		{NoSequence, t0.Add(5 * time.Second), ClassNoSequence, 2},
		{9, t0.Add(6 * time.Second), ClassInOrder, 2},
	}
	for i, st := range steps {
		res, err := ins.TryUpdate(Quote{Last: Float(100), EventTime: st.at}, st.seq)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if res.Classification != st.class {
			t.Fatalf("step %d: class %s, want %s", i, res.Classification, st.class)
		}
		if res.GapsSoFar != st.wantGaps {
			t.Fatalf("step %d: gaps %d, want %d", i, res.GapsSoFar, st.wantGaps)
		}
	}
	if ins.GapCount != 2 {
		t.Fatalf("final gap count %d, want 2", ins.GapCount)
	}
	// Gap moved the cursor to the observed value; no-sequence did not.
	if ins.LastSequence != 9 {
		t.Fatalf("cursor %d, want 9", ins.LastSequence)
	}
}

func TestTryUpdateGapSetsCursorToObserved(t *testing.T) {
	ins := newInstrument("X", 2)
	_, _ = ins.TryUpdate(Quote{EventTime: t0}, 5)
	_, _ = ins.TryUpdate(Quote{EventTime: t0.Add(time.Second)}, 10)
	if ins.LastSequence != 10 {
		t.Fatalf("gap must set cursor to observed value, got %d", ins.LastSequence)
	}
	_, _ = ins.TryUpdate(Quote{EventTime: t0.Add(2 * time.Second)}, 3)
	if ins.LastSequence != 3 {
		t.Fatalf("backward gap also moves the cursor, got %d", ins.LastSequence)
	}
}

func TestTryUpdateSanitizesBeforeStore(t *testing.T) {
	ins := newInstrument("X", 2)
	_, err := ins.TryUpdate(Quote{Last: Float(-5), Bid: Float(3), EventTime: t0}, 1)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if ins.LastQuote.Last != nil {
		t.Fatalf("negative last must be stored as absent")
	}
	if ins.LastQuote.Bid == nil || *ins.LastQuote.Bid != 3 {
		t.Fatalf("valid bid must survive")
	}
	if !ins.LastUpdateTime.Equal(t0) {
		t.Fatalf("last_update_time must equal event_time after success")
	}
}
