package marketdata

import (
	"errors"
	"time"
)

// ErrStaleTimestamp marks a tick whose event time is older than the
// instrument's last accepted update. It is the only rejection the state
// machine produces.
var ErrStaleTimestamp = errors.New("stale timestamp")

// Instrument is the per-symbol mutable aggregate. All mutation happens under
// the dispatcher's lock: TryUpdate applies ticks, and the dispatcher's
// freshness sweep sets Stale.
type Instrument struct {
	Symbol         string
	Variant        VariantTag
	LastQuote      *Quote
	LastUpdateTime time.Time // zero value means "never"
	LastSequence   int64     // SequenceNone before the first sequenced tick
	GapCount       int64
	Stale          bool
	RowIndex       int // assigned once on first observation, >= 2
}

// UpdateResult reports the outcome of a TryUpdate call.
type UpdateResult struct {
	Accepted       bool
	Classification Classification
	GapsSoFar      int64
}

func newInstrument(symbol string, rowIndex int) *Instrument {
	return &Instrument{
		Symbol:       symbol,
		Variant:      ParseVariant(symbol),
		LastSequence: SequenceNone,
		RowIndex:     rowIndex,
	}
}

// TryUpdate applies one tick to the instrument state.
//
// A tick with an event time before the last accepted update is rejected and
// mutates nothing. Equal timestamps are accepted; cotemporal events are
// normal on a busy feed. Duplicates are accepted implicitly (the timestamp
// already matched a prior tick) but signalled so the caller skips cell
// writes. Gaps bump the counter and the cursor jumps to the observed value.
func (ins *Instrument) TryUpdate(q Quote, sequence int64) (UpdateResult, error) {
	if !ins.LastUpdateTime.IsZero() && q.EventTime.Before(ins.LastUpdateTime) {
		return UpdateResult{Classification: Classify(ins.LastSequence, sequence), GapsSoFar: ins.GapCount}, ErrStaleTimestamp
	}

	class := Classify(ins.LastSequence, sequence)
	if class == ClassDuplicate {
		return UpdateResult{Accepted: true, Classification: class, GapsSoFar: ins.GapCount}, nil
	}
	if class == ClassGap {
		ins.GapCount++
	}

	sanitized := q.Sanitize()
	ins.LastQuote = &sanitized
	ins.LastUpdateTime = q.EventTime
	if class != ClassNoSequence {
		ins.LastSequence = sequence
	}

	return UpdateResult{Accepted: true, Classification: class, GapsSoFar: ins.GapCount}, nil
}
