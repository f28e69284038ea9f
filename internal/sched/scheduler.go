package sched

import (
	"context"
	"fmt"
	"time"

	"github.com/ChuchoCoder/MarketDataExcelUpdater/internal/adapters"
	"github.com/ChuchoCoder/MarketDataExcelUpdater/internal/observ"
	"github.com/ChuchoCoder/MarketDataExcelUpdater/internal/sheet"
)

// shutdownFlushDeadline bounds the final flush on shutdown.
const shutdownFlushDeadline = 300 * time.Millisecond

// Scheduler owns the periodic flush loop: consult the batch policy, peek the
// coalescing buffer, hand the snapshot to the sink behind the backoff gate,
// and commit the drained keys only after the sink accepts them
// (peek-then-commit, so an outage never loses the last value of a quiet
// symbol). Errors inside the loop are logged, never fatal; the next tick
// retries subject to the gate.
type Scheduler struct {
	buffer   *sheet.CoalescingBuffer
	policy   *sheet.BatchPolicy
	gate     *BackoffGate
	sink     adapters.Sink
	interval time.Duration
	now      func() time.Time
}

func New(buf *sheet.CoalescingBuffer, pol *sheet.BatchPolicy, gate *BackoffGate,
	sink adapters.Sink, interval time.Duration, now func() time.Time) *Scheduler {
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		buffer:   buf,
		policy:   pol,
		gate:     gate,
		sink:     sink,
		interval: interval,
		now:      now,
	}
}

// Run drives the periodic loop until ctx is cancelled, then performs one
// bounded final flush and returns.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	observ.Log("scheduler_started", map[string]any{"interval_ms": s.interval.Milliseconds()})

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), shutdownFlushDeadline)
			if err := s.FlushNow(flushCtx); err != nil {
				observ.Logf("warn", "final_flush_failed", map[string]any{"error": err.Error()})
			}
			cancel()
			observ.Log("scheduler_stopped", nil)
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick performs one scheduling decision. Exported so tests can drive the
// loop with a deterministic clock instead of the real ticker.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.now()
	if !s.policy.ShouldFlush(now) {
		return
	}
	if s.buffer.Len() == 0 {
		// Nothing pending; clear the latch so age accounting restarts.
		s.policy.Reset()
		return
	}
	if !s.gate.Open(now) {
		observ.IncCounter("flushes_skipped_total", nil)
		return
	}
	s.flush(ctx)
}

// FlushNow forces a flush regardless of policy, used on shutdown and by
// operators. The backoff gate still applies: a known-dead sink is not worth
// blocking shutdown on.
func (s *Scheduler) FlushNow(ctx context.Context) error {
	if s.buffer.Len() == 0 {
		return nil
	}
	if !s.gate.Open(s.now()) {
		observ.IncCounter("flushes_skipped_total", nil)
		return fmt.Errorf("sink in backoff (%d consecutive failures)", s.gate.ConsecutiveFailures())
	}
	return s.flush(ctx)
}

func (s *Scheduler) flush(ctx context.Context) error {
	snap := s.buffer.Peek()
	if len(snap.Updates) == 0 {
		return nil
	}

	observ.IncCounter("flushes_attempted_total", nil)
	start := time.Now()
	err := s.writeBatch(ctx, snap.Updates)
	elapsed := time.Since(start)
	observ.RecordDuration("flush_latency", elapsed, nil)

	if err != nil {
		s.gate.RecordFailure(err, s.now())
		return err
	}

	s.gate.RecordSuccess()
	s.buffer.Commit(snap)
	s.policy.Reset()
	observ.IncCounter("flushes_succeeded_total", nil)
	observ.IncCounterBy("cell_updates_flushed_total", nil, float64(len(snap.Updates)))
	return nil
}

// writeBatch isolates the sink call so a panicking sink degrades to an error
// instead of killing the loop.
func (s *Scheduler) writeBatch(ctx context.Context, batch []sheet.CellUpdate) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panic: %v", r)
		}
	}()
	return s.sink.WriteBatch(ctx, batch)
}
