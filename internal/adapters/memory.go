package adapters

import (
	"context"
	"sync"

	"github.com/ChuchoCoder/MarketDataExcelUpdater/internal/sheet"
)

// RecorderSink records batches in memory for tests and demos, with scripted
// failure injection for exercising the backoff gate.
type RecorderSink struct {
	mu       sync.Mutex
	opened   bool
	closed   bool
	batches  [][]sheet.CellUpdate
	flushes  int
	failNext int
	failWith error
}

func NewRecorderSink() *RecorderSink {
	return &RecorderSink{}
}

// FailNext makes the next n WriteBatch calls return err.
func (r *RecorderSink) FailNext(n int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failNext = n
	r.failWith = err
}

func (r *RecorderSink) Open(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opened = true
	return nil
}

func (r *RecorderSink) WriteBatch(ctx context.Context, batch []sheet.CellUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNext > 0 {
		r.failNext--
		return r.failWith
	}
	copied := make([]sheet.CellUpdate, len(batch))
	copy(copied, batch)
	r.batches = append(r.batches, copied)
	return nil
}

func (r *RecorderSink) Flush(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushes++
	return nil
}

func (r *RecorderSink) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// Batches returns a copy of every recorded batch in arrival order.
func (r *RecorderSink) Batches() [][]sheet.CellUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]sheet.CellUpdate, len(r.batches))
	copy(out, r.batches)
	return out
}

// Cells folds all recorded batches into the final value per address.
func (r *RecorderSink) Cells() map[sheet.CellAddress]sheet.CellValue {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[sheet.CellAddress]sheet.CellValue)
	for _, batch := range r.batches {
		for _, u := range batch {
			out[u.Address] = u.Value
		}
	}
	return out
}

// TotalWrites returns the number of individual cell updates recorded.
func (r *RecorderSink) TotalWrites() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, b := range r.batches {
		n += len(b)
	}
	return n
}
