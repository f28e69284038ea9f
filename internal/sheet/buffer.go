package sheet

import (
	"sync"
	"time"
)

type bufferEntry struct {
	update     CellUpdate
	generation uint64
	enqueuedAt time.Time
}

// CoalescingBuffer is the single interchange between the dispatcher and the
// flush scheduler: a keyed pending-write store with last-write-wins
// semantics. An instrument emitting a hundred ticks per cell between two
// flushes contributes exactly one write per cell to the next flush.
//
// Enqueue and Drain/Peek/Commit are mutually exclusive; the lock is held
// only for map operations, never across a sink call.
type CoalescingBuffer struct {
	mu               sync.Mutex
	entries          map[CellAddress]bufferEntry
	oldestEnqueuedAt time.Time
	generation       uint64
}

func NewCoalescingBuffer() *CoalescingBuffer {
	return &CoalescingBuffer{entries: make(map[CellAddress]bufferEntry)}
}

// Enqueue stores the update, replacing any prior value at the same address.
func (b *CoalescingBuffer) Enqueue(u CellUpdate, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.entries) == 0 {
		b.oldestEnqueuedAt = now
	}
	b.generation++
	b.entries[u.Address] = bufferEntry{update: u, generation: b.generation, enqueuedAt: now}
}

// Len returns the number of pending cell addresses. O(1).
func (b *CoalescingBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// OldestEnqueuedAt returns the time of the first insertion since the buffer
// last went empty, and false when the buffer is empty.
func (b *CoalescingBuffer) OldestEnqueuedAt() (time.Time, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.entries) == 0 {
		return time.Time{}, false
	}
	return b.oldestEnqueuedAt, true
}

// Drain atomically takes every pending update and clears the store. Order of
// the returned slice is arbitrary.
func (b *CoalescingBuffer) Drain() []CellUpdate {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]CellUpdate, 0, len(b.entries))
	for _, e := range b.entries {
		out = append(out, e.update)
	}
	b.entries = make(map[CellAddress]bufferEntry)
	b.oldestEnqueuedAt = time.Time{}
	return out
}

// Snapshot marks a Peek so the peeked entries can later be committed.
type Snapshot struct {
	Updates     []CellUpdate
	generations map[CellAddress]uint64
}

// Peek returns the current pending set without clearing it. The snapshot
// remembers each entry's generation so Commit can tell peeked values apart
// from writes that arrived while the sink call was in flight.
func (b *CoalescingBuffer) Peek() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	snap := Snapshot{
		Updates:     make([]CellUpdate, 0, len(b.entries)),
		generations: make(map[CellAddress]uint64, len(b.entries)),
	}
	for addr, e := range b.entries {
		snap.Updates = append(snap.Updates, e.update)
		snap.generations[addr] = e.generation
	}
	return snap
}

// Commit removes the entries captured by the snapshot, keeping any address
// whose value was overwritten after the Peek. Call only after the sink
// accepted the batch.
func (b *CoalescingBuffer) Commit(snap Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for addr, gen := range snap.generations {
		if e, ok := b.entries[addr]; ok && e.generation == gen {
			delete(b.entries, addr)
		}
	}
	if len(b.entries) == 0 {
		b.oldestEnqueuedAt = time.Time{}
		return
	}
	oldest := time.Time{}
	for _, e := range b.entries {
		if oldest.IsZero() || e.enqueuedAt.Before(oldest) {
			oldest = e.enqueuedAt
		}
	}
	b.oldestEnqueuedAt = oldest
}
