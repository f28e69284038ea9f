package dispatch

import (
	"errors"
	"sync"
	"time"

	"github.com/ChuchoCoder/MarketDataExcelUpdater/internal/marketdata"
	"github.com/ChuchoCoder/MarketDataExcelUpdater/internal/observ"
	"github.com/ChuchoCoder/MarketDataExcelUpdater/internal/sheet"
)

// Result reports what one Process call did with a tick.
type Result struct {
	Accepted       bool
	Classification marketdata.Classification
	GapsSoFar      int64
	RowIndex       int
	Created        bool
}

// Dispatcher is the producer-facing entry point of the pipeline. One Process
// call updates the instrument registry, retention store, and freshness
// tracker, then enqueues cell writes into the coalescing buffer. The whole
// step runs under one short-held mutex so producers may call from any number
// of goroutines; nothing in the path suspends or waits on the sink.
type Dispatcher struct {
	mu        sync.Mutex
	registry  *marketdata.Registry
	retention *marketdata.RetentionStore
	freshness *marketdata.FreshnessTracker
	buffer    *sheet.CoalescingBuffer
	policy    *sheet.BatchPolicy

	staleThreshold time.Duration
	now            func() time.Time

	ticksTotal int64
	gapsTotal  int64
}

func New(reg *marketdata.Registry, ret *marketdata.RetentionStore, fresh *marketdata.FreshnessTracker,
	buf *sheet.CoalescingBuffer, pol *sheet.BatchPolicy, staleThreshold time.Duration, now func() time.Time) *Dispatcher {
	if now == nil {
		now = time.Now
	}
	return &Dispatcher{
		registry:       reg,
		retention:      ret,
		freshness:      fresh,
		buffer:         buf,
		policy:         pol,
		staleThreshold: staleThreshold,
		now:            now,
	}
}

// Process applies one tick. sequence == marketdata.NoSequence means the
// producer carries no sequence numbers for this feed.
func (d *Dispatcher) Process(symbol string, q marketdata.Quote, sequence int64) (Result, error) {
	if symbol == "" {
		return Result{}, errors.New("empty symbol")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.ticksTotal++
	observ.IncCounter("ticks_received_total", nil)

	ins, created := d.registry.Resolve(symbol)
	if created {
		observ.Log("instrument_created", map[string]any{
			"symbol": symbol, "row": ins.RowIndex, "variant": string(ins.Variant),
		})
		observ.SetGauge("instrument_count", float64(d.registry.Len()), nil)
	}

	res, err := ins.TryUpdate(q, sequence)
	if err != nil {
		observ.IncCounter("ticks_rejected_total", nil)
		observ.Logf("debug", "tick_rejected", map[string]any{
			"symbol": symbol, "reason": "stale_timestamp",
			"event_time": q.EventTime, "last_update": ins.LastUpdateTime,
		})
		return Result{Classification: res.Classification, GapsSoFar: res.GapsSoFar, RowIndex: ins.RowIndex, Created: created}, err
	}
	if res.Classification == marketdata.ClassDuplicate {
		observ.IncCounter("ticks_duplicate_total", nil)
		observ.Logf("debug", "tick_duplicate", map[string]any{"symbol": symbol, "sequence": sequence})
		return Result{Accepted: true, Classification: res.Classification, GapsSoFar: res.GapsSoFar, RowIndex: ins.RowIndex, Created: created}, nil
	}
	if res.Classification == marketdata.ClassGap {
		d.gapsTotal++
		observ.IncCounter("sequence_gaps_total", nil)
		observ.Logf("warn", "sequence_gap", map[string]any{
			"symbol": symbol, "sequence": sequence, "gaps_so_far": res.GapsSoFar,
		})
	}

	d.freshness.Observe(symbol, q.EventTime)
	report := d.retention.OnNewTick(symbol, sequence, q.EventTime)
	if report.EvictedThisCall > 0 {
		observ.IncCounterBy("retention_evicted_total", nil, float64(report.EvictedThisCall))
	}

	now := d.now()
	d.enqueueInstrumentCells(ins, now)
	d.policy.Record(symbol, now)

	return Result{Accepted: true, Classification: res.Classification, GapsSoFar: res.GapsSoFar, RowIndex: ins.RowIndex, Created: created}, nil
}

// enqueueInstrumentCells writes one update per market-data field present in
// the stored quote plus the management cells, all at the instrument's row.
func (d *Dispatcher) enqueueInstrumentCells(ins *marketdata.Instrument, now time.Time) {
	row := ins.RowIndex
	q := ins.LastQuote

	put := func(column string, v sheet.CellValue) {
		d.buffer.Enqueue(sheet.CellUpdate{
			Address: sheet.CellAddress{Sheet: sheet.SheetMarketData, Column: column, Row: row},
			Value:   v,
		}, now)
	}

	for _, f := range []struct {
		column string
		value  *float64
	}{
		{sheet.ColLast, q.Last},
		{sheet.ColBid, q.Bid},
		{sheet.ColAsk, q.Ask},
		{sheet.ColBidSize, q.BidSize},
		{sheet.ColAskSize, q.AskSize},
		{sheet.ColChange, q.Change},
		{sheet.ColOpen, q.Open},
		{sheet.ColHigh, q.High},
		{sheet.ColLow, q.Low},
	} {
		if f.value != nil {
			put(f.column, sheet.Decimal(*f.value))
		}
	}
	if q.Volume != nil {
		put(sheet.ColVolume, sheet.Int(*q.Volume))
	}

	put(sheet.ColSymbol, sheet.Text(ins.Symbol))
	put(sheet.ColLastUpdate, sheet.Instant(ins.LastUpdateTime))
	put(sheet.ColIsStale, sheet.Bool(ins.Stale))
	put(sheet.ColGapCount, sheet.Int(ins.GapCount))
	if ins.LastSequence != marketdata.SequenceNone {
		put(sheet.ColSequence, sheet.Int(ins.LastSequence))
	} else {
		put(sheet.ColSequence, sheet.Absent())
	}
}

// SweepFreshness runs the stale/recovered transitions and enqueues IsStale
// cell updates for every instrument whose flag changed. Driven by the
// heartbeat task.
func (d *Dispatcher) SweepFreshness(now time.Time) (newlyStale, recovered []string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	staleSet := d.freshness.DrainNewlyStale(d.staleThreshold, now)
	recovered = d.freshness.DrainRecovered()

	inStale := make(map[string]bool, len(staleSet))
	for _, s := range staleSet {
		inStale[s] = true
	}

	for _, symbol := range staleSet {
		ins, ok := d.registry.Get(symbol)
		if !ok || ins.Stale {
			continue
		}
		ins.Stale = true
		newlyStale = append(newlyStale, symbol)
		d.enqueueStaleCell(ins, now)
		observ.Logf("warn", "instrument_stale", map[string]any{
			"symbol": symbol, "last_update": ins.LastUpdateTime,
		})
	}
	for _, symbol := range recovered {
		ins, ok := d.registry.Get(symbol)
		if !ok || !ins.Stale || inStale[symbol] {
			continue
		}
		ins.Stale = false
		d.enqueueStaleCell(ins, now)
		observ.Log("instrument_recovered", map[string]any{"symbol": symbol})
	}

	if len(newlyStale) > 0 || len(recovered) > 0 {
		d.policy.Record("", now)
	}
	observ.SetGauge("stale_instruments", float64(d.freshness.StaleCount()), nil)
	return newlyStale, recovered
}

func (d *Dispatcher) enqueueStaleCell(ins *marketdata.Instrument, now time.Time) {
	d.buffer.Enqueue(sheet.CellUpdate{
		Address: sheet.CellAddress{Sheet: sheet.SheetMarketData, Column: sheet.ColIsStale, Row: ins.RowIndex},
		Value:   sheet.Bool(ins.Stale),
	}, now)
}

// QueueHeartbeat enqueues the cumulative counters and latest retention
// metrics into the fixed heartbeat row on the Metrics sheet.
func (d *Dispatcher) QueueHeartbeat(now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	totalEvicted, lastEvictionAt, lastBatch := d.retention.Totals()

	put := func(column string, v sheet.CellValue) {
		d.buffer.Enqueue(sheet.CellUpdate{
			Address: sheet.CellAddress{Sheet: sheet.SheetMetrics, Column: column, Row: sheet.MetricsRowIndex},
			Value:   v,
		}, now)
	}

	put(sheet.ColTimestamp, sheet.Instant(now))
	put(sheet.ColTotalQuotes, sheet.Int(d.ticksTotal))
	put(sheet.ColTotalGaps, sheet.Int(d.gapsTotal))
	put(sheet.ColStaleCount, sheet.Int(int64(d.freshness.StaleCount())))
	put(sheet.ColInstrumentCount, sheet.Int(int64(d.registry.Len())))
	put(sheet.ColRetentionTotalEvicted, sheet.Int(totalEvicted))
	if lastEvictionAt.IsZero() {
		put(sheet.ColRetentionLastEvictionUtc, sheet.Absent())
	} else {
		put(sheet.ColRetentionLastEvictionUtc, sheet.Instant(lastEvictionAt.UTC()))
	}
	put(sheet.ColRetentionLastBatch, sheet.Int(int64(lastBatch)))

	// Heartbeat cells age out of the buffer like any other write.
	d.policy.Record("", now)
}

// Counters returns the cumulative tick and gap totals.
func (d *Dispatcher) Counters() (ticks, gaps int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ticksTotal, d.gapsTotal
}
