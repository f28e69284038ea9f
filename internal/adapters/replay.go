package adapters

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ChuchoCoder/MarketDataExcelUpdater/internal/marketdata"
	"github.com/ChuchoCoder/MarketDataExcelUpdater/internal/observ"
)

// replayTick is one line of a JSON-lines tick fixture.
type replayTick struct {
	Symbol     string    `json:"symbol"`
	Bid        *float64  `json:"bid,omitempty"`
	BidSize    *float64  `json:"bid_size,omitempty"`
	Ask        *float64  `json:"ask,omitempty"`
	AskSize    *float64  `json:"ask_size,omitempty"`
	Last       *float64  `json:"last,omitempty"`
	Change     *float64  `json:"change,omitempty"`
	Open       *float64  `json:"open,omitempty"`
	High       *float64  `json:"high,omitempty"`
	Low        *float64  `json:"low,omitempty"`
	Volume     *int64    `json:"volume,omitempty"`
	Operations *int64    `json:"operations,omitempty"`
	EventTime  time.Time `json:"event_time"`
	Sequence   *int64    `json:"sequence,omitempty"`
}

// ReplayProducer reads ticks from a JSON-lines fixture file and delivers
// them either as fast as possible or paced by the recorded inter-tick
// event-time deltas.
type ReplayProducer struct {
	path  string
	paced bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewReplayProducer(path string, paced bool) *ReplayProducer {
	return &ReplayProducer{path: path, paced: paced}
}

func (p *ReplayProducer) Start(ctx context.Context, emit TickFunc) error {
	f, err := os.Open(p.path)
	if err != nil {
		return fmt.Errorf("open replay file: %w", err)
	}
	ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer f.Close()

		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		var prev time.Time
		lineNo := 0
		delivered := 0
		for scanner.Scan() {
			lineNo++
			select {
			case <-ctx.Done():
				return
			default:
			}

			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			var t replayTick
			if err := json.Unmarshal(line, &t); err != nil {
				observ.Logf("warn", "replay_bad_line", map[string]any{"line": lineNo, "error": err.Error()})
				continue
			}
			if t.Symbol == "" {
				observ.Logf("warn", "replay_bad_line", map[string]any{"line": lineNo, "error": "missing symbol"})
				continue
			}

			if p.paced && !prev.IsZero() {
				if delta := t.EventTime.Sub(prev); delta > 0 {
					select {
					case <-ctx.Done():
						return
					case <-time.After(delta):
					}
				}
			}
			prev = t.EventTime

			seq := marketdata.NoSequence
			if t.Sequence != nil {
				seq = *t.Sequence
			}
			q := marketdata.Quote{
				Bid: t.Bid, BidSize: t.BidSize, Ask: t.Ask, AskSize: t.AskSize,
				Last: t.Last, Change: t.Change, Open: t.Open, High: t.High, Low: t.Low,
				Volume: t.Volume, Operations: t.Operations, EventTime: t.EventTime,
			}
			if err := emit(t.Symbol, q, seq); err != nil {
				observ.Logf("debug", "replay_tick_dropped", map[string]any{
					"symbol": t.Symbol, "line": lineNo, "error": err.Error(),
				})
			}
			delivered++
		}
		if err := scanner.Err(); err != nil {
			observ.Logf("warn", "replay_scan_error", map[string]any{"error": err.Error()})
		}
		observ.Log("replay_complete", map[string]any{"lines": lineNo, "delivered": delivered})
	}()
	return nil
}

func (p *ReplayProducer) Stop() error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	return nil
}
