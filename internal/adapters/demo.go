package adapters

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ChuchoCoder/MarketDataExcelUpdater/internal/marketdata"
	"github.com/ChuchoCoder/MarketDataExcelUpdater/internal/observ"
)

// DemoProducer generates random-walk quotes for a fixed symbol universe,
// paced by a token bucket so the pipeline sees a steady configurable tick
// rate. Sequence numbers are monotone per symbol; the chaos knobs inject
// gaps and duplicates to exercise the classifier.
type DemoProducer struct {
	symbols        []string
	ticksPerSecond float64
	seed           int64

	// Chaos knobs, 0 disables.
	GapEvery       int // every Nth tick per symbol skips two sequence numbers
	DuplicateEvery int // every Nth tick per symbol repeats the last sequence

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type demoState struct {
	price      float64
	volatility float64
	volume     int64
	sequence   int64
	tickCount  int
}

func NewDemoProducer(symbols []string, ticksPerSecond float64, seed int64) *DemoProducer {
	return &DemoProducer{
		symbols:        symbols,
		ticksPerSecond: ticksPerSecond,
		seed:           seed,
	}
}

func (p *DemoProducer) Start(ctx context.Context, emit TickFunc) error {
	if len(p.symbols) == 0 {
		return fmt.Errorf("demo producer needs at least one symbol")
	}
	ctx, p.cancel = context.WithCancel(ctx)

	rng := rand.New(rand.NewSource(p.seed))
	states := make(map[string]*demoState, len(p.symbols))
	for _, s := range p.symbols {
		states[s] = &demoState{
			price:      20 + rng.Float64()*480,
			volatility: 0.015 + rng.Float64()*0.03,
			volume:     int64(100_000 + rng.Intn(5_000_000)),
		}
	}

	limiter := rate.NewLimiter(rate.Limit(p.ticksPerSecond), 1)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		observ.Log("demo_producer_started", map[string]any{
			"symbols": len(p.symbols), "ticks_per_second": p.ticksPerSecond,
		})
		for {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			symbol := p.symbols[rng.Intn(len(p.symbols))]
			st := states[symbol]
			q, seq := p.nextTick(st, rng)
			if err := emit(symbol, q, seq); err != nil {
				// Rejections are part of normal operation; keep producing.
				observ.Logf("debug", "demo_tick_dropped", map[string]any{
					"symbol": symbol, "error": err.Error(),
				})
			}
		}
	}()
	return nil
}

func (p *DemoProducer) nextTick(st *demoState, rng *rand.Rand) (marketdata.Quote, int64) {
	st.tickCount++

	// Per-minute volatility from the daily figure, 390 trading minutes.
	minuteVol := st.volatility / math.Sqrt(390)
	st.price *= 1 + rng.NormFloat64()*minuteVol
	if st.price < 0.01 {
		st.price = 0.01
	}

	spread := st.price * (0.0002 + rng.Float64()*0.0006)
	bid := roundTick(st.price - spread/2)
	ask := roundTick(st.price + spread/2)
	last := roundTick(st.price + (rng.Float64()-0.5)*spread)
	st.volume += int64(rng.Intn(5000))

	q := marketdata.Quote{
		Bid:       marketdata.Float(bid),
		Ask:       marketdata.Float(ask),
		Last:      marketdata.Float(last),
		BidSize:   marketdata.Float(float64(100 + rng.Intn(900))),
		AskSize:   marketdata.Float(float64(100 + rng.Intn(900))),
		Volume:    marketdata.Int(st.volume),
		EventTime: time.Now(),
	}

	st.sequence++
	seq := st.sequence
	if p.GapEvery > 0 && st.tickCount%p.GapEvery == 0 {
		st.sequence += 2
		seq = st.sequence
	} else if p.DuplicateEvery > 0 && st.tickCount%p.DuplicateEvery == 0 && seq > 1 {
		st.sequence--
		seq = st.sequence
	}
	return q, seq
}

func roundTick(v float64) float64 {
	return math.Round(v*100) / 100
}

func (p *DemoProducer) Stop() error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	return nil
}
