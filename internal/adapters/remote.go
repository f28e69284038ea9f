package adapters

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ChuchoCoder/MarketDataExcelUpdater/internal/marketdata"
	"github.com/ChuchoCoder/MarketDataExcelUpdater/internal/observ"
)

// RemoteFeedConfig tunes the websocket feed's reconnect behavior.
type RemoteFeedConfig struct {
	URL            string
	InitialDelay   time.Duration // first reconnect delay, default 500ms
	MaxDelay       time.Duration // reconnect delay ceiling, default 30s
	Jitter         time.Duration // random addition per attempt, default 250ms
	HandshakeLimit time.Duration // dial timeout, default 10s
}

func (c *RemoteFeedConfig) fillDefaults() {
	if c.InitialDelay <= 0 {
		c.InitialDelay = 500 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.Jitter <= 0 {
		c.Jitter = 250 * time.Millisecond
	}
	if c.HandshakeLimit <= 0 {
		c.HandshakeLimit = 10 * time.Second
	}
}

// RemoteFeed consumes a JSON tick stream over a websocket, reconnecting with
// jittered exponential backoff. Ticks without a sequence number are
// delivered with the no-sequence sentinel.
type RemoteFeed struct {
	cfg RemoteFeedConfig

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRemoteFeed(cfg RemoteFeedConfig) *RemoteFeed {
	cfg.fillDefaults()
	return &RemoteFeed{cfg: cfg}
}

func (r *RemoteFeed) Start(ctx context.Context, emit TickFunc) error {
	ctx, r.cancel = context.WithCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.run(ctx, emit)
	}()
	return nil
}

func (r *RemoteFeed) run(ctx context.Context, emit TickFunc) {
	delay := r.cfg.InitialDelay
	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := r.dial(ctx)
		if err != nil {
			observ.Logf("warn", "feed_dial_failed", map[string]any{
				"url": r.cfg.URL, "retry_in_ms": delay.Milliseconds(), "error": err.Error(),
			})
			if !sleepCtx(ctx, delay+time.Duration(rand.Int63n(int64(r.cfg.Jitter)))) {
				return
			}
			delay *= 2
			if delay > r.cfg.MaxDelay {
				delay = r.cfg.MaxDelay
			}
			continue
		}

		observ.Log("feed_connected", map[string]any{"url": r.cfg.URL})
		delay = r.cfg.InitialDelay

		r.consume(ctx, conn, emit)
		_ = conn.Close()

		if ctx.Err() != nil {
			return
		}
		observ.IncCounter("feed_reconnects_total", nil)
		observ.Logf("info", "feed_reconnecting", map[string]any{"url": r.cfg.URL})
	}
}

func (r *RemoteFeed) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: r.cfg.HandshakeLimit}
	dialCtx, cancel := context.WithTimeout(ctx, r.cfg.HandshakeLimit)
	defer cancel()
	conn, _, err := dialer.DialContext(dialCtx, r.cfg.URL, nil)
	return conn, err
}

// consume reads frames until the connection breaks or ctx is cancelled.
func (r *RemoteFeed) consume(ctx context.Context, conn *websocket.Conn, emit TickFunc) {
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				observ.Logf("warn", "feed_read_error", map[string]any{"error": err.Error()})
			}
			return
		}

		var t replayTick // same wire shape as the replay fixtures
		if err := json.Unmarshal(data, &t); err != nil {
			observ.Logf("warn", "feed_bad_frame", map[string]any{"error": err.Error()})
			continue
		}
		if t.Symbol == "" {
			continue
		}
		if t.EventTime.IsZero() {
			t.EventTime = time.Now()
		}

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
			observ.Logf("debug", "feed_tick_dropped", map[string]any{
				"symbol": t.Symbol, "error": err.Error(),
			})
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func (r *RemoteFeed) Stop() error {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	return nil
}
