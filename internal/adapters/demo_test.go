package adapters

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChuchoCoder/MarketDataExcelUpdater/internal/marketdata"
)

func TestDemoProducerGeneratesPlausibleTicks(t *testing.T) {
	symbols := []string{"GGAL", "YPFD", "PAMP"}
	p := NewDemoProducer(symbols, 2000, 42)

	collector := newTickCollector()
	require.NoError(t, p.Start(context.Background(), collector.emit))
	ticks := collector.waitFor(t, 50, 5*time.Second)
	require.NoError(t, p.Stop())

	universe := map[string]bool{"GGAL": true, "YPFD": true, "PAMP": true}
	lastSeq := map[string]int64{}
	for i, tk := range ticks[:50] {
		require.True(t, universe[tk.symbol], "tick %d for unknown symbol %s", i, tk.symbol)

		q := tk.quote
		require.NotNil(t, q.Bid)
		require.NotNil(t, q.Ask)
		require.NotNil(t, q.Last)
		assert.LessOrEqual(t, *q.Bid, *q.Ask, "tick %d crossed book", i)
		assert.False(t, q.EventTime.IsZero())

		// Sequences are strictly increasing per symbol (no chaos knobs set).
		if prev, ok := lastSeq[tk.symbol]; ok {
			assert.Equal(t, prev+1, tk.sequence, "tick %d for %s", i, tk.symbol)
		}
		lastSeq[tk.symbol] = tk.sequence
	}
}

func TestDemoProducerChaosGaps(t *testing.T) {
	p := NewDemoProducer([]string{"GGAL"}, 2000, 7)
	p.GapEvery = 5

	collector := newTickCollector()
	require.NoError(t, p.Start(context.Background(), collector.emit))
	ticks := collector.waitFor(t, 20, 5*time.Second)
	require.NoError(t, p.Stop())

	gaps := 0
	var last int64 = marketdata.SequenceNone
	for _, tk := range ticks[:20] {
		if marketdata.Classify(last, tk.sequence) == marketdata.ClassGap {
			gaps++
		}
		last = tk.sequence
	}
	assert.Greater(t, gaps, 0, "gap injection must produce classifier gaps")
}

func TestDemoProducerRequiresSymbols(t *testing.T) {
	p := NewDemoProducer(nil, 100, 1)
	err := p.Start(context.Background(), func(string, marketdata.Quote, int64) error { return nil })
	require.Error(t, err)
}
