package adapters

import (
	"context"

	"github.com/ChuchoCoder/MarketDataExcelUpdater/internal/marketdata"
)

// TickFunc is the core's ingestion entry point handed to producers.
// sequence == marketdata.NoSequence means the feed carries no sequence
// numbers. Producers are expected to keep running when a tick is rejected.
type TickFunc func(symbol string, q marketdata.Quote, sequence int64) error

// Producer delivers ticks into the pipeline from some quote source.
type Producer interface {
	// Start begins delivery, calling emit for every tick until ctx is
	// cancelled or Stop is called. It returns once delivery has begun.
	Start(ctx context.Context, emit TickFunc) error
	// Stop halts delivery and waits for in-flight ticks to finish.
	Stop() error
}
