package adapters

import (
	"context"

	"github.com/ChuchoCoder/MarketDataExcelUpdater/internal/sheet"
)

// Sink accepts batches of cell writes. Implementations may fail transiently;
// the scheduler's backoff gate owns retry pacing, so sinks should fail fast
// rather than retry internally.
type Sink interface {
	// Open creates or opens the backing document. A failure here is fatal
	// to the process; the core cannot operate without a sink.
	Open(ctx context.Context) error
	// WriteBatch returns once the batch is durably accepted.
	WriteBatch(ctx context.Context, batch []sheet.CellUpdate) error
	// Flush persists previously accepted writes.
	Flush(ctx context.Context) error
	Close(ctx context.Context) error
}
