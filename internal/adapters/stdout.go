package adapters

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/ChuchoCoder/MarketDataExcelUpdater/internal/sheet"
)

// StdoutSink prints one JSON line per batch, for piping and demos.
type StdoutSink struct {
	enc *json.Encoder
}

func NewStdoutSink() *StdoutSink {
	return &StdoutSink{enc: json.NewEncoder(os.Stdout)}
}

type stdoutCell struct {
	Sheet  string `json:"sheet"`
	Column string `json:"column"`
	Row    int    `json:"row"`
	Value  any    `json:"value"`
}

type stdoutBatch struct {
	Ts    string       `json:"ts"`
	Event string       `json:"event"`
	Cells []stdoutCell `json:"cells"`
}

func (s *StdoutSink) Open(ctx context.Context) error { return nil }

func (s *StdoutSink) WriteBatch(ctx context.Context, batch []sheet.CellUpdate) error {
	out := stdoutBatch{
		Ts:    time.Now().UTC().Format(time.RFC3339Nano),
		Event: "cell_batch",
		Cells: make([]stdoutCell, 0, len(batch)),
	}
	for _, u := range batch {
		out.Cells = append(out.Cells, stdoutCell{
			Sheet:  u.Address.Sheet,
			Column: u.Address.Column,
			Row:    u.Address.Row,
			Value:  u.Value.Interface(),
		})
	}
	return s.enc.Encode(out)
}

func (s *StdoutSink) Flush(ctx context.Context) error { return nil }

func (s *StdoutSink) Close(ctx context.Context) error { return nil }
