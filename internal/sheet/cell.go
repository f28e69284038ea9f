package sheet

import (
	"fmt"
	"time"
)

// Sheet names used by the dispatcher.
const (
	SheetMarketData = "MarketData"
	SheetMetrics    = "Metrics"
)

// MetricsRowIndex is the fixed heartbeat row on the Metrics sheet.
const MetricsRowIndex = 2

// Column names are human-readable, case-sensitive tags. Sinks resolve a name
// to a physical column and create unknown names by appending at the end of
// the sheet; they never interpret names as spreadsheet-letter coordinates.
const (
	ColSymbol     = "Symbol"
	ColLastUpdate = "LastUpdate"
	ColIsStale    = "IsStale"
	ColGapCount   = "GapCount"
	ColSequence   = "Sequence"
	ColLast       = "Last"
	ColBid        = "Bid"
	ColAsk        = "Ask"
	ColBidSize    = "BidSize"
	ColAskSize    = "AskSize"
	ColVolume     = "Volume"
	ColChange     = "Change"
	ColOpen       = "Open"
	ColHigh       = "High"
	ColLow        = "Low"

	ColTimestamp                = "Timestamp"
	ColTotalQuotes              = "TotalQuotes"
	ColTotalGaps                = "TotalGaps"
	ColStaleCount               = "StaleCount"
	ColInstrumentCount          = "InstrumentCount"
	ColRetentionTotalEvicted    = "RetentionTotalEvicted"
	ColRetentionLastEvictionUtc = "RetentionLastEvictionUtc"
	ColRetentionLastBatch       = "RetentionLastBatchEvicted"
)

// CellAddress names one cell as (sheet, column-name, row).
type CellAddress struct {
	Sheet  string
	Column string
	Row    int
}

func (a CellAddress) String() string {
	return fmt.Sprintf("%s!%s@%d", a.Sheet, a.Column, a.Row)
}

// ValueKind tags the union of cell value types.
type ValueKind int

const (
	KindAbsent ValueKind = iota
	KindText
	KindInt
	KindDecimal
	KindBool
	KindInstant
)

// CellValue is a tagged union over {text, integer, decimal, boolean,
// instant, absent}.
type CellValue struct {
	Kind    ValueKind
	Text    string
	Int     int64
	Decimal float64
	Bool    bool
	Instant time.Time
}

func Absent() CellValue               { return CellValue{Kind: KindAbsent} }
func Text(v string) CellValue         { return CellValue{Kind: KindText, Text: v} }
func Int(v int64) CellValue           { return CellValue{Kind: KindInt, Int: v} }
func Decimal(v float64) CellValue     { return CellValue{Kind: KindDecimal, Decimal: v} }
func Bool(v bool) CellValue           { return CellValue{Kind: KindBool, Bool: v} }
func Instant(v time.Time) CellValue   { return CellValue{Kind: KindInstant, Instant: v} }

// Interface returns the dynamic value for sinks that take any.
func (v CellValue) Interface() any {
	switch v.Kind {
	case KindText:
		return v.Text
	case KindInt:
		return v.Int
	case KindDecimal:
		return v.Decimal
	case KindBool:
		return v.Bool
	case KindInstant:
		return v.Instant
	default:
		return nil
	}
}

// CellUpdate is one pending write of a typed value to a cell address.
type CellUpdate struct {
	Address CellAddress
	Value   CellValue
}
