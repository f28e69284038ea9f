package marketdata

import (
	"strings"
	"time"
)

// Quote is an immutable snapshot of one instrument's market-data fields at an
// event time. Optional fields are nil when the feed did not carry them.
type Quote struct {
	Bid           *float64  `json:"bid,omitempty"`
	BidSize       *float64  `json:"bid_size,omitempty"`
	Ask           *float64  `json:"ask,omitempty"`
	AskSize       *float64  `json:"ask_size,omitempty"`
	Last          *float64  `json:"last,omitempty"`
	Change        *float64  `json:"change,omitempty"` // May be negative
	Open          *float64  `json:"open,omitempty"`
	High          *float64  `json:"high,omitempty"`
	Low           *float64  `json:"low,omitempty"`
	PreviousClose *float64  `json:"previous_close,omitempty"`
	Turnover      *float64  `json:"turnover,omitempty"`
	Volume        *int64    `json:"volume,omitempty"`
	Operations    *int64    `json:"operations,omitempty"`
	EventTime     time.Time `json:"event_time"`
}

// Sanitize coerces negative values to absent on every field except Change,
// which legitimately goes negative. Returns a copy; the receiver is not
// modified.
func (q Quote) Sanitize() Quote {
	q.Bid = dropNegative(q.Bid)
	q.BidSize = dropNegative(q.BidSize)
	q.Ask = dropNegative(q.Ask)
	q.AskSize = dropNegative(q.AskSize)
	q.Last = dropNegative(q.Last)
	q.Open = dropNegative(q.Open)
	q.High = dropNegative(q.High)
	q.Low = dropNegative(q.Low)
	q.PreviousClose = dropNegative(q.PreviousClose)
	q.Turnover = dropNegative(q.Turnover)
	q.Volume = dropNegativeInt(q.Volume)
	q.Operations = dropNegativeInt(q.Operations)
	return q
}

func dropNegative(v *float64) *float64 {
	if v != nil && *v < 0 {
		return nil
	}
	return v
}

func dropNegativeInt(v *int64) *int64 {
	if v != nil && *v < 0 {
		return nil
	}
	return v
}

// Float is a convenience constructor for optional decimal fields.
func Float(v float64) *float64 { return &v }

// Int is a convenience constructor for optional integer fields.
func Int(v int64) *int64 { return &v }

// VariantTag identifies the settlement variant encoded in a symbol name.
type VariantTag string

const (
	VariantSpot          VariantTag = "spot"
	VariantSettlement24h VariantTag = "settlement-24h"
	VariantOther         VariantTag = "other"
)

// ParseVariant derives the settlement variant from the symbol convention:
// a " - 24hs" suffix marks 24-hour settlement, a bare symbol or " - CI"/" - spot"
// suffix is spot, and any other dash suffix is tagged other.
func ParseVariant(symbol string) VariantTag {
	idx := strings.LastIndex(symbol, " - ")
	if idx < 0 {
		return VariantSpot
	}
	switch strings.ToLower(strings.TrimSpace(symbol[idx+3:])) {
	case "24hs", "24 hs":
		return VariantSettlement24h
	case "ci", "spot":
		return VariantSpot
	default:
		return VariantOther
	}
}
