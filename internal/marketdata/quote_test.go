package marketdata

import (
	"testing"
	"time"
)

func TestSanitizeDropsNegatives(t *testing.T) {
	q := Quote{
		Bid:      Float(-1),
		Ask:      Float(10.5),
		Last:     Float(-0.01),
		Change:   Float(-2.5),
		Volume:   Int(-100),
		High:     Float(11),
		Turnover: Float(-5),
		EventTime: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
	}
	s := q.Sanitize()

	if s.Bid != nil || s.Last != nil || s.Volume != nil || s.Turnover != nil {
		t.Fatalf("negative fields must be coerced to absent: %+v", s)
	}
	if s.Change == nil || *s.Change != -2.5 {
		t.Fatalf("change may be negative, got %v", s.Change)
	}
	if s.Ask == nil || *s.Ask != 10.5 || s.High == nil || *s.High != 11 {
		t.Fatalf("non-negative fields must survive: %+v", s)
	}
	// Receiver untouched.
	if q.Bid == nil || *q.Bid != -1 {
		t.Fatalf("Sanitize must not modify the receiver")
	}
}

func TestParseVariant(t *testing.T) {
	cases := []struct {
		symbol string
		want   VariantTag
	}{
		{"GGAL", VariantSpot},
		{"GGAL - 24hs", VariantSettlement24h},
		{"GGAL - 24HS", VariantSettlement24h},
		{"GGAL - CI", VariantSpot},
		{"GGAL - spot", VariantSpot},
		{"GGAL - 48hs", VariantOther},
		{"AL30 - 24 hs", VariantSettlement24h},
	}
	for _, tc := range cases {
		if got := ParseVariant(tc.symbol); got != tc.want {
			t.Errorf("ParseVariant(%q) = %s, want %s", tc.symbol, got, tc.want)
		}
	}
}
