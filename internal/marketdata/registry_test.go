package marketdata

import (
	"fmt"
	"testing"
)

func TestRegistryRowAssignment(t *testing.T) {
	r := NewRegistry()

	a, created := r.Resolve("AAA")
	if !created || a.RowIndex != 2 {
		t.Fatalf("first symbol gets row 2, got %d (created=%v)", a.RowIndex, created)
	}
	b, _ := r.Resolve("BBB")
	if b.RowIndex != 3 {
		t.Fatalf("second symbol gets row 3, got %d", b.RowIndex)
	}

	// Re-resolving is stable: same instrument, same row.
	again, created := r.Resolve("AAA")
	if created || again != a || again.RowIndex != 2 {
		t.Fatalf("resolve must be stable, got row %d created=%v", again.RowIndex, created)
	}

	// A new symbol never reshuffles existing rows.
	c, _ := r.Resolve("AAA - 24hs")
	if c.RowIndex != 4 || a.RowIndex != 2 || b.RowIndex != 3 {
		t.Fatalf("insertion must not reshuffle rows: %d %d %d", a.RowIndex, b.RowIndex, c.RowIndex)
	}
	if c.Variant != VariantSettlement24h {
		t.Fatalf("variant derived on create, got %s", c.Variant)
	}
}

func TestRegistryRowsUnique(t *testing.T) {
	r := NewRegistry()
	rows := map[int]string{}
	for i := 0; i < 50; i++ {
		sym := fmt.Sprintf("SYM%02d", i)
		ins, _ := r.Resolve(sym)
		if prev, clash := rows[ins.RowIndex]; clash {
			t.Fatalf("row %d assigned to both %s and %s", ins.RowIndex, prev, sym)
		}
		rows[ins.RowIndex] = sym
	}
	if r.Len() != 50 {
		t.Fatalf("len %d, want 50", r.Len())
	}
	if syms := r.Symbols(); syms[0] != "SYM00" || syms[49] != "SYM49" {
		t.Fatalf("symbols must keep insertion order")
	}
}
