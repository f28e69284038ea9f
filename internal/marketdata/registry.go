package marketdata

// FirstRowIndex is the first spreadsheet row available to instruments;
// row 1 is the header.
const FirstRowIndex = 2

// Registry owns the symbol -> instrument map and row assignment. Instruments
// are created on first observation and live for the process lifetime; there
// is no deletion, only stale-flagging. The registry itself is not locked --
// the dispatcher serializes all access inside its critical section.
type Registry struct {
	instruments map[string]*Instrument
	order       []string // insertion order, drives row assignment
	nextRow     int
}

func NewRegistry() *Registry {
	return &Registry{
		instruments: make(map[string]*Instrument),
		nextRow:     FirstRowIndex,
	}
}

// Resolve returns the instrument for symbol, creating it with the next free
// row on first observation. Rows are assigned in insertion order and never
// reshuffled, so a row written once stays bound to its symbol for the
// process lifetime.
func (r *Registry) Resolve(symbol string) (*Instrument, bool) {
	if ins, ok := r.instruments[symbol]; ok {
		return ins, false
	}
	ins := newInstrument(symbol, r.nextRow)
	r.nextRow++
	r.instruments[symbol] = ins
	r.order = append(r.order, symbol)
	return ins, true
}

// Get returns the instrument for symbol without creating it.
func (r *Registry) Get(symbol string) (*Instrument, bool) {
	ins, ok := r.instruments[symbol]
	return ins, ok
}

// Len returns the number of live instruments.
func (r *Registry) Len() int { return len(r.instruments) }

// Symbols returns the tracked symbols in insertion order.
func (r *Registry) Symbols() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
