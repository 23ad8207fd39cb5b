// Package telemetry implements the sensor-node publish core: named
// reading sets, the last-published snapshot, change detection at wire
// precision, and the dual-deadline publish scheduler.
package telemetry

import "math"

// Kind identifies how a reading value is interpreted and encoded.
type Kind int

const (
	// Int readings encode as plain integers (lux counts, percentages).
	Int Kind = iota
	// Float readings encode rounded to the nearest integer. The raw
	// value keeps full sensor resolution; only the wire form rounds.
	Float
	// Bool readings encode as 0 or 1 (switch and motion inputs).
	Bool
)

// Sentinel values published in place of a failed reading. Consumers
// that want strict semantics should key off Valid; the sentinel exists
// for wire compatibility with installed dashboards.
const (
	SentinelInt   = 999
	SentinelFloat = 999.99
)

// Reading is one named property's current value together with whether
// the read that produced it succeeded. Value holds bools as 0/1.
type Reading struct {
	Kind  Kind
	Value float64
	Valid bool
}

// IntReading returns a valid integer reading.
func IntReading(v int) Reading {
	return Reading{Kind: Int, Value: float64(v), Valid: true}
}

// FloatReading returns a valid floating-point reading.
func FloatReading(v float64) Reading {
	return Reading{Kind: Float, Value: v, Valid: true}
}

// BoolReading returns a valid boolean reading.
func BoolReading(v bool) Reading {
	r := Reading{Kind: Bool, Valid: true}
	if v {
		r.Value = 1
	}
	return r
}

// Invalid returns a failed reading of the given kind. The value field
// carries the wire sentinel so diagnostic dumps match the payload.
func Invalid(kind Kind) Reading {
	r := Reading{Kind: kind, Valid: false, Value: SentinelInt}
	if kind == Float {
		r.Value = SentinelFloat
	}
	return r
}

// wireInt returns the integer a valid reading encodes to. Floats round
// to the nearest integer here; this is also the precision at which
// change detection compares values.
func (r Reading) wireInt() int {
	switch r.Kind {
	case Bool:
		if r.Value != 0 {
			return 1
		}
		return 0
	case Float:
		return int(math.Round(r.Value))
	default:
		return int(r.Value)
	}
}

// EqualAtWirePrecision reports whether two readings are
// indistinguishable on the wire. Two invalid readings are always equal
// regardless of their raw values, so a sensor that stays disconnected
// produces no repeated change events.
func (r Reading) EqualAtWirePrecision(o Reading) bool {
	if r.Valid != o.Valid {
		return false
	}
	if !r.Valid {
		return true
	}
	return r.wireInt() == o.wireInt()
}

// ReadingSet is a named collection of current readings. Name insertion
// order is preserved so the encoded payload has a stable key order
// across cycles. Not safe for concurrent use; it is owned by the
// per-cycle read step.
type ReadingSet struct {
	names  []string
	values map[string]Reading
}

// NewReadingSet returns an empty reading set.
func NewReadingSet() *ReadingSet {
	return &ReadingSet{values: make(map[string]Reading)}
}

// Set records a reading under name, appending the name on first use.
func (s *ReadingSet) Set(name string, r Reading) {
	if _, seen := s.values[name]; !seen {
		s.names = append(s.names, name)
	}
	s.values[name] = r
}

// Get returns the reading for name.
func (s *ReadingSet) Get(name string) (Reading, bool) {
	r, ok := s.values[name]
	return r, ok
}

// Names returns property names in insertion order. The returned slice
// is shared; callers must not modify it.
func (s *ReadingSet) Names() []string {
	return s.names
}

// Len returns the number of properties in the set.
func (s *ReadingSet) Len() int {
	return len(s.names)
}
