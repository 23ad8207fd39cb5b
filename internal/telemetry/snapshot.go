package telemetry

// Snapshot holds the last-published reading for every property name
// the node has ever published. It lives for the process lifetime and
// is mutated only immediately after a successful publish, so after any
// publish it mirrors the reading set for every key present at that
// moment.
type Snapshot struct {
	values map[string]Reading
}

// NewSnapshot returns an empty snapshot. An empty snapshot makes every
// property in the first reading set dirty, which guarantees an initial
// publish after boot.
func NewSnapshot() *Snapshot {
	return &Snapshot{values: make(map[string]Reading)}
}

// Get returns the last-published reading for name.
func (s *Snapshot) Get(name string) (Reading, bool) {
	r, ok := s.values[name]
	return r, ok
}

// Update copies every property of the just-published reading set into
// the snapshot. Names absent from rs keep their previous value; the
// key space only grows.
func (s *Snapshot) Update(rs *ReadingSet) {
	for _, name := range rs.Names() {
		r, _ := rs.Get(name)
		s.values[name] = r
	}
}

// Len returns the number of tracked properties.
func (s *Snapshot) Len() int {
	return len(s.values)
}

// Dirty reports whether current differs from the last published
// snapshot: a property is newly present, its validity flag changed, or
// its value changed at wire precision. Floats are compared after
// rounding to the unit of the published JSON field, which debounces
// raw sensor jitter below the externally observable resolution.
//
// Dirty is a pure comparison; it never mutates the snapshot.
func Dirty(current *ReadingSet, last *Snapshot) bool {
	for _, name := range current.Names() {
		r, _ := current.Get(name)
		prev, ok := last.Get(name)
		if !ok || !r.EqualAtWirePrecision(prev) {
			return true
		}
	}
	return false
}
