// Package sensors defines the contract between physical sensor
// drivers and the publish core, plus the bank that assembles a named
// reading set once per cycle. Real bus drivers (1-wire, I2C, GPIO)
// live behind the [Source] interface; this package ships simulated
// sources so the daemon runs on a workstation.
package sensors

import (
	"multisense/internal/telemetry"
)

// Source is one physical (or simulated) sensor input. Read never
// blocks the loop on a broken sensor: a failed read returns a reading
// with Valid=false and the loop carries on.
type Source interface {
	// Name is the property name the reading publishes under. Names
	// are unique within a bank.
	Name() string

	// Read returns the current value. Implementations run on the main
	// loop goroutine and need no internal locking beyond whatever
	// their bus requires.
	Read() telemetry.Reading
}

// Bank is the ordered collection of enabled sources. Source order
// fixes the key order of the published payload.
type Bank struct {
	sources []Source
}

// NewBank builds a bank from the given sources.
func NewBank(sources ...Source) *Bank {
	b := &Bank{}
	for _, s := range sources {
		b.Add(s)
	}
	return b
}

// Add appends a source.
func (b *Bank) Add(s Source) {
	b.sources = append(b.sources, s)
}

// Len returns the number of enabled sources.
func (b *Bank) Len() int {
	return len(b.sources)
}

// Names returns the property names in bank order.
func (b *Bank) Names() []string {
	names := make([]string, len(b.sources))
	for i, s := range b.sources {
		names[i] = s.Name()
	}
	return names
}

// Collect reads every source into rs and returns the number of failed
// reads. Property order follows bank order on the first collect and is
// stable afterwards.
func (b *Bank) Collect(rs *telemetry.ReadingSet) int {
	failed := 0
	for _, s := range b.sources {
		r := s.Read()
		if !r.Valid {
			failed++
		}
		rs.Set(s.Name(), r)
	}
	return failed
}
