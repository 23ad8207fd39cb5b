package sensors

import (
	"sync/atomic"

	"multisense/internal/telemetry"
)

// Latch is the edge-event flag for motion and contact inputs. It
// mirrors the interrupt-service-routine flag on the hardware boards:
// the producer (a hardware edge callback, or any goroutine) only ever
// sets it, and the main loop is the single consumer that reads and
// clears it once per cycle. There is no read-modify-write shared
// between the two sides.
type Latch struct {
	flag atomic.Bool
}

// Trip records that an edge occurred. Safe to call from any goroutine;
// repeated trips before the next Consume collapse into one event.
func (l *Latch) Trip() {
	l.flag.Store(true)
}

// Consume returns whether an edge occurred since the last call and
// clears the latch. Only the main loop may call this.
func (l *Latch) Consume() bool {
	return l.flag.Swap(false)
}

// Motion is a boolean source fed by a latch plus an optional level
// probe. A latched edge reports 1 for the cycle that consumes it even
// if the line level has already dropped, so short pulses are never
// lost between evaluations.
type Motion struct {
	name  string
	latch *Latch
	level func() bool
}

// NewMotion builds a motion source. level may be nil when the input is
// purely edge-driven.
func NewMotion(name string, latch *Latch, level func() bool) *Motion {
	return &Motion{name: name, latch: latch, level: level}
}

// Latch exposes the producer side for wiring to an edge callback.
func (m *Motion) Latch() *Latch {
	return m.latch
}

func (m *Motion) Name() string {
	return m.name
}

func (m *Motion) Read() telemetry.Reading {
	tripped := m.latch.Consume()
	if !tripped && m.level != nil {
		tripped = m.level()
	}
	return telemetry.BoolReading(tripped)
}
