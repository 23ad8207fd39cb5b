package sensors

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"multisense/internal/telemetry"
)

// Simulated sources for running the daemon without hardware. Each one
// stands in for a driver the node would normally talk to over 1-wire,
// I2C or a GPIO line.

// SimFloat is a bounded random walk, used for temperature and
// humidity style channels.
type SimFloat struct {
	name     string
	min, max float64
	step     float64

	mu    sync.Mutex
	value float64
	rng   *rand.Rand
}

// NewSimFloat builds a random-walk source starting midway between min
// and max, moving by at most step per read.
func NewSimFloat(name string, min, max, step float64, seed int64) *SimFloat {
	return &SimFloat{
		name:  name,
		min:   min,
		max:   max,
		step:  step,
		value: (min + max) / 2,
		rng:   rand.New(rand.NewSource(seed)),
	}
}

func (s *SimFloat) Name() string {
	return s.name
}

func (s *SimFloat) Read() telemetry.Reading {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.value += (s.rng.Float64()*2 - 1) * s.step
	if s.value < s.min {
		s.value = s.min
	}
	if s.value > s.max {
		s.value = s.max
	}
	return telemetry.FloatReading(s.value)
}

// SimLux is an integer random walk over the 0..1023 ADC range.
type SimLux struct {
	inner *SimFloat
}

// NewSimLux builds a simulated illumination source.
func NewSimLux(name string, seed int64) *SimLux {
	return &SimLux{inner: NewSimFloat(name, 0, 1023, 25, seed)}
}

func (s *SimLux) Name() string {
	return s.inner.Name()
}

func (s *SimLux) Read() telemetry.Reading {
	r := s.inner.Read()
	return telemetry.IntReading(int(r.Value))
}

// SimContact toggles state every period, for exercising switch inputs.
type SimContact struct {
	period time.Duration
	start  time.Time
}

// NewSimContact returns a contact probe suitable for [NewSwitch]. The
// contact state flips every period.
func NewSimContact(period time.Duration) func() (bool, error) {
	c := &SimContact{period: period, start: time.Now()}
	return c.read
}

func (c *SimContact) read() (bool, error) {
	n := time.Since(c.start) / c.period
	return n%2 == 1, nil
}

// RunSimMotion trips latch every interval until ctx is done, playing
// the role of the PIR edge interrupt.
func RunSimMotion(ctx context.Context, latch *Latch, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			latch.Trip()
		}
	}
}
