package telemetry

import (
	"math"
	"testing"
)

func newTestScheduler(immediate bool) *Scheduler {
	return NewScheduler(SchedulerConfig{
		SoftInterval:     3000,
		HardInterval:     30000,
		ImmediateOnDirty: immediate,
	})
}

func TestScheduler_InitialEvaluationIsDue(t *testing.T) {
	t.Parallel()

	s := newTestScheduler(false)
	if !s.ShouldPublish(false, 0) {
		t.Error("ShouldPublish(false, 0) = false at boot, want true")
	}
	if !s.ShouldPublish(false, 17) {
		t.Error("ShouldPublish(false, 17) = false at boot, want true")
	}
}

func TestScheduler_HardIntervalLiveness(t *testing.T) {
	t.Parallel()

	s := newTestScheduler(false)
	s.Published(1000)

	// Clean cycles inside the hard interval stay quiet.
	for _, now := range []Millis{1001, 5000, 30999} {
		if s.ShouldPublish(false, now) {
			t.Errorf("ShouldPublish(false, %d) = true before hard deadline", now)
		}
	}

	// At and past the hard deadline a heartbeat is forced.
	for _, now := range []Millis{31000, 31001, 90000} {
		if !s.ShouldPublish(false, now) {
			t.Errorf("ShouldPublish(false, %d) = false at/past hard deadline", now)
		}
	}
}

func TestScheduler_SoftIntervalRateBound(t *testing.T) {
	t.Parallel()

	s := newTestScheduler(false)
	s.Published(1000)

	// Dirty inside the soft window is held back.
	if s.ShouldPublish(true, 2000) {
		t.Error("ShouldPublish(true, 2000) = true inside soft window, want false")
	}
	if s.ShouldPublish(true, 3999) {
		t.Error("ShouldPublish(true, 3999) = true inside soft window, want false")
	}

	// Once the soft deadline passes, dirty publishes go through.
	if !s.ShouldPublish(true, 4000) {
		t.Error("ShouldPublish(true, 4000) = false at soft deadline, want true")
	}
}

func TestScheduler_ImmediateOnDirtyBypassesSoftGate(t *testing.T) {
	t.Parallel()

	s := newTestScheduler(true)
	s.Published(1000)

	if !s.ShouldPublish(true, 1001) {
		t.Error("ShouldPublish(true, 1001) = false with ImmediateOnDirty, want true")
	}
	// Clean cycles are still bounded by the hard interval only.
	if s.ShouldPublish(false, 1001) {
		t.Error("ShouldPublish(false, 1001) = true, want false")
	}
}

func TestScheduler_FailedPublishRetries(t *testing.T) {
	t.Parallel()

	s := newTestScheduler(false)
	s.Published(0)

	now := Millis(5000)
	if !s.ShouldPublish(true, now) {
		t.Fatal("ShouldPublish(true, 5000) = false, want true")
	}

	// Transport failure: Published is not called, so the identical
	// dirty condition stays due on the next evaluation.
	if !s.ShouldPublish(true, now+250) {
		t.Error("ShouldPublish = false after failed publish, want retry")
	}
	if s.SoftDeadline() != 3000 || s.HardDeadline() != 30000 {
		t.Errorf("deadlines moved after failed publish: soft=%d hard=%d",
			s.SoftDeadline(), s.HardDeadline())
	}

	s.Published(now)
	if s.SoftDeadline() != 8000 || s.HardDeadline() != 35000 {
		t.Errorf("deadlines after Published(5000): soft=%d hard=%d, want 8000, 35000",
			s.SoftDeadline(), s.HardDeadline())
	}
}

// TestScheduler_Timeline walks the worked example from the design
// discussion: soft 3000, hard 30000, no immediate-on-dirty.
func TestScheduler_Timeline(t *testing.T) {
	t.Parallel()

	s := newTestScheduler(false)

	// t=0: initial publish.
	if !s.ShouldPublish(false, 0) {
		t.Fatal("t=0: no initial publish")
	}
	s.Published(0)

	// t=1000: a switch toggles, but the soft window holds it.
	if s.ShouldPublish(true, 1000) {
		t.Error("t=1000: published inside soft window")
	}

	// t=3500: still dirty, soft window elapsed.
	if !s.ShouldPublish(true, 3500) {
		t.Fatal("t=3500: dirty publish not honored after soft window")
	}
	s.Published(3500)
	if s.SoftDeadline() != 6500 || s.HardDeadline() != 33500 {
		t.Fatalf("t=3500 deadlines: soft=%d hard=%d, want 6500, 33500",
			s.SoftDeadline(), s.HardDeadline())
	}

	// t=30000: hard deadline (from t=3500) not yet reached.
	if s.ShouldPublish(false, 30000) {
		t.Error("t=30000: premature heartbeat")
	}

	// t=33500: heartbeat fires even though nothing changed.
	if !s.ShouldPublish(false, 33500) {
		t.Error("t=33500: heartbeat missing")
	}
}

func TestScheduler_CounterWraparound(t *testing.T) {
	t.Parallel()

	s := newTestScheduler(false)

	// Publish just before the 32-bit counter wraps; the hard deadline
	// lands past zero.
	near := Millis(math.MaxUint32 - 10000)
	s.Published(near)

	if s.ShouldPublish(false, near+5000) {
		t.Error("heartbeat fired before wrapped hard deadline")
	}

	wrapped := near + 30000 // wraps past MaxUint32
	if wrapped > near {
		t.Fatal("test arithmetic did not wrap")
	}
	if !s.ShouldPublish(false, wrapped) {
		t.Error("heartbeat missing at wrapped hard deadline")
	}
	if s.ShouldPublish(true, near+1000) {
		t.Error("dirty publish honored inside wrapped soft window")
	}
}
