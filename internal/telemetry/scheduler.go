package telemetry

import "time"

// Millis is a monotonic free-running millisecond counter. It is
// deliberately 32 bits wide, matching the counters on the boards this
// node descends from; all deadline arithmetic uses signed differences
// so the counter may wrap without disturbing the schedule.
type Millis uint32

// Clock supplies monotonic milliseconds since boot.
type Clock func() Millis

// NewBootClock returns a Clock counting milliseconds since the call.
func NewBootClock() Clock {
	start := time.Now()
	return func() Millis {
		return Millis(time.Since(start).Milliseconds())
	}
}

// reached reports whether now is at or past deadline, tolerating
// counter wraparound: the signed difference is non-negative for any
// deadline within ~24 days either side of now.
func reached(now, deadline Millis) bool {
	return int32(now-deadline) >= 0
}

// SchedulerConfig carries the two publish intervals and the dirty
// policy. SoftInterval must not exceed HardInterval; configuration
// validation enforces this before a Scheduler is built.
type SchedulerConfig struct {
	// SoftInterval is the minimum spacing between publishes even
	// while values keep changing.
	SoftInterval Millis

	// HardInterval is the maximum staleness: a publish is forced once
	// it elapses even with no change.
	HardInterval Millis

	// ImmediateOnDirty bypasses the soft gate for change-triggered
	// publishes, the policy of the motion-interrupt board variants.
	ImmediateOnDirty bool
}

// Scheduler decides, given a dirty flag and the current time, whether
// a publish should happen now. Both deadlines start at zero so the
// first evaluation after boot is always due.
//
// The scheduler itself never fails. On a transport failure the caller
// simply does not call [Scheduler.Published], leaving both deadlines
// and the snapshot untouched so the same dirty state is retried on the
// next cycle.
type Scheduler struct {
	cfg  SchedulerConfig
	soft Millis
	hard Millis
}

// NewScheduler returns a scheduler with both deadlines due.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	return &Scheduler{cfg: cfg}
}

// ShouldPublish reports whether a publish should occur now. A true
// result obliges the caller to attempt the publish and, on success,
// call [Scheduler.Published] with the same now.
func (s *Scheduler) ShouldPublish(dirty bool, now Millis) bool {
	if reached(now, s.hard) {
		return true
	}
	if !dirty {
		return false
	}
	if s.cfg.ImmediateOnDirty {
		return true
	}
	return reached(now, s.soft)
}

// Published resets both deadlines after a successful publish.
func (s *Scheduler) Published(now Millis) {
	s.soft = now + s.cfg.SoftInterval
	s.hard = now + s.cfg.HardInterval
}

// SoftDeadline returns the earliest time a change-triggered publish
// will be honored (unless ImmediateOnDirty is set).
func (s *Scheduler) SoftDeadline() Millis {
	return s.soft
}

// HardDeadline returns the time at which a heartbeat publish is forced.
func (s *Scheduler) HardDeadline() Millis {
	return s.hard
}
