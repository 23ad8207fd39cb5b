package connwatch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// testPolicy returns a fast fixed-delay policy for tests.
func testPolicy() Policy {
	return Policy{
		RetryDelay:   1 * time.Millisecond,
		Multiplier:   1.0,
		PollInterval: 2 * time.Millisecond,
		ProbeTimeout: 100 * time.Millisecond,
	}
}

func TestBrokerPolicy(t *testing.T) {
	t.Parallel()
	p := BrokerPolicy()

	if p.RetryDelay != 5*time.Second {
		t.Errorf("RetryDelay = %v, want 5s", p.RetryDelay)
	}
	if p.Multiplier != 1.0 {
		t.Errorf("Multiplier = %v, want 1.0 (fixed delay)", p.Multiplier)
	}
	if p.PollInterval != 30*time.Second {
		t.Errorf("PollInterval = %v, want 30s", p.PollInterval)
	}
}

func TestWatcher_ImmediateSuccess(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var readyCalled atomic.Int32

	w := Watch(ctx, WatcherConfig{
		Name:    "test-immediate",
		Probe:   func(ctx context.Context) error { return nil },
		Policy:  testPolicy(),
		OnReady: func() { readyCalled.Add(1) },
	})

	// Give the goroutine time to run the first probe.
	time.Sleep(20 * time.Millisecond)

	if !w.IsReady() {
		t.Error("expected IsReady() == true after successful probe")
	}
	if w.LastError() != nil {
		t.Errorf("expected nil LastError, got %v", w.LastError())
	}
	if readyCalled.Load() != 1 {
		t.Errorf("OnReady called %d times, want 1", readyCalled.Load())
	}
}

func TestWatcher_FixedDelayRetriesUntilUp(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errDown := errors.New("broker down")
	var attempts atomic.Int32

	// Fail 5 times, then succeed. A bounded-retry scheme would have
	// given up; the fixed-delay policy must not.
	probe := func(ctx context.Context) error {
		if attempts.Add(1) <= 5 {
			return errDown
		}
		return nil
	}

	w := Watch(ctx, WatcherConfig{
		Name:   "test-retry",
		Probe:  probe,
		Policy: testPolicy(),
	})

	deadline := time.Now().Add(time.Second)
	for !w.IsReady() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	if !w.IsReady() {
		t.Fatal("watcher never became ready")
	}
	if attempts.Load() < 6 {
		t.Errorf("probe attempts = %d, want at least 6", attempts.Load())
	}
}

func TestWatcher_DownTransition(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errDown := errors.New("connection lost")
	var healthy atomic.Bool
	healthy.Store(true)
	var downCalled atomic.Int32

	w := Watch(ctx, WatcherConfig{
		Name: "test-down",
		Probe: func(ctx context.Context) error {
			if healthy.Load() {
				return nil
			}
			return errDown
		},
		Policy: testPolicy(),
		OnDown: func(err error) { downCalled.Add(1) },
	})

	time.Sleep(20 * time.Millisecond)
	if !w.IsReady() {
		t.Fatal("watcher not ready while probe healthy")
	}

	healthy.Store(false)
	deadline := time.Now().Add(time.Second)
	for w.IsReady() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	if w.IsReady() {
		t.Fatal("watcher still ready after probe went down")
	}
	if downCalled.Load() != 1 {
		t.Errorf("OnDown called %d times, want 1", downCalled.Load())
	}

	st := w.Status()
	if st.Ready || st.LastError != errDown.Error() {
		t.Errorf("Status = %+v, want down with error", st)
	}
}

func TestWatcher_StopsOnContextCancel(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())

	w := Watch(ctx, WatcherConfig{
		Name:   "test-cancel",
		Probe:  func(ctx context.Context) error { return errors.New("never up") },
		Policy: testPolicy(),
	})

	cancel()

	done := make(chan struct{})
	go func() { w.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop after context cancel")
	}
}
