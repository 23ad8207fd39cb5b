// Package connwatch monitors the broker connection (or any external
// dependency) through a periodic probe and reports reachability as a
// boolean with state-transition callbacks.
//
// The default broker policy is the one the hardware boards ship with:
// a fixed five-second delay between attempts, unbounded retries, no
// jitter. That is a deliberate simplicity/liveness tradeoff for a
// single-purpose node, not a general retry library; the policy struct
// still allows multiplicative growth for probes that want it.
package connwatch

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ProbeFunc checks whether a service is reachable. Return nil if healthy.
type ProbeFunc func(ctx context.Context) error

// Policy controls probe timing.
type Policy struct {
	// RetryDelay is the delay between probes while the service is
	// unreachable.
	RetryDelay time.Duration

	// Multiplier scales RetryDelay after each failed probe. 1.0 keeps
	// the delay fixed.
	Multiplier float64

	// MaxDelay caps the grown delay. Ignored when Multiplier is 1.0.
	MaxDelay time.Duration

	// PollInterval is the probe spacing while the service is healthy.
	PollInterval time.Duration

	// ProbeTimeout bounds each individual probe call.
	ProbeTimeout time.Duration
}

// BrokerPolicy returns the firmware reconnect schedule: probe every
// five seconds while down, forever; re-check every thirty seconds
// while up.
func BrokerPolicy() Policy {
	return Policy{
		RetryDelay:   5 * time.Second,
		Multiplier:   1.0,
		PollInterval: 30 * time.Second,
		ProbeTimeout: 10 * time.Second,
	}
}

// WatcherConfig configures a single service watcher.
type WatcherConfig struct {
	// Name is a human-readable identifier for logging (e.g., "broker").
	Name string

	// Probe checks service health. Must be safe for concurrent use.
	Probe ProbeFunc

	// Policy controls probe timing. Use [BrokerPolicy] as a starting
	// point.
	Policy Policy

	// OnReady is called when the service transitions from not-ready to
	// ready. Called in a separate goroutine; must not block
	// indefinitely. Optional.
	OnReady func()

	// OnDown is called when the service transitions from ready to
	// not-ready. Called in a separate goroutine; must not block
	// indefinitely. Optional.
	OnDown func(err error)

	// Logger for structured logging. Uses slog.Default() if nil.
	Logger *slog.Logger
}

// Status is a snapshot of a watcher's health, suitable for JSON
// serialization in diagnostics.
type Status struct {
	Name      string    `json:"name"`
	Ready     bool      `json:"ready"`
	LastCheck time.Time `json:"last_check"`
	LastError string    `json:"last_error,omitempty"`
}

// Watcher monitors a single service's health.
type Watcher struct {
	config WatcherConfig
	ready  atomic.Bool
	done   chan struct{}

	mu        sync.Mutex
	lastErr   error
	lastCheck time.Time
}

// Watch starts a watcher goroutine that probes until ctx is cancelled.
// The first probe runs immediately.
func Watch(ctx context.Context, cfg WatcherConfig) *Watcher {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Policy.Multiplier < 1.0 {
		cfg.Policy.Multiplier = 1.0
	}

	w := &Watcher{
		config: cfg,
		done:   make(chan struct{}),
	}
	go w.run(ctx)
	return w
}

// IsReady reports whether the watched service is currently reachable.
// This is the connectivity boolean the publish loop consumes.
func (w *Watcher) IsReady() bool {
	return w.ready.Load()
}

// LastError returns the most recent probe error, or nil if healthy.
func (w *Watcher) LastError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

// Status returns the current health status.
func (w *Watcher) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()

	s := Status{
		Name:      w.config.Name,
		Ready:     w.ready.Load(),
		LastCheck: w.lastCheck,
	}
	if w.lastErr != nil {
		s.LastError = w.lastErr.Error()
	}
	return s
}

// Wait blocks until the watcher goroutine exits.
func (w *Watcher) Wait() {
	<-w.done
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)

	logger := w.config.Logger
	delay := w.config.Policy.RetryDelay

	for {
		err := w.probe(ctx)
		w.recordResult(err)
		wasReady := w.ready.Load()

		switch {
		case err == nil && !wasReady:
			w.ready.Store(true)
			logger.Info("service reachable", "service", w.config.Name)
			if w.config.OnReady != nil {
				go w.config.OnReady()
			}
		case err != nil && wasReady:
			w.ready.Store(false)
			logger.Warn("service became unreachable",
				"service", w.config.Name, "error", err)
			if w.config.OnDown != nil {
				go w.config.OnDown(err)
			}
		case err != nil:
			logger.Debug("service still unreachable",
				"service", w.config.Name, "error", err, "next_delay", delay.String())
		}

		var sleep time.Duration
		if err == nil {
			sleep = w.config.Policy.PollInterval
			delay = w.config.Policy.RetryDelay
		} else {
			sleep = delay
			delay = time.Duration(float64(delay) * w.config.Policy.Multiplier)
			if w.config.Policy.MaxDelay > 0 && delay > w.config.Policy.MaxDelay {
				delay = w.config.Policy.MaxDelay
			}
		}

		if !sleepCtx(ctx, sleep) {
			return
		}
	}
}

// probe calls the configured ProbeFunc with a timeout.
func (w *Watcher) probe(ctx context.Context) error {
	timeout := w.config.Policy.ProbeTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return w.config.Probe(probeCtx)
}

// recordResult stores the probe outcome under the mutex.
func (w *Watcher) recordResult(err error) {
	w.mu.Lock()
	w.lastErr = err
	w.lastCheck = time.Now()
	w.mu.Unlock()
}

// sleepCtx sleeps for d, returning false if ctx was cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
