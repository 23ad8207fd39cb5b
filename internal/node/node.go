// Package node runs the per-cycle loop: read the sensor bank, detect
// changes against the last-published snapshot, ask the scheduler
// whether to publish, and on success commit snapshot and deadlines.
// All core state is owned by the single loop goroutine; the only
// cross-goroutine state is the motion latch inside the bank's sources.
package node

import (
	"context"
	"log/slog"
	"time"

	"multisense/internal/config"
	"multisense/internal/metrics"
	"multisense/internal/sensors"
	"multisense/internal/telemetry"
)

// Publisher is the transport the loop publishes through. The concrete
// MQTT client satisfies it; tests use fakes.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte, retain bool) error
}

// Node is the assembled sensor node.
type Node struct {
	bank     *sensors.Bank
	sched    *telemetry.Scheduler
	snapshot *telemetry.Snapshot
	clock    telemetry.Clock
	pub      Publisher
	topic    string
	poll     time.Duration
	metrics  *metrics.Node
	logger   *slog.Logger
}

// Config assembles a Node.
type Config struct {
	Bank      *sensors.Bank
	Scheduler telemetry.SchedulerConfig
	Clock     telemetry.Clock // nil means a boot clock
	Publisher Publisher
	Topic     string
	Poll      time.Duration
	Metrics   *metrics.Node // nil disables instrumentation
	Logger    *slog.Logger
}

// New builds a node with empty snapshot and due deadlines, so the
// first cycle always publishes.
func New(cfg Config) *Node {
	clock := cfg.Clock
	if clock == nil {
		clock = telemetry.NewBootClock()
	}
	return &Node{
		bank:     cfg.Bank,
		sched:    telemetry.NewScheduler(cfg.Scheduler),
		snapshot: telemetry.NewSnapshot(),
		clock:    clock,
		pub:      cfg.Publisher,
		topic:    cfg.Topic,
		poll:     cfg.Poll,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
	}
}

// Run evaluates cycles at the poll interval until ctx is cancelled.
func (n *Node) Run(ctx context.Context) error {
	n.logger.Info("node loop starting",
		"topic", n.topic,
		"properties", n.bank.Names(),
		"poll", n.poll.String(),
	)

	ticker := time.NewTicker(n.poll)
	defer ticker.Stop()

	// First evaluation happens immediately, not one tick in.
	n.Cycle(ctx)

	for {
		select {
		case <-ctx.Done():
			n.logger.Info("node loop stopping")
			return ctx.Err()
		case <-ticker.C:
			n.Cycle(ctx)
		}
	}
}

// Cycle runs one read/detect/schedule/publish iteration. Exported so
// tests can drive the loop with a fake clock instead of a ticker.
func (n *Node) Cycle(ctx context.Context) {
	rs := telemetry.NewReadingSet()
	failed := n.bank.Collect(rs)
	if failed > 0 && n.metrics != nil {
		n.metrics.ReadFailures.Add(float64(failed))
	}

	dirty := telemetry.Dirty(rs, n.snapshot)
	if dirty && n.metrics != nil {
		n.metrics.DirtyCycles.Inc()
	}

	now := n.clock()
	if !n.sched.ShouldPublish(dirty, now) {
		return
	}

	payload := telemetry.Encode(rs)
	if err := n.pub.Publish(ctx, n.topic, payload, true); err != nil {
		// Leave snapshot and deadlines alone: the same dirty state is
		// re-evaluated, and retried, on the next cycle.
		if n.metrics != nil {
			n.metrics.PublishFailures.Inc()
		}
		n.logger.Warn("publish failed, will retry",
			"topic", n.topic, "error", err)
		return
	}

	n.sched.Published(now)
	n.snapshot.Update(rs)
	if n.metrics != nil {
		n.metrics.Publishes.Inc()
		n.metrics.LastPublishUnix.SetToCurrentTime()
	}

	n.logger.Debug("published status",
		"topic", n.topic, "dirty", dirty, "payload", string(payload))
}

// SchedulerFromConfig converts the millisecond config fields.
func SchedulerFromConfig(nc config.NodeConfig) telemetry.SchedulerConfig {
	return telemetry.SchedulerConfig{
		SoftInterval:     telemetry.Millis(nc.SoftIntervalMS),
		HardInterval:     telemetry.Millis(nc.HardIntervalMS),
		ImmediateOnDirty: nc.ImmediateOnDirty,
	}
}
