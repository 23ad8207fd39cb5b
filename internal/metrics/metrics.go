// Package metrics exposes the node's operational counters over
// Prometheus. The publish loop is the only writer; the HTTP endpoint
// serves scrapes.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Node holds the instruments the publish loop updates each cycle.
type Node struct {
	Publishes       prometheus.Counter
	PublishFailures prometheus.Counter
	DirtyCycles     prometheus.Counter
	ReadFailures    prometheus.Counter
	BrokerConnected prometheus.Gauge
	LastPublishUnix prometheus.Gauge
}

// New registers the node instruments with reg and returns them.
func New(reg prometheus.Registerer) *Node {
	n := &Node{
		Publishes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "multisense_publishes_total",
			Help: "Status messages successfully published to the broker.",
		}),
		PublishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "multisense_publish_failures_total",
			Help: "Publish attempts that failed at the transport.",
		}),
		DirtyCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "multisense_dirty_cycles_total",
			Help: "Evaluation cycles where a tracked property changed.",
		}),
		ReadFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "multisense_sensor_read_failures_total",
			Help: "Individual sensor reads that failed.",
		}),
		BrokerConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "multisense_broker_connected",
			Help: "1 while the broker connection is up.",
		}),
		LastPublishUnix: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "multisense_last_publish_timestamp_seconds",
			Help: "Unix time of the most recent successful publish.",
		}),
	}

	reg.MustRegister(
		n.Publishes,
		n.PublishFailures,
		n.DirtyCycles,
		n.ReadFailures,
		n.BrokerConnected,
		n.LastPublishUnix,
	)
	return n
}

// Serve runs the Prometheus scrape endpoint on addr until ctx is
// cancelled. A nil return means clean shutdown.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux}

	errc := make(chan error, 1)
	go func() {
		logger.Info("metrics endpoint listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
		return nil
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
