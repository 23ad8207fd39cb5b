package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNew_RegistersAndCounts(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	n := New(reg)

	n.Publishes.Inc()
	n.Publishes.Inc()
	n.PublishFailures.Inc()
	n.BrokerConnected.Set(1)

	if got := testutil.ToFloat64(n.Publishes); got != 2 {
		t.Errorf("publishes = %v, want 2", got)
	}
	if got := testutil.ToFloat64(n.PublishFailures); got != 1 {
		t.Errorf("publish failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(n.BrokerConnected); got != 1 {
		t.Errorf("broker connected = %v, want 1", got)
	}

	// Double registration on the same registry must panic per
	// Prometheus contract; guard against accidental global state.
	defer func() {
		if recover() == nil {
			t.Error("second New on same registry did not panic")
		}
	}()
	New(reg)
}
