// Package metrics exposes invocation counters and the service state as
// Prometheus metrics. The supervisor is a short-lived CLI, so instead of
// serving /metrics it renders the registry to a textfile for the
// node_exporter textfile collector.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	startTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "solo",
			Subsystem: "supervisor",
			Name:      "start_total",
			Help:      "Start invocations by result.",
		}, []string{"name", "result"},
	)
	stopTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "solo",
			Subsystem: "supervisor",
			Name:      "stop_total",
			Help:      "Stop invocations.",
		}, []string{"name"},
	)
	currentState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "solo",
			Subsystem: "supervisor",
			Name:      "state",
			Help:      "Observed state (1 = current state, 0 = others).",
		}, []string{"name", "state"},
	)
)

// knownStates keeps the state gauge dense so dashboards can rely on all
// series existing.
var knownStates = []string{"stopped", "starting", "running", "stale", "port-conflict"}

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; duplicate registration is a no-op.
func Register(r prometheus.Registerer) error {
	cs := []prometheus.Collector{startTotal, stopTotal, currentState}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

// RecordStart counts a start invocation outcome: ok, already-running,
// port-conflict, timeout, exited-early, spawn-failed.
func RecordStart(name, result string) {
	startTotal.WithLabelValues(name, result).Inc()
}

// RecordStop counts a stop invocation.
func RecordStop(name string) {
	stopTotal.WithLabelValues(name).Inc()
}

// SetState marks the observed state, zeroing the others.
func SetState(name, state string) {
	for _, s := range knownStates {
		v := 0.0
		if s == state {
			v = 1.0
		}
		currentState.WithLabelValues(name, s).Set(v)
	}
}
