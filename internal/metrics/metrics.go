package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	lifecycleStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hostling",
			Subsystem: "lifecycle",
			Name:      "starts_total",
			Help:      "Number of successful resource starts.",
		}, []string{"kind"},
	)
	lifecycleStops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hostling",
			Subsystem: "lifecycle",
			Name:      "stops_total",
			Help:      "Number of resource stops.",
		}, []string{"kind"},
	)
	lifecycleRestarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hostling",
			Subsystem: "lifecycle",
			Name:      "restarts_total",
			Help:      "Number of restarts (manual or health-triggered).",
		}, []string{"kind"},
	)
	healthFaults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hostling",
			Subsystem: "health",
			Name:      "faults_total",
			Help:      "Health faults detected by the monitor sweep.",
		}, []string{"kind"},
	)
	reconcileHeals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hostling",
			Subsystem: "reconcile",
			Name:      "heals_total",
			Help:      "Resources started by the reconciler to close a desired/actual gap.",
		}, []string{"kind"},
	)
	runningResources = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "hostling",
			Subsystem: "lifecycle",
			Name:      "running_resources",
			Help:      "Current live handles per resource kind.",
		}, []string{"kind"},
	)
	backupRuns = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "hostling",
			Subsystem: "backup",
			Name:      "runs_total",
			Help:      "Completed backup task runs.",
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{
		lifecycleStarts, lifecycleStops, lifecycleRestarts,
		healthFaults, reconcileHeals, runningResources, backupRuns,
	}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler serving Prometheus metrics for the
// DefaultGatherer. The caller wires the route and server.
func Handler() http.Handler { return promhttp.Handler() }

// Lightweight helpers used by internal packages. They no-op until Register
// has been called.

func IncStart(kind string) {
	if regOK.Load() {
		lifecycleStarts.WithLabelValues(kind).Inc()
	}
}

func IncStop(kind string) {
	if regOK.Load() {
		lifecycleStops.WithLabelValues(kind).Inc()
	}
}

func IncRestart(kind string) {
	if regOK.Load() {
		lifecycleRestarts.WithLabelValues(kind).Inc()
	}
}

func IncHealthFault(kind string) {
	if regOK.Load() {
		healthFaults.WithLabelValues(kind).Inc()
	}
}

func IncReconcileHeal(kind string) {
	if regOK.Load() {
		reconcileHeals.WithLabelValues(kind).Inc()
	}
}

func SetRunning(kind string, n int) {
	if regOK.Load() {
		runningResources.WithLabelValues(kind).Set(float64(n))
	}
}

func IncBackupRun() {
	if regOK.Load() {
		backupRuns.Inc()
	}
}
