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

	passes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fleetward",
			Subsystem: "reconciler",
			Name:      "passes_total",
			Help:      "Number of completed reconciliation passes.",
		},
	)
	passDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fleetward",
			Subsystem: "reconciler",
			Name:      "pass_duration_seconds",
			Help:      "Wall-clock duration of a full reconciliation pass.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)
	hostChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fleetward",
			Subsystem: "host",
			Name:      "checks_total",
			Help:      "Number of host checks by observed status.",
		}, []string{"host", "status"},
	)
	restartsIssued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fleetward",
			Subsystem: "host",
			Name:      "restarts_issued_total",
			Help:      "Number of restart commands issued per host.",
		}, []string{"host"},
	)
	connectAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fleetward",
			Subsystem: "host",
			Name:      "connect_attempts_total",
			Help:      "Number of SSH connection attempts per host, retries included.",
		}, []string{"host"},
	)
	hostsConfigured = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "fleetward",
			Subsystem: "reconciler",
			Name:      "hosts_configured",
			Help:      "Number of hosts in the current configuration.",
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{passes, passDuration, hostChecks, restartsIssued, connectAttempts, hostsConfigured}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			// If already registered, ignore (allows double Register with default registry)
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

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
// The caller is responsible for starting an HTTP server and wiring the route.
func Handler() http.Handler { return promhttp.Handler() }

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func IncPass() {
	if regOK.Load() {
		passes.Inc()
	}
}

func ObservePassDuration(seconds float64) {
	if regOK.Load() {
		passDuration.Observe(seconds)
	}
}

func IncHostCheck(host, status string) {
	if regOK.Load() {
		hostChecks.WithLabelValues(host, status).Inc()
	}
}

func IncRestartIssued(host string) {
	if regOK.Load() {
		restartsIssued.WithLabelValues(host).Inc()
	}
}

func IncConnectAttempt(host string) {
	if regOK.Load() {
		connectAttempts.WithLabelValues(host).Inc()
	}
}

func SetHostsConfigured(n int) {
	if regOK.Load() {
		hostsConfigured.Set(float64(n))
	}
}
