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

	feedLaunches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "camherd",
			Subsystem: "feed",
			Name:      "launches_total",
			Help:      "Number of successful engine launches.",
		}, []string{"feed"},
	)
	feedLaunchFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "camherd",
			Subsystem: "feed",
			Name:      "launch_failures_total",
			Help:      "Number of engine launches that failed to start.",
		}, []string{"feed"},
	)
	feedRestarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "camherd",
			Subsystem: "feed",
			Name:      "restarts_total",
			Help:      "Number of restarts by detected reason (dead, stale, manual).",
		}, []string{"feed", "reason"},
	)
	feedTerminations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "camherd",
			Subsystem: "feed",
			Name:      "terminations_total",
			Help:      "Number of bounded terminations by outcome (exited, killed, failed).",
		}, []string{"outcome"},
	)
	feedsConfigured = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "camherd",
			Name:      "feeds_configured",
			Help:      "Number of configured feeds.",
		},
	)
	feedsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "camherd",
			Name:      "feeds_active",
			Help:      "Number of feeds with a live engine process.",
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{feedLaunches, feedLaunchFailures, feedRestarts, feedTerminations, feedsConfigured, feedsActive}
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

// Handler returns an http.Handler serving Prometheus metrics for the
// DefaultGatherer. The caller wires the route.
func Handler() http.Handler { return promhttp.Handler() }

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func IncLaunch(feed string) {
	if regOK.Load() {
		feedLaunches.WithLabelValues(feed).Inc()
	}
}

func IncLaunchFailure(feed string) {
	if regOK.Load() {
		feedLaunchFailures.WithLabelValues(feed).Inc()
	}
}

func IncRestart(feed, reason string) {
	if regOK.Load() {
		feedRestarts.WithLabelValues(feed, reason).Inc()
	}
}

func IncTermination(outcome string) {
	if regOK.Load() {
		feedTerminations.WithLabelValues(outcome).Inc()
	}
}

func SetConfigured(n int) {
	if regOK.Load() {
		feedsConfigured.Set(float64(n))
	}
}

func SetActive(n int) {
	if regOK.Load() {
		feedsActive.Set(float64(n))
	}
}
