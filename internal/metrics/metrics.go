// Package metrics provides optional Prometheus instrumentation for the
// separation demo, grounded on madpsy-ka9q_ubersdr's prometheus.go: a
// struct of promauto-registered collectors, constructed once and passed
// around as a nilable pointer. Its methods are no-ops on a nil receiver, so
// call sites invoke them without an `if m != nil` check or a feature flag.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the demo's collectors. A nil *Metrics is valid: every
// method is a no-op on a nil receiver.
type Metrics struct {
	separationsTotal   *prometheus.CounterVec
	separationDuration *prometheus.HistogramVec
	separationFailures *prometheus.CounterVec
}

// New registers and returns a fresh set of collectors.
func New() *Metrics {
	return &Metrics{
		separationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "audiosep_separations_total",
			Help: "Number of completed separation runs by algorithm.",
		}, []string{"algorithm"}),
		separationDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "audiosep_separation_duration_seconds",
			Help:    "Wall-clock duration of a separation run by algorithm.",
			Buckets: prometheus.DefBuckets,
		}, []string{"algorithm"}),
		separationFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "audiosep_separation_failures_total",
			Help: "Number of separation runs that returned an error, by algorithm.",
		}, []string{"algorithm"}),
	}
}

// ObserveSeparation records a completed run's outcome and duration.
func (m *Metrics) ObserveSeparation(algorithm string, seconds float64, err error) {
	if m == nil {
		return
	}
	m.separationDuration.WithLabelValues(algorithm).Observe(seconds)
	if err != nil {
		m.separationFailures.WithLabelValues(algorithm).Inc()
		return
	}
	m.separationsTotal.WithLabelValues(algorithm).Inc()
}

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
