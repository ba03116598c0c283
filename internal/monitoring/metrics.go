// Package monitoring holds the process-wide diagnostics: the zap logger
// hook and the prometheus collectors for the acquisition loop.
package monitoring

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "myolink"

// Metrics are the collectors updated by the acquisition loop.
type Metrics struct {
	CycleDuration  prometheus.Histogram
	Predictions    *prometheus.CounterVec
	ReadTimeouts   prometheus.Counter
	Reconnects     *prometheus.CounterVec
	DispatchErrors prometheus.Counter
	StoreDropped   prometheus.Counter

	gatherer prometheus.Gatherer
}

// NewMetrics creates the collectors on a private registry so that several
// loops (or tests) never collide on registration.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_processing_seconds",
			Help:      "Time from cycle start to classification, including the sensor read.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		Predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Classified windows by predicted label.",
		}, []string{"label"}),
		ReadTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "read_timeouts_total",
			Help:      "Cycles skipped because a window did not arrive in time.",
		}),
		Reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnect_attempts_total",
			Help:      "Sensor reconnect attempts by outcome.",
		}, []string{"outcome"}),
		DispatchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_errors_total",
			Help:      "Actuator commands that could not be delivered.",
		}),
		StoreDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_dropped_total",
			Help:      "Cycle rows dropped because the mirror store queue was full.",
		}),
		gatherer: reg,
	}
	reg.MustRegister(
		m.CycleDuration,
		m.Predictions,
		m.ReadTimeouts,
		m.Reconnects,
		m.DispatchErrors,
		m.StoreDropped,
	)
	return m
}

// ObservePrediction counts one prediction.
func (m *Metrics) ObservePrediction(label int) {
	m.Predictions.WithLabelValues(strconv.Itoa(label)).Inc()
}

// Gatherer exposes the registry, mainly for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer { return m.gatherer }

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
