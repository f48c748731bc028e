package orchestrate

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okatz/provisor/internal/provisioning"
)

// Metrics tracks per-stage durations and node outcomes for a run. It owns
// its own registry so test runs never collide on the default one.
type Metrics struct {
	registry      *prometheus.Registry
	stageDuration *prometheus.HistogramVec
	nodeOutcomes  *prometheus.CounterVec
}

// NewMetrics creates and registers the run metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "provisor",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each provisioning stage per node.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"stage"}),
		nodeOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "provisor",
			Name:      "node_outcomes_total",
			Help:      "Provisioning outcomes per node, labeled by result and failing stage.",
		}, []string{"result", "stage"}),
	}
	m.registry.MustRegister(m.stageDuration, m.nodeOutcomes)
	return m
}

// ObserveStage records one stage execution.
func (m *Metrics) ObserveStage(stage provisioning.Stage, d time.Duration) {
	m.stageDuration.WithLabelValues(string(stage)).Observe(d.Seconds())
}

// RecordOutcome counts a node's final outcome.
func (m *Metrics) RecordOutcome(outcome provisioning.Outcome) {
	if outcome.Succeeded() {
		m.nodeOutcomes.WithLabelValues("success", "").Inc()
		return
	}
	m.nodeOutcomes.WithLabelValues("failure", string(outcome.Stage)).Inc()
}

// Handler exposes the run metrics in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve starts an HTTP listener exposing /metrics and returns a shutdown
// function. A listen error after startup is ignored; metrics are best
// effort.
func (m *Metrics) Serve(addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		_ = srv.ListenAndServe()
	}()
	return func() { _ = srv.Close() }
}
