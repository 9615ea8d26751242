// Package prometheus exposes experimentation and HTTP metrics for scraping.
package prometheus

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/emiliopalmerini/lostfound-admin/internal/domain"
)

const namespace = "lfadmin"

// Metrics holds a private registry rather than the global default one.
type Metrics struct {
	registry *prometheus.Registry

	// ingests counts ingestions by experiment and outcome.
	// Labels: experiment_id, variant, outcome
	ingests *prometheus.CounterVec

	// ingestFailures counts rejected or failed ingestions.
	// Labels: experiment_id, kind
	ingestFailures *prometheus.CounterVec

	// transitions counts committed status changes.
	// Labels: from, to
	transitions *prometheus.CounterVec

	// requestDuration measures API latency.
	// Labels: method, route, code
	requestDuration *prometheus.HistogramVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		ingests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "records_total",
			Help:      "Participation records ingested by outcome",
		}, []string{"experiment_id", "variant", "outcome"}),
		ingestFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "failures_total",
			Help:      "Participation records rejected or failed by error kind",
		}, []string{"experiment_id", "kind"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "transitions_total",
			Help:      "Committed experiment status transitions",
		}, []string{"from", "to"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin API request latency in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"method", "route", "code"}),
	}
	reg.MustRegister(m.ingests, m.ingestFailures, m.transitions, m.requestDuration)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRequest records one served API request.
func (m *Metrics) ObserveRequest(method, route string, code int, elapsed time.Duration) {
	m.requestDuration.WithLabelValues(method, route, strconv.Itoa(code)).Observe(elapsed.Seconds())
}

func (m *Metrics) RecordIngest(_ context.Context, experimentID, variant string, outcome domain.IngestOutcome) {
	m.ingests.WithLabelValues(experimentID, variant, string(outcome)).Inc()
}

func (m *Metrics) RecordIngestFailure(_ context.Context, experimentID string, kind domain.ErrorKind) {
	if kind == "" {
		kind = "internal"
	}
	m.ingestFailures.WithLabelValues(experimentID, string(kind)).Inc()
}

func (m *Metrics) RecordTransition(_ context.Context, _ string, from, to domain.Status) {
	m.transitions.WithLabelValues(string(from), string(to)).Inc()
}

// Close is a no-op; scraped metrics need no flushing.
func (m *Metrics) Close(context.Context) error {
	return nil
}
