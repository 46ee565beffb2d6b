// Package observability provides metrics, tracing, and event schemas for
// scrape operations.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Operation status label values
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Metrics holds all Prometheus metrics for scrape operations.
type Metrics struct {
	// Boundary metrics
	OperationsTotal  *prometheus.CounterVec
	OperationSeconds *prometheus.HistogramVec

	// Collector metrics
	CollectorIterationsTotal   *prometheus.CounterVec
	CollectorEntriesTotal      *prometheus.CounterVec
	CollectorTerminationsTotal *prometheus.CounterVec

	BridgeRequestsTotal *prometheus.CounterVec
}

// DefaultMetrics creates metrics on the default registerer.
func DefaultMetrics() *Metrics {
	return NewMetrics(prometheus.DefaultRegisterer)
}

// NewMetrics creates a new set of metrics registered with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		OperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recap_operations_total",
				Help: "Total boundary operations by outcome",
			},
			[]string{"operation", "status"},
		),
		OperationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "recap_operation_seconds",
				Help:    "Boundary operation latency",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"operation"},
		),

		CollectorIterationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recap_collector_iterations_total",
				Help: "Total scroll iterations performed by collectors",
			},
			[]string{"variant"},
		),
		CollectorEntriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recap_collector_entries_total",
				Help: "Total new entries accumulated by collectors",
			},
			[]string{"variant"},
		),
		CollectorTerminationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recap_collector_terminations_total",
				Help: "Collector runs by termination reason",
			},
			[]string{"variant", "reason"},
		),

		BridgeRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recap_bridge_requests_total",
				Help: "Frame bridge requests answered by op and outcome",
			},
			[]string{"op", "status"},
		),
	}
}

// RecordOperation records one finished boundary operation.
func (m *Metrics) RecordOperation(operation, status string, seconds float64) {
	m.OperationsTotal.WithLabelValues(operation, status).Inc()
	m.OperationSeconds.WithLabelValues(operation).Observe(seconds)
}

// Iteration implements transcript.Observer.
func (m *Metrics) Iteration(variant string) {
	m.CollectorIterationsTotal.WithLabelValues(variant).Inc()
}

// EntriesAdded implements transcript.Observer.
func (m *Metrics) EntriesAdded(variant string, n int) {
	m.CollectorEntriesTotal.WithLabelValues(variant).Add(float64(n))
}

// Terminated implements transcript.Observer.
func (m *Metrics) Terminated(variant, reason string) {
	m.CollectorTerminationsTotal.WithLabelValues(variant, reason).Inc()
}

// BridgeRequest implements bridge.RequestObserver.
func (m *Metrics) BridgeRequest(op string, ok bool) {
	status := StatusSuccess
	if !ok {
		status = StatusError
	}
	m.BridgeRequestsTotal.WithLabelValues(op, status).Inc()
}
