// Package observability provides Prometheus metrics for the enclave
// execution engine.
package observability

import "github.com/prometheus/client_golang/prometheus"

// ExecutionBuckets defines histogram buckets suited for sandboxed agent
// executions, ranging from 100ms to 120s.
var ExecutionBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// ExecutionsTotal counts invocations by backend and terminal state.
	ExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enclave_executions_total",
			Help: "Agent invocations by terminal state",
		},
		[]string{"backend", "state"},
	)

	// ExecutionDuration records end-to-end invocation duration in seconds.
	ExecutionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "enclave_execution_duration_seconds",
			Help:    "Invocation duration",
			Buckets: ExecutionBuckets,
		},
		[]string{"backend"},
	)

	// BuildDuration records environment assembly duration in seconds.
	BuildDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "enclave_build_duration_seconds",
			Help:    "Environment build duration",
			Buckets: ExecutionBuckets,
		},
		[]string{"backend"},
	)

	// ActiveExecutions tracks invocations currently in flight.
	ActiveExecutions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "enclave_executions_active",
			Help: "Invocations in flight",
		},
	)

	// RequestsRejectedTotal counts HTTP requests rejected before
	// execution (auth failures, capacity).
	RequestsRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enclave_requests_rejected_total",
			Help: "Rejected requests",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(
		ExecutionsTotal,
		ExecutionDuration,
		BuildDuration,
		ActiveExecutions,
		RequestsRejectedTotal,
	)
}
