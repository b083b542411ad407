// Package metrics registers the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sift_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sift_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	workflowTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sift_workflow_transitions_total",
			Help: "Workflow status transitions by source and destination",
		},
		[]string{"from", "to"},
	)

	executionTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sift_execution_transitions_total",
			Help: "Execution status transitions by source and destination",
		},
		[]string{"from", "to"},
	)

	executionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sift_execution_duration_seconds",
			Help:    "Time from enqueue to terminal status",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"status"},
	)

	duplicateSignalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sift_execution_duplicate_signals_total",
			Help: "Signals received for executions already in a terminal state",
		},
		[]string{"signal"},
	)

	dispatchInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sift_dispatch_in_flight",
			Help: "Collaborator calls currently running",
		},
	)
)

// RecordHTTPRequest records one served request.
func RecordHTTPRequest(method string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordWorkflowTransition records a committed workflow status change.
func RecordWorkflowTransition(from, to string) {
	workflowTransitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordExecutionTransition records a committed execution status change.
func RecordExecutionTransition(from, to string) {
	executionTransitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordExecutionDuration records the enqueue-to-terminal latency of an execution.
func RecordExecutionDuration(status string, duration time.Duration) {
	executionDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordDuplicateSignal records a signal ignored because the execution was terminal.
func RecordDuplicateSignal(signal string) {
	duplicateSignalsTotal.WithLabelValues(signal).Inc()
}

// DispatchStarted and DispatchFinished bracket a collaborator call.
func DispatchStarted()  { dispatchInFlight.Inc() }
func DispatchFinished() { dispatchInFlight.Dec() }

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
