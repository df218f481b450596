package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes the engine's Prometheus collectors.
type Metrics struct {
	TransitionsTotal     *prometheus.CounterVec
	ExecutionDuration    *prometheus.HistogramVec
	ActionFailuresTotal  *prometheus.CounterVec
	HistoryWriteFailures prometheus.Counter
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPErrorsTotal      *prometheus.CounterVec
}

// NewMetrics registers and returns the engine collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "workflow",
			Name:      "transitions_total",
			Help:      "Transition executions by workflow type and result.",
		}, []string{"workflow_type", "result"}),
		ExecutionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "workflow",
			Name:      "execution_duration_seconds",
			Help:      "Transition execution duration including the action phase.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"workflow_type"}),
		ActionFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "workflow",
			Name:      "action_failures_total",
			Help:      "Failed pipeline actions by action type.",
		}, []string{"action_type"}),
		HistoryWriteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "workflow",
			Name:      "history_write_failures_total",
			Help:      "History entries that could not be persisted after retries.",
		}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "workflow",
			Name:      "http_requests_total",
			Help:      "HTTP requests by path, method and status.",
		}, []string{"path", "method", "status"}),
		HTTPErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "workflow",
			Name:      "http_errors_total",
			Help:      "HTTP error responses by path, method and error code.",
		}, []string{"path", "method", "code"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.TransitionsTotal,
			m.ExecutionDuration,
			m.ActionFailuresTotal,
			m.HistoryWriteFailures,
			m.HTTPRequestsTotal,
			m.HTTPErrorsTotal,
		)
	}
	return m
}

// RecordTransition counts one execution outcome and its duration.
func (m *Metrics) RecordTransition(workflowTypeID string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if !success {
		result = "failed"
	}
	m.TransitionsTotal.WithLabelValues(workflowTypeID, result).Inc()
	m.ExecutionDuration.WithLabelValues(workflowTypeID).Observe(duration.Seconds())
}

// RecordActionFailure counts one failed pipeline action.
func (m *Metrics) RecordActionFailure(actionType string) {
	if m == nil {
		return
	}
	m.ActionFailuresTotal.WithLabelValues(actionType).Inc()
}

// RecordHistoryWriteFailure counts a history entry lost after retries.
func (m *Metrics) RecordHistoryWriteFailure() {
	if m == nil {
		return
	}
	m.HistoryWriteFailures.Inc()
}

// RecordRequest counts one HTTP request.
func (m *Metrics) RecordRequest(path, method string, status int, _ time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
}

// RecordError counts one HTTP error response.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.HTTPErrorsTotal.WithLabelValues(path, method, code).Inc()
}
