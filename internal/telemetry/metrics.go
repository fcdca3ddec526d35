// Package telemetry holds the Prometheus collectors of the tool server.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "trademcp"

// Metrics is the collector set. A nil *Metrics is valid and records
// nothing, so callers never need to check.
type Metrics struct {
	registry *prometheus.Registry

	toolCalls          *prometheus.CounterVec
	toolDuration       *prometheus.HistogramVec
	validationFailures *prometheus.CounterVec
	legOutcomes        *prometheus.CounterVec
	brokerErrors       *prometheus.CounterVec
}

// New creates the collectors on a private registry, along with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool invocations by tool and result status.",
		}, []string{"tool", "status"}),
		toolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_call_duration_seconds",
			Help:      "Tool invocation latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),
		validationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_failures_total",
			Help:      "Requests refused before submission, by error kind.",
		}, []string{"kind"}),
		legOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submitted_legs_total",
			Help:      "Submitted orders and group legs by order class and outcome.",
		}, []string{"order_class", "outcome"}),
		brokerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broker_errors_total",
			Help:      "Brokerage calls that failed, by error kind.",
		}, []string{"kind"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.toolCalls,
		m.toolDuration,
		m.validationFailures,
		m.legOutcomes,
		m.brokerErrors,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveToolCall records one finished tool call.
func (m *Metrics) ObserveToolCall(tool, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(tool, status).Inc()
	m.toolDuration.WithLabelValues(tool).Observe(elapsed.Seconds())
}

// ValidationFailure counts a request refused before submission.
func (m *Metrics) ValidationFailure(kind string) {
	if m == nil {
		return
	}
	m.validationFailures.WithLabelValues(kind).Inc()
}

// LegOutcome counts one submitted order or group leg.
func (m *Metrics) LegOutcome(class, outcome string) {
	if m == nil {
		return
	}
	m.legOutcomes.WithLabelValues(class, outcome).Inc()
}

// BrokerError counts a failed brokerage call.
func (m *Metrics) BrokerError(kind string) {
	if m == nil {
		return
	}
	m.brokerErrors.WithLabelValues(kind).Inc()
}
