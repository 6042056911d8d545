// Package metrics exposes Prometheus collectors for tool invocations and
// audit log health.
package metrics

import (
	"net/http"
	"time"

	"github.com/kaysia/kasa/internal/tool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "kasa"

// ServiceName is the core service name of the *Metrics.
const ServiceName = "metrics.prometheus"

// Metrics owns a private registry so several instances can coexist in
// tests.
type Metrics struct {
	registry      *prometheus.Registry
	invocations   *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	auditFailures *prometheus.CounterVec
	auditAppends  prometheus.Counter
}

var _ tool.Observer = (*Metrics)(nil)

// New creates the collectors, including the Go runtime and process ones.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tool",
			Name:      "invocations_total",
			Help:      "Tool invocations by tool, envelope status and error kind.",
		}, []string{"tool", "status", "kind"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tool",
			Name:      "invocation_duration_seconds",
			Help:      "Tool invocation latency.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"tool"}),
		auditFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "append_failures_total",
			Help:      "Audit entries lost after their mutation was applied.",
		}, []string{"action"}),
		auditAppends: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "appends_total",
			Help:      "Audit entries appended.",
		}),
	}
	m.registry.MustRegister(
		m.invocations,
		m.latency,
		m.auditFailures,
		m.auditAppends,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveInvocation implements tool.Observer.
func (m *Metrics) ObserveInvocation(name string, status tool.Status, kind tool.ErrorKind, elapsed time.Duration) {
	m.invocations.WithLabelValues(name, string(status), string(kind)).Inc()
	m.latency.WithLabelValues(name).Observe(elapsed.Seconds())
}

// AuditFailure counts an audit entry that could not be appended. Its
// signature matches audit.RecorderConfig.OnFailure.
func (m *Metrics) AuditFailure(action string, _ error) {
	m.auditFailures.WithLabelValues(action).Inc()
}

// AuditAppended counts a stored audit entry. Its signature matches
// audit.RecorderConfig.OnAppend.
func (m *Metrics) AuditAppended(string) { m.auditAppends.Inc() }

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
