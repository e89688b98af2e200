// Package observability holds the Prometheus metrics of the key manager.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "keymanager"

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Metrics holds every collector of the service. A nil *Metrics records nothing.
type Metrics struct {
	// Facade
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec

	// Lifecycle
	AuditWriteFailuresTotal prometheus.Counter
	GatewayAuthTotal        *prometheus.CounterVec
	FailoverTotal           *prometheus.CounterVec
	ImportRowsTotal         *prometheus.CounterVec

	// HTTP
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	RateLimitedTotal    *prometheus.CounterVec
	RateLimitFallbacks  prometheus.Counter

	// Gateway config sync
	ConfigSyncTotal *prometheus.CounterVec
}

var durationBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5}

// NewMetrics creates and registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		OperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Credential operations by name and error kind outcome",
			},
			[]string{"operation", "outcome"},
		),
		OperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of credential operations",
				Buckets:   durationBuckets,
			},
			[]string{"operation"},
		),
		AuditWriteFailuresTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "audit_write_failures_total",
				Help:      "Audit entries that could not be written",
			},
		),
		GatewayAuthTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "gateway",
				Name:      "auth_total",
				Help:      "Gateway key authentication attempts",
			},
			[]string{"outcome"},
		),
		FailoverTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "gateway",
				Name:      "failover_total",
				Help:      "Provider key failovers by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		ImportRowsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "import",
				Name:      "rows_total",
				Help:      "CSV import rows by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration",
				Buckets:   durationBuckets,
			},
			[]string{"method", "route"},
		),
		RateLimitedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "rate_limited_total",
				Help:      "Requests rejected by the rate limiter",
			},
			[]string{"scope"},
		),
		RateLimitFallbacks: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ratelimit",
				Name:      "redis_fallbacks_total",
				Help:      "Rate limit checks served from memory because Redis failed",
			},
		),
		ConfigSyncTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "config_sync",
				Name:      "runs_total",
				Help:      "Gateway config sync runs by outcome",
			},
			[]string{"outcome"},
		),
	}
}

// RecordOperation counts one facade call and observes its duration.
func (m *Metrics) RecordOperation(operation, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.OperationsTotal.WithLabelValues(operation, outcome).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordAuditWriteFailure counts a swallowed audit append error.
func (m *Metrics) RecordAuditWriteFailure() {
	if m == nil {
		return
	}
	m.AuditWriteFailuresTotal.Inc()
}

// RecordGatewayAuth counts a gateway key authentication attempt.
func (m *Metrics) RecordGatewayAuth(outcome string) {
	if m == nil {
		return
	}
	m.GatewayAuthTotal.WithLabelValues(outcome).Inc()
}

// RecordFailover counts a failover attempt; outcome is "rotated" or "exhausted".
func (m *Metrics) RecordFailover(provider, outcome string) {
	if m == nil {
		return
	}
	m.FailoverTotal.WithLabelValues(provider, outcome).Inc()
}

// RecordImportRows adds the per-row counters of one batch.
func (m *Metrics) RecordImportRows(provider string, success, failed int) {
	if m == nil {
		return
	}
	if success > 0 {
		m.ImportRowsTotal.WithLabelValues(provider, OutcomeSuccess).Add(float64(success))
	}
	if failed > 0 {
		m.ImportRowsTotal.WithLabelValues(provider, OutcomeError).Add(float64(failed))
	}
}

// RecordHTTPRequest counts one request and observes its duration.
func (m *Metrics) RecordHTTPRequest(method, route, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordRateLimited counts a rejected request.
func (m *Metrics) RecordRateLimited(scope string) {
	if m == nil {
		return
	}
	m.RateLimitedTotal.WithLabelValues(scope).Inc()
}

// RecordRateLimitFallback counts a Redis to memory fallback.
func (m *Metrics) RecordRateLimitFallback(error) {
	if m == nil {
		return
	}
	m.RateLimitFallbacks.Inc()
}

// RecordConfigSync counts a gateway config sync run.
func (m *Metrics) RecordConfigSync(outcome string) {
	if m == nil {
		return
	}
	m.ConfigSyncTotal.WithLabelValues(outcome).Inc()
}
