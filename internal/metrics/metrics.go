// Package metrics collects and exposes Prometheus metrics for the auth
// flows.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector counts auth operation outcomes. Labels stay low-cardinality:
// operation (login, register, refresh, google, logout) and result
// (success, failure).
type Collector struct {
	authOutcomes  *prometheus.CounterVec
	tokenRenewals prometheus.Counter
	registry      *prometheus.Registry
}

// NewCollector creates a Collector backed by its own registry, so tests
// can create many without duplicate-registration panics.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		authOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_operations_total",
			Help: "Auth operations by operation and result.",
		}, []string{"operation", "result"}),
		tokenRenewals: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auth_silent_renewals_total",
			Help: "Access tokens re-issued by the session guard.",
		}),
		registry: reg,
	}

	reg.MustRegister(c.authOutcomes, c.tokenRenewals)
	return c
}

// RecordAuth records an auth operation outcome.
func (c *Collector) RecordAuth(operation string, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	c.authOutcomes.WithLabelValues(operation, result).Inc()
}

// RecordSilentRenewal records a guard-issued access token.
func (c *Collector) RecordSilentRenewal() {
	c.tokenRenewals.Inc()
}

// Handler exposes the registry for GET /metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
