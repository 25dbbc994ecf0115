// metrics.go - Prometheus metrics for the invoice daemon.

package main

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the daemon's prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	InvoicesCreated *prometheus.CounterVec
	VerifyResults   *prometheus.CounterVec
	SettleFailures  prometheus.Counter
	HTTPDuration    *prometheus.HistogramVec
	MetaCacheErrors prometheus.Counter
}

// NewMetrics registers the daemon collectors on a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		InvoicesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "invoiced_invoices_created_total",
			Help: "Invoices created, by invoice type.",
		}, []string{"type"}),
		VerifyResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "invoiced_verify_results_total",
			Help: "Verification outcomes, by result.",
		}, []string{"result"}),
		SettleFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "invoiced_settle_failures_total",
			Help: "Settle attempts rejected by authorization or state.",
		}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "invoiced_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "code"}),
		MetaCacheErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "invoiced_meta_cache_errors_total",
			Help: "Best-effort metadata cache writes that failed.",
		}),
	}
	registry.MustRegister(m.InvoicesCreated, m.VerifyResults, m.SettleFailures, m.HTTPDuration, m.MetaCacheErrors)
	return m
}

// Handler serves the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveHTTP records one request observation.
func (m *Metrics) ObserveHTTP(route, code string, elapsed time.Duration) {
	m.HTTPDuration.WithLabelValues(route, code).Observe(elapsed.Seconds())
}
