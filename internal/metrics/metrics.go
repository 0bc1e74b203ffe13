// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "specsharp"

type Metrics struct {
	registry *prometheus.Registry

	Calculations      *prometheus.CounterVec
	Decisions         *prometheus.CounterVec
	ClampsApplied     *prometheus.CounterVec
	QuotaRejections   prometheus.Counter
	DriftWarnings     *prometheus.CounterVec
	TaxonomyReloads   *prometheus.CounterVec
	QuotaCheckLatency prometheus.Histogram
}

// New registers every collector on a private registry so tests can build
// as many instances as they like.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Calculations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calculations_total",
			Help:      "Engine runs by building type and outcome.",
		}, []string{"building_type", "status"}),
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dealshield_decisions_total",
			Help:      "DealShield decisions by status and reason code.",
		}, []string{"status", "reason"}),
		ClampsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cost_clamps_applied_total",
			Help:      "Calculations whose blended $/sf was clamped, by profile.",
		}, []string{"profile"}),
		QuotaRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_rejections_total",
			Help:      "Runs refused because the organization quota was exhausted.",
		}),
		DriftWarnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "drift_warnings_total",
			Help:      "Stored totals that differ from a recomputation, by field.",
		}, []string{"field"}),
		TaxonomyReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "taxonomy_reloads_total",
			Help:      "Taxonomy hot reload attempts by result.",
		}, []string{"result"}),
		QuotaCheckLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "quota_check_seconds",
			Help:      "Latency of the quota check-and-consume call.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Calculations,
		m.Decisions,
		m.ClampsApplied,
		m.QuotaRejections,
		m.DriftWarnings,
		m.TaxonomyReloads,
		m.QuotaCheckLatency,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ReloadObserver adapts TaxonomyReloads to the watcher's callback.
func (m *Metrics) ReloadObserver() func(ok bool) {
	return func(ok bool) {
		result := "ok"
		if !ok {
			result = "rejected"
		}
		m.TaxonomyReloads.WithLabelValues(result).Inc()
	}
}
