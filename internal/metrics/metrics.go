// Package metrics holds the Prometheus instruments for hierarchy
// materialization and queries. All methods are no-ops on a nil *Metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "teamtree"

// Metrics owns a private registry so several instances can coexist in tests.
type Metrics struct {
	Registry *prometheus.Registry

	refreshes         *prometheus.CounterVec
	refreshDuration   prometheus.Histogram
	materializedTeams prometheus.Gauge
	queries           *prometheus.CounterVec
	lazyRebuilds      prometheus.Counter
	layoutFallbacks   prometheus.Counter
}

// New registers every instrument on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		refreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "view_refreshes_total",
			Help:      "Tree view refreshes by result.",
		}, []string{"result"}),
		refreshDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "view_refresh_duration_seconds",
			Help:      "Time spent rebuilding the tree view.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		materializedTeams: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "view_teams",
			Help:      "Teams in the tree view after the last successful refresh.",
		}),
		queries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hierarchy_queries_total",
			Help:      "Hierarchy queries by shape (full, scoped) and path (fast, slow).",
		}, []string{"shape", "path"}),
		lazyRebuilds: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "view_lazy_rebuilds_total",
			Help:      "Fast-path queries that found no tree view and rebuilt it.",
		}),
		layoutFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "layout_fallbacks_total",
			Help:      "Layouts that failed and returned unpositioned nodes.",
		}),
	}
}

// ObserveRefresh records one refresh attempt.
func (m *Metrics) ObserveRefresh(d time.Duration, teams int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.refreshes.WithLabelValues("error").Inc()
		return
	}
	m.refreshes.WithLabelValues("ok").Inc()
	m.refreshDuration.Observe(d.Seconds())
	m.materializedTeams.Set(float64(teams))
}

// ObserveQuery counts a hierarchy query.
func (m *Metrics) ObserveQuery(shape, path string) {
	if m == nil {
		return
	}
	m.queries.WithLabelValues(shape, path).Inc()
}

// ObserveLazyRebuild counts a fast-path query that had to build the view.
func (m *Metrics) ObserveLazyRebuild() {
	if m == nil {
		return
	}
	m.lazyRebuilds.Inc()
}

// ObserveLayoutFallback counts a layout that fell back to zero positions.
func (m *Metrics) ObserveLayoutFallback() {
	if m == nil {
		return
	}
	m.layoutFallbacks.Inc()
}

// WriteTextfile writes every metric in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.Registry)
}
