// Package metrics holds the catalog service's Prometheus instruments.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Query kinds.
const (
	KindBrowse  = "browse"
	KindPreview = "preview"
	KindFacets  = "facets"
)

// Catalog records query and filter-state metrics. It implements
// state.Recorder.
type Catalog struct {
	queries            *prometheus.CounterVec
	queryDuration      *prometheus.HistogramVec
	matched            prometheus.Histogram
	snapshotSize       prometheus.Gauge
	persistFailures    *prometheus.CounterVec
	subscriberFailures prometheus.Counter
	activeSessions     prometheus.Gauge
}

// NewCatalog registers the catalog metrics with reg.
func NewCatalog(reg prometheus.Registerer) *Catalog {
	m := &Catalog{
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_queries_total",
			Help: "Catalog queries by kind and outcome.",
		}, []string{"kind", "outcome"}),
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "catalog_query_duration_seconds",
			Help:    "Time to fetch the snapshot and evaluate a catalog query.",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"kind"}),
		matched: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "catalog_query_matched_items",
			Help:    "Items matched by a catalog query before pagination.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
		snapshotSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "catalog_snapshot_items",
			Help: "Items in the most recently fetched catalog snapshot.",
		}),
		persistFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_filter_state_persist_failures_total",
			Help: "Filter-state repository failures by operation.",
		}, []string{"op"}),
		subscriberFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "catalog_filter_state_subscriber_failures_total",
			Help: "Filter-state subscribers that returned an error or panicked.",
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "catalog_filter_state_sessions",
			Help: "Browsing sessions with a live filter-state store.",
		}),
	}
	reg.MustRegister(
		m.queries, m.queryDuration, m.matched, m.snapshotSize,
		m.persistFailures, m.subscriberFailures, m.activeSessions,
	)
	return m
}

// ObserveQuery records one query. matched is ignored when err is non-nil.
func (m *Catalog) ObserveQuery(kind string, start time.Time, matched int, err error) {
	m.queryDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	if err != nil {
		m.queries.WithLabelValues(kind, "error").Inc()
		return
	}
	m.queries.WithLabelValues(kind, "ok").Inc()
	if kind != KindFacets {
		m.matched.Observe(float64(matched))
	}
}

// SetSnapshotSize records the size of the latest catalog snapshot.
func (m *Catalog) SetSnapshotSize(n int) {
	m.snapshotSize.Set(float64(n))
}

// SetActiveSessions records the number of live session stores.
func (m *Catalog) SetActiveSessions(n int) {
	m.activeSessions.Set(float64(n))
}

// PersistFailed counts a failed repository call.
func (m *Catalog) PersistFailed(op string) {
	m.persistFailures.WithLabelValues(op).Inc()
}

// SubscriberFailed counts a failed subscriber.
func (m *Catalog) SubscriberFailed() {
	m.subscriberFailures.Inc()
}
