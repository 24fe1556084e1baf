// Package metrics holds the Prometheus collectors for shortest-path queries
// and itinerary planning.
package metrics

import (
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

// Query results used as the "result" label.
const (
	ResultFound       = "found"
	ResultUnreachable = "unreachable"
	ResultCached      = "cached"
)

// Metrics groups the collectors. A nil *Metrics is valid and records
// nothing, so callers can pass it through unconditionally.
type Metrics struct {
	Queries       *prometheus.CounterVec
	Settled       prometheus.Histogram
	QueryDuration prometheus.Histogram
	SnapFailures  prometheus.Counter
	Plans         *prometheus.CounterVec
	PlanDuration  prometheus.Histogram
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Queries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tour_router",
			Name:      "path_queries_total",
			Help:      "Shortest-path queries by result.",
		}, []string{"result"}),
		Settled: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tour_router",
			Name:      "path_query_settled_nodes",
			Help:      "Nodes settled per shortest-path query.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 12),
		}),
		QueryDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tour_router",
			Name:      "path_query_duration_seconds",
			Help:      "Duration of shortest-path queries.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
		SnapFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: "tour_router",
			Name:      "snap_failures_total",
			Help:      "Waypoints that could not be mapped to a graph node.",
		}),
		Plans: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tour_router",
			Name:      "plans_total",
			Help:      "Itineraries planned by visit order.",
		}, []string{"order"}),
		PlanDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tour_router",
			Name:      "plan_duration_seconds",
			Help:      "Duration of itinerary planning.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
	}
}

// ObserveQuery records one PathFromTo call.
func (m *Metrics) ObserveQuery(result string, settled int, d time.Duration) {
	if m == nil {
		return
	}
	m.Queries.WithLabelValues(result).Inc()
	m.Settled.Observe(float64(settled))
	m.QueryDuration.Observe(d.Seconds())
}

// SnapFailed records a waypoint outside the graph.
func (m *Metrics) SnapFailed() {
	if m == nil {
		return
	}
	m.SnapFailures.Inc()
}

// ObservePlan records one finished plan.
func (m *Metrics) ObservePlan(order string, d time.Duration) {
	if m == nil {
		return
	}
	m.Plans.WithLabelValues(order).Inc()
	m.PlanDuration.Observe(d.Seconds())
}

// WriteText writes every metric family gathered from g in the Prometheus
// text exposition format.
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
