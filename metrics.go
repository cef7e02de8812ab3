// SPDX-License-Identifier: GPL-3.0-or-later

package dnsload

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exports run progress as Prometheus metrics.
//
// Construct using [NewMetrics].
type Metrics struct {
	// Queries counts completed queries by outcome.
	Queries *prometheus.CounterVec

	// Inflight is the number of queries in flight.
	Inflight prometheus.Gauge

	// Latency observes the query latency in seconds.
	Latency prometheus.Histogram
}

// NewMetrics creates and registers the metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Queries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dnsload_queries_total",
			Help: "Completed queries by outcome",
		}, []string{"outcome"}),
		Inflight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dnsload_queries_inflight",
			Help: "Queries currently in flight",
		}),
		Latency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "dnsload_query_duration_seconds",
			Help:    "Query latency",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
	}
}

// outcomeLabel returns the outcome label for a result.
func outcomeLabel(r *QueryResult) string {
	switch {
	case r.Failure != nil:
		return r.Failure.Kind.String()
	case len(r.Addrs) == 0:
		return "no_records"
	default:
		return "success"
	}
}

func (m *Metrics) observe(r *QueryResult) {
	m.Queries.WithLabelValues(outcomeLabel(r)).Inc()
	m.Latency.Observe(r.Latency.Seconds())
}
