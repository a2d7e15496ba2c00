package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	SnapshotsTotal  *prometheus.CounterVec // result: created, merged, skipped
	GraphNodes      prometheus.Gauge
	GraphEdges      prometheus.Gauge
	GraphClusters   prometheus.Gauge
	CyclesTotal     *prometheus.CounterVec // outcome: completed, stopped, failed
	CycleDuration   prometheus.Histogram
	PrunedTotal     *prometheus.CounterVec // rule
	CoveragePercent *prometheus.GaugeVec   // category
	URLsInQueue     prometheus.Gauge
	CrawlsTotal     *prometheus.CounterVec // status, error_type
	CrawlDuration   *prometheus.HistogramVec
}

// New registers every collector against reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		SnapshotsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "graph_snapshots_total",
				Help: "Snapshots received by the graph engine.",
			},
			[]string{"result"},
		),
		GraphNodes: f.NewGauge(prometheus.GaugeOpts{
			Name: "graph_nodes",
			Help: "Current number of nodes in the exploration graph.",
		}),
		GraphEdges: f.NewGauge(prometheus.GaugeOpts{
			Name: "graph_edges",
			Help: "Current number of edges in the exploration graph.",
		}),
		GraphClusters: f.NewGauge(prometheus.GaugeOpts{
			Name: "graph_clusters",
			Help: "Number of clusters produced by the last mitigation cycle.",
		}),
		CyclesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mitigation_cycles_total",
				Help: "Mitigation cycles by outcome.",
			},
			[]string{"outcome"},
		),
		CycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "mitigation_cycle_duration_seconds",
			Help:    "Wall time of a mitigation cycle.",
			Buckets: []float64{.001, .01, .05, .1, .5, 1, 5, 15},
		}),
		PrunedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "graph_pruned_nodes_total",
				Help: "Nodes removed by the pruner, by rule.",
			},
			[]string{"rule"},
		),
		CoveragePercent: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "coverage_percentage",
				Help: "Coverage percentage per category at the last recorded cycle.",
			},
			[]string{"category"},
		),
		URLsInQueue: f.NewGauge(prometheus.GaugeOpts{
			Name: "urls_in_queue",
			Help: "Current number of URLs in the crawl queue.",
		}),
		CrawlsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawls_total",
				Help: "Total number of crawl attempts.",
			},
			[]string{"status", "error_type"},
		),
		CrawlDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crawl_duration_seconds",
				Help:    "Duration of crawl operations.",
				Buckets: []float64{1, 5, 10, 15, 30, 60, 120},
			},
			[]string{"domain"},
		),
	}
}
