package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the engine-level metrics shared by every query.
type Metrics struct {
	QueriesStarted     *prometheus.CounterVec
	QueriesFinished    *prometheus.CounterVec
	QueryDuration      *prometheus.HistogramVec
	SearchIterations   prometheus.Histogram
	PathsEvaluated     prometheus.Counter
	InvocationFailures *prometheus.CounterVec
	ProjectedItems     prometheus.Counter
	ProjectionPackets  *prometheus.CounterVec
	GraphBuilds        prometheus.Counter

	NATSConnected prometheus.Gauge
}

// NewMetrics creates the engine core metrics
func NewMetrics() *Metrics {
	return &Metrics{
		QueriesStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "query",
				Name:      "started_total",
				Help:      "Total number of queries submitted",
			},
			[]string{"mode"},
		),
		QueriesFinished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "query",
				Name:      "finished_total",
				Help:      "Total number of queries finished by outcome (completed, failed, cancelled)",
			},
			[]string{"mode", "outcome"},
		),
		QueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: "query",
				Name:      "duration_seconds",
				Help:      "Query wall time from submission to stream completion",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"mode"},
		),
		SearchIterations: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: "search",
				Name:      "iterations",
				Help:      "Number of nodes expanded per path search",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
			},
		),
		PathsEvaluated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "search",
				Name:      "paths_evaluated_total",
				Help:      "Total number of candidate paths evaluated",
			},
		),
		InvocationFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "operation",
				Name:      "invocation_failures_total",
				Help:      "Total number of failed operation invocations",
			},
			[]string{"operation"},
		),
		ProjectedItems: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "projection",
				Name:      "items_total",
				Help:      "Total number of items projected",
			},
		),
		ProjectionPackets: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "projection",
				Name:      "packets_total",
				Help:      "Total number of distributed projection packets by placement",
			},
			[]string{"placement"},
		),
		GraphBuilds: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "graph",
				Name:      "builds_total",
				Help:      "Total number of schema graphs built",
			},
		),
		NATSConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "nats",
				Name:      "connected",
				Help:      "NATS connection status (0=disconnected, 1=connected)",
			},
		),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.QueriesStarted,
		m.QueriesFinished,
		m.QueryDuration,
		m.SearchIterations,
		m.PathsEvaluated,
		m.InvocationFailures,
		m.ProjectedItems,
		m.ProjectionPackets,
		m.GraphBuilds,
		m.NATSConnected,
	}
}
