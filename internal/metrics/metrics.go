// Package metrics defines the Prometheus instruments for the service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// EventsIngested counts events accepted into the ledger, by outcome.
	EventsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atlas_events_ingested_total",
		Help: "Events accepted into the ledger.",
	}, []string{"outcome"})

	// ConsumerProcessed counts stream messages handled per consumer group.
	ConsumerProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atlas_consumer_processed_total",
		Help: "Stream messages processed per consumer group.",
	}, []string{"group"})

	// ConsumerFailures counts handler failures per consumer group. Failed
	// messages stay in the pending entries list for recovery.
	ConsumerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atlas_consumer_failures_total",
		Help: "Stream message handler failures per consumer group.",
	}, []string{"group"})

	// QueryDuration observes retrieval latency per operation.
	QueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "atlas_query_duration_seconds",
		Help:    "Retrieval latency per operation.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	// ConsolidationCycles counts consolidation cycles, by outcome.
	ConsolidationCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atlas_consolidation_cycles_total",
		Help: "Consolidation cycles run.",
	}, []string{"outcome"})
)

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
