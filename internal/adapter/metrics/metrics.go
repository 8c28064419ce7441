package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// TrafficMetrics holds all Prometheus metrics for the traffic service.
type TrafficMetrics struct {
	EventsRecorded *prometheus.CounterVec
	RecordFailures *prometheus.CounterVec
	EventsEvicted  prometheus.Counter
	QueriesTotal   *prometheus.CounterVec
	ArchiveBatches prometheus.Counter
	ArchiveEvents  prometheus.Counter
}

// NewTrafficMetrics initializes and registers the Prometheus metrics.
func NewTrafficMetrics() *TrafficMetrics {
	return &TrafficMetrics{
		EventsRecorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "footfall",
			Subsystem: "ingest",
			Name:      "events_recorded_total",
			Help:      "Total number of traffic events recorded, by endpoint and bot classification.",
		}, []string{"endpoint", "bot"}),
		RecordFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "footfall",
			Subsystem: "ingest",
			Name:      "record_failures_total",
			Help:      "Total number of swallowed record-path failures, by stage.",
		}, []string{"stage"}), // stage: append, counter, batch
		EventsEvicted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "footfall",
			Subsystem: "store",
			Name:      "events_evicted_total",
			Help:      "Total number of detail records evicted by the capacity cap or TTL sweep.",
		}),
		QueriesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "footfall",
			Subsystem: "query",
			Name:      "requests_total",
			Help:      "Total number of traffic queries served, by kind and status.",
		}, []string{"kind", "status"}), // kind: full, incremental, snapshot, series, export
		ArchiveBatches: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "footfall",
			Subsystem: "archive",
			Name:      "batches_total",
			Help:      "Total number of batches written to the archive sink.",
		}),
		ArchiveEvents: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "footfall",
			Subsystem: "archive",
			Name:      "events_total",
			Help:      "Total number of events written to the archive sink.",
		}),
	}
}
