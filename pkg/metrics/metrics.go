package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsRecorded counts appended events by event type code.
	EventsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_events_recorded_total",
			Help: "Total number of events appended to the event log",
		},
		[]string{"event_type"},
	)

	// FanoutJobs counts dispatcher jobs by outcome (delivered|retried|dropped).
	FanoutJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_fanout_jobs_total",
			Help: "Total number of fan-out jobs processed",
		},
		[]string{"outcome"},
	)

	// FanoutRetries counts individual retry attempts for failed fan-out jobs.
	FanoutRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pulse_fanout_retry_total",
			Help: "Total number of fan-out job retry attempts",
		},
	)

	// FeedItemsCreated counts feed items written by activity type.
	FeedItemsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_feed_items_created_total",
			Help: "Total number of activity feed items created",
		},
		[]string{"activity_type"},
	)

	// FeedItemsDeleted counts retention cleanup deletions.
	FeedItemsDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pulse_feed_items_deleted_total",
			Help: "Total number of feed items removed by retention cleanup",
		},
	)

	// MilestoneAwards counts first-time milestone awards by type.
	MilestoneAwards = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_milestone_awards_total",
			Help: "Total number of milestones awarded",
		},
		[]string{"milestone_type"},
	)

	// CacheRequests counts analytics cache lookups by result (hit|miss|error).
	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_analytics_cache_requests_total",
			Help: "Total number of analytics cache lookups",
		},
		[]string{"result"},
	)

	// DispatchQueueDepth tracks jobs waiting in the async dispatcher.
	DispatchQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pulse_dispatch_queue_depth",
			Help: "Number of fan-out jobs queued for asynchronous processing",
		},
	)

	// AggregationDuration measures analytics query latencies by shape.
	AggregationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pulse_aggregation_duration_seconds",
			Help:    "Aggregation query latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pulse_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// AdminGate counts staff gate decisions (allowed|denied|error).
	AdminGate = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_admin_gate_total",
			Help: "Total number of staff authorization checks on admin routes",
		},
		[]string{"outcome"},
	)
)

// All returns every collector in this package so additional registries can
// expose them alongside their own series.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		EventsRecorded,
		FanoutJobs,
		FanoutRetries,
		FeedItemsCreated,
		FeedItemsDeleted,
		MilestoneAwards,
		CacheRequests,
		DispatchQueueDepth,
		AggregationDuration,
		APILatency,
		AdminGate,
	}
}
