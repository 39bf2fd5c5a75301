package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Queue
	MessagesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trailmark_messages_processed_total",
			Help: "Messages handled per topic, by outcome (ack, requeue, dead_letter)",
		},
		[]string{"topic", "outcome"},
	)

	MessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trailmark_messages_published_total",
			Help: "Messages published per topic",
		},
		[]string{"topic"},
	)

	HandleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trailmark_message_handle_duration_seconds",
			Help:    "Time spent handling one message",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"topic"},
	)

	// Enrichment
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trailmark_summary_cache_hits_total",
			Help: "Raw events served from the page cache",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trailmark_summary_cache_misses_total",
			Help: "Raw events that required a summarizer call",
		},
	)

	SummarizerCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trailmark_summarizer_calls_total",
			Help: "Summarizer calls by outcome (success, error, fallback, rejected)",
		},
		[]string{"outcome"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trailmark_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Persistence
	UnknownRootLabels = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trailmark_unknown_root_labels_total",
			Help: "Labels skipped because their root category does not exist",
		},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trailmark_notifications_total",
			Help: "Notification dispatches by outcome (sent, error)",
		},
		[]string{"outcome"},
	)
)
