// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QueueItemsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "validation_queue_items_processed_total",
			Help: "Total number of queue items finished by workers",
		},
		[]string{"tier", "outcome"},
	)

	QueueItemsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "validation_queue_items_failed_total",
			Help: "Total number of queue items failed, by error code",
		},
		[]string{"tier", "error_code"},
	)

	QueueItemsClaimed = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "validation_queue_items_claimed",
			Help: "Number of queue items currently held by workers",
		},
		[]string{"tier"},
	)

	PanelDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "validation_panel_duration_seconds",
			Help:    "Wall-clock duration of one panel evaluation",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		},
		[]string{"tier"},
	)

	ProviderCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "validation_provider_calls_total",
			Help: "Verdict provider calls by persona and outcome",
		},
		[]string{"tier", "agent", "outcome"},
	)

	Escalations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "validation_escalations_total",
			Help: "Tier 3 items enqueued after Tier 2 completion",
		},
		[]string{"reason"},
	)

	JobTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "validation_job_transitions_total",
			Help: "Validation job status transitions",
		},
		[]string{"status"},
	)

	BatchContinuations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "validation_batch_continuations_total",
			Help: "Continuation batches scheduled because work remained after a batch budget",
		},
	)
)
