// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConsumerMessages counts handled messages by outcome (ack, nack, drop, skip).
	ConsumerMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_consumer_messages_total",
			Help: "Messages handled by durable consumers, by outcome",
		},
		[]string{"stream", "subject", "outcome"},
	)

	ConsumerHandlerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notification_consumer_handler_duration_seconds",
			Help:    "Duration of subject handler calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stream", "subject"},
	)

	ConsumerReclaimed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_consumer_reclaimed_total",
			Help: "Pending stream entries reclaimed for redelivery",
		},
		[]string{"stream"},
	)

	// ChannelDeliveries counts per-channel delivery attempts by outcome (confirmed, failed, skipped).
	ChannelDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_channel_deliveries_total",
			Help: "Channel delivery attempts by outcome",
		},
		[]string{"channel", "outcome"},
	)

	IndicatorSyncOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_indicator_sync_operations_total",
			Help: "Indicator notifications created, extended, pruned or deleted",
		},
		[]string{"indicator", "operation"},
	)

	ReminderOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_reminder_outcomes_total",
			Help: "Reminder firings by outcome",
		},
		[]string{"outcome"},
	)
)
