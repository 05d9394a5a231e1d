package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/northbridge-data/analytics-join/internal/join"
)

// WorkerMetrics is shared by both ingestion loops; the stream label tells
// the customer and inventory loops apart.
type WorkerMetrics struct {
	MessagesProcessed  *prometheus.CounterVec
	MessagesRejected   *prometheus.CounterVec
	AckFailures        *prometheus.CounterVec
	ProcessingDuration *prometheus.HistogramVec
}

func NewWorkerMetrics(reg prometheus.Registerer) *WorkerMetrics {
	factory := promauto.With(reg)

	return &WorkerMetrics{
		MessagesProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: join.MetricsNamespace,
			Name:      "messages_processed_total",
			Help:      "Total number of messages processed and acknowledged",
		}, []string{"stream"}),
		MessagesRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: join.MetricsNamespace,
			Name:      "messages_rejected_total",
			Help:      "Total number of messages rejected without requeue",
		}, []string{"stream"}),
		AckFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: join.MetricsNamespace,
			Name:      "ack_failures_total",
			Help:      "Total number of failed ack or nack operations",
		}, []string{"stream"}),
		ProcessingDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: join.MetricsNamespace,
			Name:      "message_processing_duration_seconds",
			Help:      "Duration of per-message processing in seconds",
		}, []string{"stream"}),
	}
}
