package forwarder

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/northbridge-data/analytics-join/internal/join"
)

type ForwarderMetrics struct {
	BatchesSent      prometheus.Counter
	BatchesDropped   prometheus.Counter
	RecordsForwarded prometheus.Counter
	SendRetries      prometheus.Counter
	RequestDuration  prometheus.Histogram
}

func NewForwarderMetrics(reg prometheus.Registerer) *ForwarderMetrics {
	factory := promauto.With(reg)

	return &ForwarderMetrics{
		BatchesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: join.MetricsNamespace,
			Name:      "batches_sent_total",
			Help:      "Total number of analytics batches delivered to the sink",
		}),
		BatchesDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: join.MetricsNamespace,
			Name:      "batches_dropped_total",
			Help:      "Total number of analytics batches dropped after exhausting retries",
		}),
		RecordsForwarded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: join.MetricsNamespace,
			Name:      "records_forwarded_total",
			Help:      "Total number of analytics records delivered to the sink",
		}),
		SendRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: join.MetricsNamespace,
			Name:      "send_retries_total",
			Help:      "Total number of delivery attempt retries",
		}),
		RequestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: join.MetricsNamespace,
			Name:      "sink_request_duration_seconds",
			Help:      "Duration of HTTP requests to the analytics sink in seconds",
		}),
	}
}
