package join

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsNamespace is the prometheus namespace for all analytics-join metrics.
const MetricsNamespace = "analytics_join"

type JoinerMetrics struct {
	CustomersUpserted prometheus.Counter
	ProductsUpserted  prometheus.Counter
	PairsEmitted      prometheus.Counter
	PairsDeduplicated prometheus.Counter
}

func NewJoinerMetrics(reg prometheus.Registerer) *JoinerMetrics {
	factory := promauto.With(reg)

	return &JoinerMetrics{
		CustomersUpserted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "customers_upserted_total",
			Help:      "Total number of customer snapshots upserted into the store",
		}),
		ProductsUpserted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "products_upserted_total",
			Help:      "Total number of product snapshots upserted into the store",
		}),
		PairsEmitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "pairs_emitted_total",
			Help:      "Total number of analytics records built for new pairs",
		}),
		PairsDeduplicated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "pairs_deduplicated_total",
			Help:      "Total number of pair candidates skipped because they were already emitted",
		}),
	}
}
