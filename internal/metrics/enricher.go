package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	enrichTransactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "enricher",
		Name:      "transactions_total",
		Help:      "Count of transaction enrichment attempts.",
	}, []string{"chain", "status"})

	enrichTransactionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "enricher",
		Name:      "transaction_duration_seconds",
		Help:      "Duration of fetching and merging a transaction with its receipt.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"chain", "status"})
)

// Enricher tracks per-transaction enrichment.
type Enricher struct {
	chain string
}

func NewEnricher(chain string) *Enricher {
	return &Enricher{chain: labelOrUnknown(chain)}
}

// ObserveTransaction records one enrichment outcome and duration.
func (m Enricher) ObserveTransaction(err error, started time.Time) {
	s := status(err)
	enrichTransactionsTotal.WithLabelValues(m.chain, s).Inc()
	enrichTransactionDuration.WithLabelValues(m.chain, s).Observe(time.Since(started).Seconds())
}
