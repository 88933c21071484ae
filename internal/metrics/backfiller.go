package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	backfillBlocksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "backfiller",
		Name:      "blocks_total",
		Help:      "Count of backfilled blocks.",
	}, []string{"chain", "status"})

	backfillBlockDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "backfiller",
		Name:      "block_duration_seconds",
		Help:      "Duration of backfilling a single block.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"chain", "status"})

	backfillBlockTransactions = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "backfiller",
		Name:      "block_transactions",
		Help:      "Number of transactions buffered per backfilled block.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1..2048
	}, []string{"chain"})

	backfillRangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "backfiller",
		Name:      "ranges_total",
		Help:      "Count of completed backfill ranges.",
	}, []string{"chain", "status"})

	backfillRangeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "backfiller",
		Name:      "range_duration_seconds",
		Help:      "Duration of a backfill range.",
		Buckets:   []float64{1, 5, 15, 30, 60, 300, 900, 1800, 3600, 7200},
	}, []string{"chain", "status"})

	backfillRangeSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "backfiller",
		Name:      "range_blocks",
		Help:      "Number of blocks in a backfill range.",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 12),
	}, []string{"chain"})
)

// Backfiller tracks metrics for historical range backfills.
type Backfiller struct {
	chain string
}

func NewBackfiller(chain string) *Backfiller {
	return &Backfiller{chain: labelOrUnknown(chain)}
}

// ObserveBlock records the outcome of a single block.
func (m Backfiller) ObserveBlock(err error, transactions int, started time.Time) {
	s := status(err)
	backfillBlocksTotal.WithLabelValues(m.chain, s).Inc()
	backfillBlockDuration.WithLabelValues(m.chain, s).Observe(time.Since(started).Seconds())
	backfillBlockTransactions.WithLabelValues(m.chain).Observe(float64(transactions))
}

// ObserveRange records a finished range.
func (m Backfiller) ObserveRange(err error, blocks int, started time.Time) {
	s := status(err)
	backfillRangesTotal.WithLabelValues(m.chain, s).Inc()
	backfillRangeDuration.WithLabelValues(m.chain, s).Observe(time.Since(started).Seconds())
	backfillRangeSize.WithLabelValues(m.chain).Observe(float64(blocks))
}
