package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	watcherBlocksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "watcher",
		Name:      "blocks_total",
		Help:      "Count of live blocks handled.",
	}, []string{"chain", "status"})

	watcherBlockDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "watcher",
		Name:      "block_duration_seconds",
		Help:      "Duration of handling a live block.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"chain", "status"})

	watcherBlockTransactions = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "watcher",
		Name:      "block_transactions",
		Help:      "Number of transactions buffered per live block.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	}, []string{"chain"})

	watcherSkippedBlocksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "watcher",
		Name:      "skipped_blocks_total",
		Help:      "Count of live blocks skipped because they were already claimed.",
	}, []string{"chain"})

	watcherSubscriptionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "watcher",
		Name:      "subscriptions_total",
		Help:      "Count of new block subscription attempts.",
	}, []string{"chain", "status"})

	watcherHead = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "watcher",
		Name:      "head_block",
		Help:      "Latest block number announced by the node.",
	}, []string{"chain"})
)

// Watcher tracks metrics for the live block watcher.
type Watcher struct {
	chain string
}

func NewWatcher(chain string) *Watcher {
	return &Watcher{chain: labelOrUnknown(chain)}
}

// ObserveHead records the newest announced block number.
func (m Watcher) ObserveHead(number uint64) {
	watcherHead.WithLabelValues(m.chain).Set(float64(number))
}

// ObserveBlock records handling of a live block.
func (m Watcher) ObserveBlock(err error, transactions int, started time.Time) {
	s := status(err)
	watcherBlocksTotal.WithLabelValues(m.chain, s).Inc()
	watcherBlockDuration.WithLabelValues(m.chain, s).Observe(time.Since(started).Seconds())
	watcherBlockTransactions.WithLabelValues(m.chain).Observe(float64(transactions))
}

// ObserveSkipped counts a block that another producer already claimed.
func (m Watcher) ObserveSkipped() {
	watcherSkippedBlocksTotal.WithLabelValues(m.chain).Inc()
}

// ObserveSubscribe records a subscription attempt.
func (m Watcher) ObserveSubscribe(err error) {
	watcherSubscriptionsTotal.WithLabelValues(m.chain, status(err)).Inc()
}
