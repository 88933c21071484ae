package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	flushTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "flusher",
		Name:      "flushes_total",
		Help:      "Count of bulk insert attempts.",
	}, []string{"chain", "status"})

	flushDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "flusher",
		Name:      "flush_duration_seconds",
		Help:      "Duration of a bulk insert.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 15, 20, 30},
	}, []string{"chain", "status"})

	flushSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "flusher",
		Name:      "flush_rows",
		Help:      "Number of rows per bulk insert.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 16),
	}, []string{"chain"})

	bufferDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "flusher",
		Name:      "buffer_depth",
		Help:      "Number of enriched transactions waiting to be flushed.",
	}, []string{"chain"})
)

// Flusher tracks the transaction buffer and its bulk inserts.
type Flusher struct {
	chain string
}

func NewFlusher(chain string) *Flusher {
	return &Flusher{chain: labelOrUnknown(chain)}
}

// ObserveFlush records a bulk insert attempt.
func (m Flusher) ObserveFlush(err error, items int, started time.Time) {
	s := status(err)
	flushTotal.WithLabelValues(m.chain, s).Inc()
	flushDuration.WithLabelValues(m.chain, s).Observe(time.Since(started).Seconds())
	flushSize.WithLabelValues(m.chain).Observe(float64(items))
}

// SetDepth reports the current buffer length.
func (m Flusher) SetDepth(depth int) {
	bufferDepth.WithLabelValues(m.chain).Set(float64(depth))
}
