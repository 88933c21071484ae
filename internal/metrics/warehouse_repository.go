package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	warehouseRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "warehouse_repository",
		Name:      "operations_total",
		Help:      "Count of warehouse repository operations.",
	}, []string{"operation", "warehouse", "chain", "status"})
	warehouseRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "warehouse_repository",
		Name:      "operation_duration_seconds",
		Help:      "Duration of warehouse repository operations.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 15, 20, 30},
	}, []string{"operation", "warehouse", "chain", "status"})
)

// WarehouseRepository tracks metrics for ClickHouse and BigQuery writes.
type WarehouseRepository struct {
	warehouse string
	chain     string
}

// NewWarehouseRepository creates a collector labelled with the warehouse kind.
func NewWarehouseRepository(warehouse, chain string) *WarehouseRepository {
	return &WarehouseRepository{warehouse: labelOrUnknown(warehouse), chain: labelOrUnknown(chain)}
}

// Observe records duration and status of a repository operation.
func (m WarehouseRepository) Observe(operation string, err error, started time.Time) {
	s := status(err)
	warehouseRequestsTotal.WithLabelValues(operation, m.warehouse, m.chain, s).Inc()
	warehouseRequestDuration.WithLabelValues(operation, m.warehouse, m.chain, s).Observe(time.Since(started).Seconds())
}
