package exporter

import (
	"context"
	"time"

	"github.com/goodnatureofminers/evm-tx-exporter/internal/evm/model"
	"github.com/goodnatureofminers/evm-tx-exporter/pkg/batcher"
	"go.uber.org/zap"
)

// FlusherConfig tunes the buffer and its flush schedule.
type FlusherConfig struct {
	Threshold     int
	Interval      time.Duration
	HighWatermark int
	RateLimit     int
}

// Flusher owns the transaction buffer and drains it into the warehouse in bulk.
// A failed insert keeps the rows buffered for the next tick.
type Flusher struct {
	batcher   *batcher.Batcher[model.EnrichedTransaction]
	warehouse Warehouse
	health    HealthReporter
	logger    *zap.Logger
	failures  int
}

func NewFlusher(warehouse Warehouse, health HealthReporter, metrics FlusherMetrics, cfg FlusherConfig, logger *zap.Logger) *Flusher {
	if cfg.Threshold <= 0 {
		cfg.Threshold = defaultBulkThreshold
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultFlushInterval
	}

	f := &Flusher{
		warehouse: warehouse,
		health:    health,
		logger:    logger,
	}
	f.batcher = batcher.New(
		logger,
		f.insert,
		cfg.Threshold,
		cfg.Interval,
		cfg.RateLimit,
		batcher.WithMetrics(metrics),
		batcher.WithHighWatermark(cfg.HighWatermark),
	)
	return f
}

// Add appends tx to the buffer.
func (f *Flusher) Add(ctx context.Context, tx model.EnrichedTransaction) error {
	return f.batcher.Add(ctx, tx)
}

// Len returns the number of buffered transactions.
func (f *Flusher) Len() int {
	return f.batcher.Len()
}

// Flush runs one flush attempt immediately and returns the number of rows exported.
func (f *Flusher) Flush(ctx context.Context) (int, error) {
	return f.batcher.Flush(ctx)
}

// Start begins periodic flushing.
func (f *Flusher) Start(ctx context.Context) {
	f.health.SetServing(ComponentFlusher)
	f.batcher.Start(ctx)
}

// Stop ends periodic flushing after a final flush of everything buffered.
func (f *Flusher) Stop() {
	f.batcher.Stop()
}

// insert runs under the batcher's flush lock, so failures needs no extra guarding.
func (f *Flusher) insert(ctx context.Context, txs []model.EnrichedTransaction) error {
	if err := f.warehouse.InsertTransactions(ctx, model.NewWarehouseRows(txs)); err != nil {
		f.failures++
		if f.failures == unhealthyFlushFailures {
			f.logger.Warn("warehouse inserts keep failing", zap.Int("consecutive_failures", f.failures))
			f.health.SetNotServing(ComponentFlusher)
		}
		return err
	}

	if f.failures >= unhealthyFlushFailures {
		f.logger.Info("warehouse inserts recovered", zap.Int("failed_attempts", f.failures))
		f.health.SetServing(ComponentFlusher)
	}
	f.failures = 0
	return nil
}
