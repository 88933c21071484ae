// Package exporter runs the EVM transaction export pipeline: a historical backfill and a live
// block watcher both enrich transactions into a shared buffer that a flusher drains into the
// warehouse.
package exporter

import (
	"context"
	"errors"
	"time"

	"github.com/goodnatureofminers/evm-tx-exporter/internal/evm/model"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Config holds the pipeline settings.
type Config struct {
	Chain             model.Chain
	StartBlock        uint64
	FetchMissedBlocks bool
	BulkThreshold     int
	FlushInterval     time.Duration
	HighWatermark     int
	FlushRateLimit    int
	DedupeWindow      int
}

// Metrics groups the collectors of every pipeline component.
type Metrics struct {
	Enricher   EnricherMetrics
	Backfiller BackfillerMetrics
	Watcher    WatcherMetrics
	Flusher    FlusherMetrics
}

func (m Metrics) validate() error {
	if m.Enricher == nil || m.Backfiller == nil || m.Watcher == nil || m.Flusher == nil {
		return errors.New("exporter metrics are required")
	}
	return nil
}

// Service wires the pipeline components together.
type Service struct {
	logger            *zap.Logger
	fetchMissedBlocks bool
	guard             *OverlapGuard
	backfiller        *Backfiller
	watcher           *Watcher
	flusher           *Flusher
}

// NewService builds a Service with dependencies.
func NewService(
	source ChainSource,
	subscriber BlockSubscriber,
	warehouse Warehouse,
	health HealthReporter,
	metrics Metrics,
	cfg Config,
	logger *zap.Logger,
) (*Service, error) {
	if err := metrics.validate(); err != nil {
		return nil, err
	}
	if source == nil || subscriber == nil || warehouse == nil || health == nil {
		return nil, errors.New("exporter source, subscriber, warehouse and health reporter are required")
	}

	logger = logger.With(zap.String("chain", string(cfg.Chain)))

	flusher := NewFlusher(warehouse, health, metrics.Flusher, FlusherConfig{
		Threshold:     cfg.BulkThreshold,
		Interval:      cfg.FlushInterval,
		HighWatermark: cfg.HighWatermark,
		RateLimit:     cfg.FlushRateLimit,
	}, logger.Named("flusher"))
	enricher := NewEnricher(source, flusher, metrics.Enricher, logger.Named("enricher"))
	guard := NewOverlapGuard(cfg.DedupeWindow)
	backfiller := NewBackfiller(source, enricher, guard, metrics.Backfiller, cfg.StartBlock, logger.Named("backfiller"))

	return &Service{
		logger:            logger,
		fetchMissedBlocks: cfg.FetchMissedBlocks,
		guard:             guard,
		backfiller:        backfiller,
		watcher:           NewWatcher(subscriber, source, enricher, backfiller, guard, health, metrics.Watcher, logger.Named("watcher")),
		flusher:           flusher,
	}, nil
}

// Run starts the flusher, the optional backfill and the watcher, and blocks until the context
// is canceled. Whatever is still buffered is flushed before Run returns.
func (s *Service) Run(ctx context.Context) error {
	s.flusher.Start(ctx)
	defer s.flusher.Stop()

	g, gctx := errgroup.WithContext(ctx)
	if s.fetchMissedBlocks {
		// Live claims made before the backfill knows its range must survive until it gets there.
		s.guard.Pin()
		g.Go(func() error {
			if err := s.backfiller.Run(gctx); err != nil && gctx.Err() == nil {
				s.logger.Error("backfill aborted, continuing with live blocks only", zap.Error(err))
			}
			return nil
		})
	}
	g.Go(func() error {
		return s.watcher.Run(gctx)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}
