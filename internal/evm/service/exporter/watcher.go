package exporter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/goodnatureofminers/evm-tx-exporter/internal/clock"
	"github.com/goodnatureofminers/evm-tx-exporter/internal/evm/chain"
	"go.uber.org/zap"
)

var errSubscriptionClosed = errors.New("block subscription closed")

// Watcher enriches every block announced by the node's new-block subscription.
type Watcher struct {
	subscriber BlockSubscriber
	source     ChainSource
	enricher   BlockEnricher
	gaps       RangeBackfiller
	guard      *OverlapGuard
	health     HealthReporter
	metrics    WatcherMetrics
	logger     *zap.Logger
	pacer      *clock.Pacer
	newBackOff func() backoff.BackOff

	// last is the highest block handled so far. Blocks the node skips announcing, for example
	// while resubscribing, are backfilled from it.
	last    uint64
	hasLast bool
}

func NewWatcher(
	subscriber BlockSubscriber,
	source ChainSource,
	enricher BlockEnricher,
	gaps RangeBackfiller,
	guard *OverlapGuard,
	health HealthReporter,
	metrics WatcherMetrics,
	logger *zap.Logger,
) *Watcher {
	return &Watcher{
		subscriber: subscriber,
		source:     source,
		enricher:   enricher,
		gaps:       gaps,
		guard:      guard,
		health:     health,
		metrics:    metrics,
		logger:     logger,
		pacer:      clock.NewPacer(defaultResubscribeDelay, maxResubscribeDelay, nil),
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
	}
}

// Run watches until the context is canceled, subscribing again whenever the subscription fails.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		subscribed, err := w.watch(ctx)
		w.health.SetNotServing(ComponentWatcher)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if subscribed {
			w.pacer.Reset()
		}

		w.logger.Warn("block subscription lost, resubscribing", zap.Error(err))
		if _, waitErr := w.pacer.Pause(ctx); waitErr != nil {
			return waitErr
		}
	}
}

func (w *Watcher) watch(ctx context.Context) (bool, error) {
	blocks := make(chan uint64, blockChannelSize)
	sub, err := w.subscriber.SubscribeNewBlocks(ctx, blocks)
	w.metrics.ObserveSubscribe(err)
	if err != nil {
		return false, fmt.Errorf("subscribe new blocks: %w", err)
	}
	defer sub.Unsubscribe()

	w.health.SetServing(ComponentWatcher)
	w.logger.Info("subscribed to new blocks")

	for {
		select {
		case <-ctx.Done():
			return true, ctx.Err()
		case err := <-sub.Err():
			if err == nil {
				return true, errSubscriptionClosed
			}
			return true, err
		case n := <-blocks:
			w.metrics.ObserveHead(n)
			w.handleBlock(ctx, n)
		}
	}
}

// handleBlock contains every failure of a live block: it is logged and the watcher moves on.
func (w *Watcher) handleBlock(ctx context.Context, n uint64) {
	w.fillGap(ctx, n)

	if !w.guard.Claim(n) {
		w.metrics.ObserveSkipped()
		w.logger.Debug("block already claimed, skipping", zap.Uint64("block", n))
		return
	}

	started := time.Now()
	count, err := w.processBlock(ctx, n)
	w.metrics.ObserveBlock(err, count, started)
	if err == nil || ctx.Err() != nil {
		return
	}

	var enrichErr *EnrichError
	if errors.As(err, &enrichErr) {
		w.logger.Error("live block enrichment stopped, dropping remaining transactions",
			zap.Uint64("block", n),
			zap.String("hash", enrichErr.Hash),
			zap.Int("index", enrichErr.Index),
			zap.Error(err),
		)
		return
	}
	w.logger.Error("live block failed", zap.Uint64("block", n), zap.Error(err))
}

// fillGap backfills the blocks between the last handled one and n.
func (w *Watcher) fillGap(ctx context.Context, n uint64) {
	if !w.hasLast {
		w.last, w.hasLast = n, true
		return
	}
	if n <= w.last {
		return
	}

	from, to := w.last+1, n-1
	w.last = n
	if from > to || w.gaps == nil {
		return
	}

	w.logger.Info("filling gap in announced blocks", zap.Uint64("from", from), zap.Uint64("to", to))
	if _, err := w.gaps.Backfill(ctx, from, to); err != nil && ctx.Err() == nil {
		w.logger.Error("gap backfill failed", zap.Uint64("from", from), zap.Uint64("to", to), zap.Error(err))
	}
}

func (w *Watcher) processBlock(ctx context.Context, n uint64) (int, error) {
	block, err := backoff.Retry(ctx, func() (*chain.Block, error) {
		block, err := w.source.FetchBlock(ctx, n)
		if err != nil && ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}
		return block, err
	},
		backoff.WithBackOff(w.newBackOff()),
		backoff.WithMaxTries(blockFetchTries),
	)
	if err != nil {
		w.guard.Release(n)
		return 0, fmt.Errorf("fetch block %d: %w", n, err)
	}

	count, err := w.enricher.Enrich(ctx, block.TransactionHashes, block.Timestamp)
	if err != nil {
		return count, fmt.Errorf("enrich block %d: %w", n, err)
	}
	return count, nil
}
