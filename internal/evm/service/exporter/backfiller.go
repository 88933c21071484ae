package exporter

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// BlockFailure records a block the backfill could not export completely.
type BlockFailure struct {
	Number uint64
	Err    error
}

// BackfillReport summarizes a Backfill call.
type BackfillReport struct {
	From         uint64
	To           uint64
	Blocks       int
	Skipped      int
	Transactions int
	Failures     []BlockFailure
}

// Backfiller walks a closed block range in ascending order and enriches each block's transactions.
type Backfiller struct {
	source     ChainSource
	enricher   BlockEnricher
	guard      *OverlapGuard
	metrics    BackfillerMetrics
	logger     *zap.Logger
	startBlock uint64
	newBackOff func() backoff.BackOff
}

func NewBackfiller(
	source ChainSource,
	enricher BlockEnricher,
	guard *OverlapGuard,
	metrics BackfillerMetrics,
	startBlock uint64,
	logger *zap.Logger,
) *Backfiller {
	return &Backfiller{
		source:     source,
		enricher:   enricher,
		guard:      guard,
		metrics:    metrics,
		logger:     logger,
		startBlock: startBlock,
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
	}
}

// Run backfills from the configured start block to the node's head at the time of the call.
// Live claims up to that head stay pinned in the guard until Run returns.
func (b *Backfiller) Run(ctx context.Context) error {
	b.guard.Pin()
	defer b.guard.Unpin()

	head, err := backoff.Retry(ctx, func() (uint64, error) {
		return b.source.LatestHeight(ctx)
	},
		backoff.WithBackOff(b.newBackOff()),
		backoff.WithMaxTries(headLookupTries),
		backoff.WithNotify(func(err error, d time.Duration) {
			b.logger.Warn("head lookup failed, retrying", zap.Error(err), zap.Duration("backoff", d))
		}),
	)
	if err != nil {
		return fmt.Errorf("resolve head: %w", err)
	}

	if b.startBlock > head {
		b.logger.Info("start block is above head, nothing to backfill",
			zap.Uint64("start_block", b.startBlock),
			zap.Uint64("head", head),
		)
		return nil
	}

	b.guard.PinUpTo(head)
	b.logger.Info("backfill started", zap.Uint64("from", b.startBlock), zap.Uint64("to", head))
	report, err := b.Backfill(ctx, b.startBlock, head)
	b.logger.Info("backfill finished",
		zap.Uint64("from", report.From),
		zap.Uint64("to", report.To),
		zap.Int("blocks", report.Blocks),
		zap.Int("skipped_blocks", report.Skipped),
		zap.Int("transactions", report.Transactions),
		zap.Int("failed_blocks", len(report.Failures)),
		zap.Error(err),
	)
	return err
}

// Backfill processes every block in [from, to]. A failing block is recorded in the report and
// the sweep moves on; only context cancellation ends it early.
func (b *Backfiller) Backfill(ctx context.Context, from, to uint64) (report BackfillReport, err error) {
	started := time.Now()
	report = BackfillReport{From: from, To: to}
	defer func() {
		b.metrics.ObserveRange(err, report.Blocks, started)
	}()

	if from > to {
		return report, nil
	}

	for n := from; ; n++ {
		if err = ctx.Err(); err != nil {
			return report, err
		}

		count, claimed, blockErr := b.backfillBlock(ctx, n)
		if claimed {
			report.Blocks++
		} else {
			report.Skipped++
		}
		report.Transactions += count
		if blockErr != nil {
			report.Failures = append(report.Failures, BlockFailure{Number: n, Err: blockErr})
			b.logger.Error("backfill block failed", zap.Uint64("block", n), zap.Int("appended", count), zap.Error(blockErr))
		}

		if n == to {
			return report, nil
		}
	}
}

func (b *Backfiller) backfillBlock(ctx context.Context, n uint64) (count int, claimed bool, err error) {
	if !b.guard.ClaimBackfill(n) {
		b.logger.Debug("block already claimed, skipping", zap.Uint64("block", n))
		return 0, false, nil
	}

	started := time.Now()
	defer func() {
		b.metrics.ObserveBlock(err, count, started)
	}()

	block, err := b.source.FetchBlock(ctx, n)
	if err != nil {
		b.guard.Release(n)
		return 0, true, fmt.Errorf("fetch block %d: %w", n, err)
	}

	count, err = b.enricher.Enrich(ctx, block.TransactionHashes, block.Timestamp)
	if err != nil {
		return count, true, fmt.Errorf("enrich block %d: %w", n, err)
	}
	return count, true, nil
}
