package exporter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goodnatureofminers/evm-tx-exporter/internal/evm/model"
	"go.uber.org/zap"
)

// EnrichError reports where the enrichment of a block stopped. Transactions before Index were appended.
type EnrichError struct {
	Hash  string
	Index int
	Err   error
}

func (e *EnrichError) Error() string {
	return fmt.Sprintf("enrich transaction %d (%s): %v", e.Index, e.Hash, e.Err)
}

func (e *EnrichError) Unwrap() error {
	return e.Err
}

// Enricher fetches each transaction with its receipt and appends the merged record to the buffer.
type Enricher struct {
	source  ChainSource
	buffer  TransactionBuffer
	metrics EnricherMetrics
	logger  *zap.Logger
}

func NewEnricher(source ChainSource, buffer TransactionBuffer, metrics EnricherMetrics, logger *zap.Logger) *Enricher {
	return &Enricher{
		source:  source,
		buffer:  buffer,
		metrics: metrics,
		logger:  logger,
	}
}

// Enrich processes hashes one at a time, in order. The first failure stops the call and is
// returned as *EnrichError; records appended before it stay in the buffer.
// It returns the number of records appended.
func (e *Enricher) Enrich(ctx context.Context, hashes []string, blockTimestamp uint64) (int, error) {
	for i, hash := range hashes {
		if err := e.enrichTransaction(ctx, hash, blockTimestamp); err != nil {
			return i, &EnrichError{Hash: hash, Index: i, Err: err}
		}
	}
	return len(hashes), nil
}

func (e *Enricher) enrichTransaction(ctx context.Context, hash string, blockTimestamp uint64) (err error) {
	started := time.Now()
	defer func() {
		e.metrics.ObserveTransaction(err, started)
	}()

	tx, err := e.source.FetchTransaction(ctx, hash)
	if err != nil {
		return err
	}
	if !strings.EqualFold(tx.Hash, hash) {
		return fmt.Errorf("%w: requested %s, got %s", model.ErrTransactionMismatch, hash, tx.Hash)
	}
	receipt, err := e.source.FetchReceipt(ctx, hash)
	if err != nil {
		return err
	}
	if !strings.EqualFold(receipt.TransactionHash, hash) {
		return fmt.Errorf("%w: requested %s, got %s", model.ErrReceiptMismatch, hash, receipt.TransactionHash)
	}

	enriched, err := model.Enrich(*tx, *receipt, blockTimestamp)
	if err != nil {
		return err
	}
	if err = e.buffer.Add(ctx, enriched); err != nil {
		return fmt.Errorf("buffer transaction: %w", err)
	}
	e.logger.Debug("transaction enriched", zap.String("hash", hash))
	return nil
}
