package model

import (
	"errors"
	"fmt"
)

var (
	// ErrReceiptMismatch is returned when a receipt belongs to a different transaction.
	ErrReceiptMismatch = errors.New("receipt does not belong to transaction")
	// ErrTransactionMismatch is returned when the node answers a lookup with another transaction.
	ErrTransactionMismatch = errors.New("transaction does not match requested hash")
)

// Enrich merges the receipt-derived fields into tx and stamps the block timestamp.
// The receipt must carry the same transaction hash as tx.
func Enrich(tx Transaction, receipt Receipt, blockTimestamp uint64) (EnrichedTransaction, error) {
	if receipt.TransactionHash != tx.Hash {
		return EnrichedTransaction{}, fmt.Errorf("%w: tx %s, receipt %s", ErrReceiptMismatch, tx.Hash, receipt.TransactionHash)
	}

	return EnrichedTransaction{
		Transaction:       tx,
		GasUsed:           receipt.GasUsed,
		CumulativeGasUsed: receipt.CumulativeGasUsed,
		EffectiveGasPrice: receipt.EffectiveGasPrice,
		Status:            receipt.Status,
		ContractAddress:   receipt.ContractAddress,
		Root:              receipt.Root,
		BlockTimestamp:    blockTimestamp,
	}, nil
}
