package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/goodnatureofminers/evm-tx-exporter/internal/evm/model"
	"github.com/goodnatureofminers/evm-tx-exporter/pkg/safe"
)

const insertTransactionsColumns = `(
	hash,
	nonce,
	transaction_index,
	from_address,
	to_address,
	value,
	gas,
	gas_price,
	input,
	block_timestamp,
	block_number,
	block_hash,
	max_fee_per_gas,
	max_priority_fee_per_gas,
	transaction_type,
	receipt_gas_used,
	receipt_cumulative_gas_used,
	receipt_effective_gas_price,
	receipt_status,
	receipt_root,
	receipt_contract_address
) VALUES`

// InsertTransactions stores rows in a single batch. Either the whole batch is sent or none of it.
func (r *Repository) InsertTransactions(ctx context.Context, rows []model.WarehouseRow) error {
	start := time.Now()
	var err error
	defer func() {
		r.metrics.Observe("insert_transactions", err, start)
	}()

	if len(rows) == 0 {
		return nil
	}

	batch, err := r.conn.PrepareBatch(ctx, r.insertTransactionsQuery())
	if err != nil {
		return fmt.Errorf("prepare transactions batch: %w", err)
	}

	for _, row := range rows {
		if err = appendRow(batch, row); err != nil {
			_ = batch.Abort()
			return err
		}
	}

	if err = batch.Send(); err != nil {
		return fmt.Errorf("insert transactions: %w", err)
	}
	return nil
}

func (r *Repository) insertTransactionsQuery() string {
	return "INSERT INTO " + r.table + " " + insertTransactionsColumns
}

func appendRow(batch Batch, row model.WarehouseRow) error {
	txType, err := safe.Uint32(row.TransactionType)
	if err != nil {
		return fmt.Errorf("transaction %s type: %w", row.Hash, err)
	}

	if err := batch.Append(
		row.Hash,
		row.Nonce,
		row.TransactionIndex,
		row.FromAddress,
		row.ToAddress,
		row.Value,
		row.Gas,
		row.GasPrice,
		row.Input,
		row.BlockTimestamp,
		row.BlockNumber,
		row.BlockHash,
		row.MaxFeePerGas,
		row.MaxPriorityFeePerGas,
		txType,
		row.ReceiptGasUsed,
		row.ReceiptCumulativeGasUsed,
		row.ReceiptEffectiveGasPrice,
		row.ReceiptStatus,
		row.ReceiptRoot,
		row.ReceiptContractAddress,
	); err != nil {
		return fmt.Errorf("append transaction %s: %w", row.Hash, err)
	}
	return nil
}
