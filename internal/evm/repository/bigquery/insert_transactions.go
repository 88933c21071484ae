package bigquery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/goodnatureofminers/evm-tx-exporter/internal/evm/model"
	"github.com/goodnatureofminers/evm-tx-exporter/pkg/safe"
)

// InsertTransactions streams rows in one request. Rejected rows fail the whole call;
// rows BigQuery did accept are deduplicated on retry by their hash insert ID.
func (r *Repository) InsertTransactions(ctx context.Context, rows []model.WarehouseRow) error {
	start := time.Now()
	var err error
	defer func() {
		r.metrics.Observe("insert_transactions", err, start)
	}()

	if len(rows) == 0 {
		return nil
	}

	savers := make([]*transactionRow, 0, len(rows))
	for _, row := range rows {
		var saver *transactionRow
		if saver, err = newTransactionRow(row); err != nil {
			return err
		}
		savers = append(savers, saver)
	}

	if err = r.inserter.Put(ctx, savers); err != nil {
		var multi bigquery.PutMultiError
		if errors.As(err, &multi) {
			return fmt.Errorf("insert transactions: %d of %d rows rejected: %w", len(multi), len(rows), err)
		}
		return fmt.Errorf("insert transactions: %w", err)
	}
	return nil
}

// transactionRow is a bigquery.ValueSaver keyed by transaction hash.
type transactionRow struct {
	insertID string
	values   map[string]bigquery.Value
}

func (t *transactionRow) Save() (map[string]bigquery.Value, string, error) {
	return t.values, t.insertID, nil
}

func newTransactionRow(row model.WarehouseRow) (*transactionRow, error) {
	nonce, err := safe.Int64(row.Nonce)
	if err != nil {
		return nil, fmt.Errorf("transaction %s nonce: %w", row.Hash, err)
	}
	txType, err := safe.Int64(row.TransactionType)
	if err != nil {
		return nil, fmt.Errorf("transaction %s type: %w", row.Hash, err)
	}
	var index bigquery.Value
	if row.TransactionIndex != nil {
		v, err := safe.Int64(*row.TransactionIndex)
		if err != nil {
			return nil, fmt.Errorf("transaction %s index: %w", row.Hash, err)
		}
		index = v
	}

	return &transactionRow{
		insertID: row.Hash,
		values: map[string]bigquery.Value{
			"hash":                        row.Hash,
			"nonce":                       nonce,
			"transaction_index":           index,
			"from_address":                nullable(row.FromAddress),
			"to_address":                  nullable(row.ToAddress),
			"value":                       row.Value,
			"gas":                         row.Gas,
			"gas_price":                   nullable(row.GasPrice),
			"input":                       row.Input,
			"block_timestamp":             row.BlockTimestamp,
			"block_number":                nullable(row.BlockNumber),
			"block_hash":                  nullable(row.BlockHash),
			"max_fee_per_gas":             nullable(row.MaxFeePerGas),
			"max_priority_fee_per_gas":    nullable(row.MaxPriorityFeePerGas),
			"transaction_type":            txType,
			"receipt_gas_used":            row.ReceiptGasUsed,
			"receipt_cumulative_gas_used": row.ReceiptCumulativeGasUsed,
			"receipt_effective_gas_price": row.ReceiptEffectiveGasPrice,
			"receipt_status":              int64(row.ReceiptStatus),
			"receipt_root":                row.ReceiptRoot,
			"receipt_contract_address":    nullable(row.ReceiptContractAddress),
		},
	}, nil
}

func nullable(s *string) bigquery.Value {
	if s == nil {
		return nil
	}
	return *s
}
