package model

import (
	"math/big"
	"strconv"
)

// WarehouseRow is the flat, string-encoded projection of an EnrichedTransaction.
// Large integers are decimal strings so no sink loses precision on them.
type WarehouseRow struct {
	Hash                     string
	Nonce                    uint64
	TransactionIndex         *uint64
	FromAddress              *string
	ToAddress                *string
	Value                    string
	Gas                      string
	GasPrice                 *string
	Input                    string
	BlockTimestamp           string
	BlockNumber              *string
	BlockHash                *string
	MaxFeePerGas             *string
	MaxPriorityFeePerGas     *string
	TransactionType          uint64
	ReceiptGasUsed           string
	ReceiptCumulativeGasUsed string
	ReceiptEffectiveGasPrice string
	ReceiptStatus            uint8
	ReceiptRoot              string
	ReceiptContractAddress   *string
}

// NewWarehouseRow projects tx into its warehouse representation.
func NewWarehouseRow(tx EnrichedTransaction) WarehouseRow {
	row := WarehouseRow{
		Hash:                     tx.Hash,
		Nonce:                    tx.Nonce,
		TransactionIndex:         tx.TransactionIndex,
		FromAddress:              tx.From,
		ToAddress:                tx.To,
		Value:                    decimal(tx.Value),
		Gas:                      strconv.FormatUint(tx.Gas, 10),
		GasPrice:                 optionalDecimal(tx.GasPrice),
		Input:                    tx.Input,
		BlockTimestamp:           strconv.FormatUint(tx.BlockTimestamp, 10),
		BlockHash:                tx.BlockHash,
		MaxFeePerGas:             optionalDecimal(tx.MaxFeePerGas),
		MaxPriorityFeePerGas:     optionalDecimal(tx.MaxPriorityFeePerGas),
		TransactionType:          tx.Type,
		ReceiptGasUsed:           strconv.FormatUint(tx.GasUsed, 10),
		ReceiptCumulativeGasUsed: strconv.FormatUint(tx.CumulativeGasUsed, 10),
		ReceiptEffectiveGasPrice: decimal(tx.EffectiveGasPrice),
		ReceiptStatus:            StatusCode(tx.Status),
		ReceiptRoot:              tx.Root,
		ReceiptContractAddress:   tx.ContractAddress,
	}
	if tx.BlockNumber != nil {
		n := strconv.FormatUint(*tx.BlockNumber, 10)
		row.BlockNumber = &n
	}
	return row
}

// NewWarehouseRows projects every transaction, preserving order.
func NewWarehouseRows(txs []EnrichedTransaction) []WarehouseRow {
	rows := make([]WarehouseRow, 0, len(txs))
	for _, tx := range txs {
		rows = append(rows, NewWarehouseRow(tx))
	}
	return rows
}

// StatusCode encodes a receipt status: 1 for success, 0 for anything else.
func StatusCode(s ReceiptStatus) uint8 {
	if s == ReceiptSuccess {
		return 1
	}
	return 0
}

func decimal(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func optionalDecimal(v *big.Int) *string {
	if v == nil {
		return nil
	}
	s := v.String()
	return &s
}
