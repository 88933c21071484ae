// Package model defines domain models for EVM transaction export.
package model

import "math/big"

// Chain names the network being exported. It labels logs and metrics.
type Chain string

// ReceiptStatus is the execution outcome reported by a receipt.
type ReceiptStatus string

const (
	// ReceiptSuccess marks a transaction that executed successfully.
	ReceiptSuccess ReceiptStatus = "success"
	// ReceiptReverted marks a transaction whose execution reverted.
	ReceiptReverted ReceiptStatus = "reverted"
)

// Transaction holds the raw fields of a transaction as returned by the node.
// Pointer fields are absent for pending transactions or for transaction types that lack them.
type Transaction struct {
	Hash                 string
	Nonce                uint64
	TransactionIndex     *uint64
	From                 *string
	To                   *string
	Value                *big.Int
	Gas                  uint64
	GasPrice             *big.Int
	Input                string
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	Type                 uint64
	BlockNumber          *uint64
	BlockHash            *string
}

// Receipt holds the post-execution fields merged into an exported transaction.
type Receipt struct {
	TransactionHash   string
	GasUsed           uint64
	CumulativeGasUsed uint64
	EffectiveGasPrice *big.Int
	Status            ReceiptStatus
	ContractAddress   *string
	Root              string
}

// EnrichedTransaction is a transaction merged with its own receipt and the containing block's timestamp.
type EnrichedTransaction struct {
	Transaction
	GasUsed           uint64
	CumulativeGasUsed uint64
	EffectiveGasPrice *big.Int
	Status            ReceiptStatus
	ContractAddress   *string
	Root              string
	BlockTimestamp    uint64
}
