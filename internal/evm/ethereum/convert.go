package ethereum

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/goodnatureofminers/evm-tx-exporter/internal/evm/chain"
	"github.com/goodnatureofminers/evm-tx-exporter/internal/evm/model"
)

// JSON shapes are decoded field by field instead of through types.Transaction so
// chain-specific transaction types (such as OP-stack deposits) do not fail decoding.

type rpcBlock struct {
	Number       *hexutil.Big   `json:"number"`
	Hash         *common.Hash   `json:"hash"`
	Timestamp    hexutil.Uint64 `json:"timestamp"`
	Transactions []common.Hash  `json:"transactions"`
}

type rpcTransaction struct {
	Hash                 common.Hash     `json:"hash"`
	Nonce                hexutil.Uint64  `json:"nonce"`
	BlockHash            *common.Hash    `json:"blockHash"`
	BlockNumber          *hexutil.Big    `json:"blockNumber"`
	TransactionIndex     *hexutil.Uint64 `json:"transactionIndex"`
	From                 *common.Address `json:"from"`
	To                   *common.Address `json:"to"`
	Value                *hexutil.Big    `json:"value"`
	Gas                  hexutil.Uint64  `json:"gas"`
	GasPrice             *hexutil.Big    `json:"gasPrice"`
	MaxFeePerGas         *hexutil.Big    `json:"maxFeePerGas"`
	MaxPriorityFeePerGas *hexutil.Big    `json:"maxPriorityFeePerGas"`
	Input                string          `json:"input"`
	Type                 hexutil.Uint64  `json:"type"`
}

type rpcReceipt struct {
	TransactionHash   common.Hash     `json:"transactionHash"`
	GasUsed           hexutil.Uint64  `json:"gasUsed"`
	CumulativeGasUsed hexutil.Uint64  `json:"cumulativeGasUsed"`
	EffectiveGasPrice *hexutil.Big    `json:"effectiveGasPrice"`
	Status            *hexutil.Uint64 `json:"status"`
	ContractAddress   *common.Address `json:"contractAddress"`
	Root              string          `json:"root"`
}

var errMissingNumber = errors.New("missing block number")

func (b *rpcBlock) toBlock() (*chain.Block, error) {
	if b.Number == nil {
		return nil, errMissingNumber
	}
	number, err := uint64FromBig(b.Number.ToInt())
	if err != nil {
		return nil, fmt.Errorf("block number: %w", err)
	}

	hashes := make([]string, len(b.Transactions))
	for i, h := range b.Transactions {
		hashes[i] = h.Hex()
	}

	block := &chain.Block{
		Number:            number,
		Timestamp:         uint64(b.Timestamp),
		TransactionHashes: hashes,
	}
	if b.Hash != nil {
		block.Hash = b.Hash.Hex()
	}
	return block, nil
}

func (t *rpcTransaction) toModel() (*model.Transaction, error) {
	tx := &model.Transaction{
		Hash:                 t.Hash.Hex(),
		Nonce:                uint64(t.Nonce),
		From:                 addressString(t.From),
		To:                   addressString(t.To),
		Value:                bigInt(t.Value),
		Gas:                  uint64(t.Gas),
		GasPrice:             bigInt(t.GasPrice),
		Input:                t.Input,
		MaxFeePerGas:         bigInt(t.MaxFeePerGas),
		MaxPriorityFeePerGas: bigInt(t.MaxPriorityFeePerGas),
		Type:                 uint64(t.Type),
	}
	if t.TransactionIndex != nil {
		idx := uint64(*t.TransactionIndex)
		tx.TransactionIndex = &idx
	}
	if t.BlockNumber != nil {
		number, err := uint64FromBig(t.BlockNumber.ToInt())
		if err != nil {
			return nil, fmt.Errorf("tx %s block number: %w", tx.Hash, err)
		}
		tx.BlockNumber = &number
	}
	if t.BlockHash != nil {
		h := t.BlockHash.Hex()
		tx.BlockHash = &h
	}
	return tx, nil
}

func (r *rpcReceipt) toModel() *model.Receipt {
	return &model.Receipt{
		TransactionHash:   r.TransactionHash.Hex(),
		GasUsed:           uint64(r.GasUsed),
		CumulativeGasUsed: uint64(r.CumulativeGasUsed),
		EffectiveGasPrice: bigInt(r.EffectiveGasPrice),
		Status:            receiptStatus(r.Status),
		ContractAddress:   addressString(r.ContractAddress),
		Root:              r.Root,
	}
}

// receiptStatus leaves pre-Byzantium receipts, which carry a root instead of a status, without a status.
func receiptStatus(status *hexutil.Uint64) model.ReceiptStatus {
	if status == nil {
		return ""
	}
	switch uint64(*status) {
	case 1:
		return model.ReceiptSuccess
	case 0:
		return model.ReceiptReverted
	default:
		return ""
	}
}

func addressString(addr *common.Address) *string {
	if addr == nil {
		return nil
	}
	s := strings.ToLower(addr.Hex())
	return &s
}

func bigInt(v *hexutil.Big) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v.ToInt())
}

func uint64FromBig(v *big.Int) (uint64, error) {
	if v.Sign() < 0 || !v.IsUint64() {
		return 0, fmt.Errorf("value %s out of uint64 range", v)
	}
	return v.Uint64(), nil
}
