// Package chain defines interfaces and structs shared between EVM export components.
package chain

import (
	"context"

	"github.com/ethereum/go-ethereum"
	"github.com/goodnatureofminers/evm-tx-exporter/internal/evm/model"
)

// Block references a block by number with its timestamp and ordered transaction hashes.
type Block struct {
	Number            uint64
	Hash              string
	Timestamp         uint64
	TransactionHashes []string
}

// Source provides the node reads the exporter needs.
// Implementations return ethereum.NotFound when the node has no data for an identifier.
type Source interface {
	LatestHeight(ctx context.Context) (uint64, error)
	FetchBlock(ctx context.Context, number uint64) (*Block, error)
	FetchTransaction(ctx context.Context, hash string) (*model.Transaction, error)
	FetchReceipt(ctx context.Context, hash string) (*model.Receipt, error)
}

// BlockSubscriber delivers the numbers of newly produced blocks to sink until the
// subscription is unsubscribed or fails.
type BlockSubscriber interface {
	SubscribeNewBlocks(ctx context.Context, sink chan<- uint64) (ethereum.Subscription, error)
}
