// Package ethereum implements the chain interfaces over an EVM node's JSON-RPC API.
package ethereum

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/goodnatureofminers/evm-tx-exporter/internal/evm/chain"
	"github.com/goodnatureofminers/evm-tx-exporter/internal/evm/model"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"
)

const defaultPollInterval = 2 * time.Second

// Source implements chain.Source and chain.BlockSubscriber.
type Source struct {
	rpc          RPCClient
	limiter      ratelimit.Limiter
	pollInterval time.Duration
	logger       *zap.Logger
}

// NewSource creates a Source. rps caps RPC calls per second (zero disables the cap);
// pollInterval is used for head polling when the transport has no subscriptions.
func NewSource(rpc RPCClient, rps int, pollInterval time.Duration, logger *zap.Logger) *Source {
	limiter := ratelimit.NewUnlimited()
	if rps > 0 {
		limiter = ratelimit.New(rps)
	}
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &Source{
		rpc:          rpc,
		limiter:      limiter,
		pollInterval: pollInterval,
		logger:       logger,
	}
}

// LatestHeight returns the node's current head number.
func (s *Source) LatestHeight(ctx context.Context) (uint64, error) {
	var number hexutil.Uint64
	if err := s.call(ctx, &number, "eth_blockNumber"); err != nil {
		return 0, fmt.Errorf("get block number: %w", err)
	}
	return uint64(number), nil
}

// FetchBlock returns the block's timestamp and ordered transaction hashes.
func (s *Source) FetchBlock(ctx context.Context, number uint64) (*chain.Block, error) {
	var raw *rpcBlock
	if err := s.call(ctx, &raw, "eth_getBlockByNumber", hexutil.EncodeUint64(number), false); err != nil {
		return nil, fmt.Errorf("get block %d: %w", number, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("block %d: %w", number, ethereum.NotFound)
	}

	block, err := raw.toBlock()
	if err != nil {
		return nil, fmt.Errorf("decode block %d: %w", number, err)
	}
	return block, nil
}

// FetchTransaction returns the raw transaction fields for hash.
func (s *Source) FetchTransaction(ctx context.Context, hash string) (*model.Transaction, error) {
	var raw *rpcTransaction
	if err := s.call(ctx, &raw, "eth_getTransactionByHash", hash); err != nil {
		return nil, fmt.Errorf("get transaction %s: %w", hash, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("transaction %s: %w", hash, ethereum.NotFound)
	}
	return raw.toModel()
}

// FetchReceipt returns the receipt of the transaction identified by hash.
func (s *Source) FetchReceipt(ctx context.Context, hash string) (*model.Receipt, error) {
	var raw *rpcReceipt
	if err := s.call(ctx, &raw, "eth_getTransactionReceipt", hash); err != nil {
		return nil, fmt.Errorf("get receipt %s: %w", hash, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("receipt %s: %w", hash, ethereum.NotFound)
	}
	return raw.toModel(), nil
}

func (s *Source) call(ctx context.Context, result any, method string, args ...any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.limiter.Take()
	return s.rpc.CallContext(ctx, result, method, args...)
}
