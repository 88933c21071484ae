package ethereum

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/event"
	"github.com/goodnatureofminers/evm-tx-exporter/internal/pkg/ethrpc"
	"go.uber.org/zap"
)

const headBufferSize = 16

// SubscribeNewBlocks streams new block numbers into sink. Websocket and IPC transports
// use a newHeads subscription; HTTP falls back to polling eth_blockNumber.
func (s *Source) SubscribeNewBlocks(ctx context.Context, sink chan<- uint64) (ethereum.Subscription, error) {
	if !s.rpc.SupportsSubscriptions() {
		s.logger.Info("transport has no subscriptions, polling for new blocks", zap.Duration("interval", s.pollInterval))
		return s.pollNewBlocks(ctx, sink), nil
	}

	heads := make(chan *ethrpc.Header, headBufferSize)
	sub, err := s.rpc.SubscribeNewHeads(ctx, heads)
	if err != nil {
		return nil, fmt.Errorf("subscribe new heads: %w", err)
	}

	return event.NewSubscription(func(quit <-chan struct{}) error {
		defer sub.Unsubscribe()
		for {
			select {
			case <-quit:
				return nil
			case err := <-sub.Err():
				return err
			case head := <-heads:
				if head == nil || head.Number == nil || !head.Number.ToInt().IsUint64() {
					continue
				}
				select {
				case sink <- head.Number.ToInt().Uint64():
				case <-quit:
					return nil
				}
			}
		}
	}), nil
}

// pollNewBlocks emits the current head on the first poll, then every number above the
// last emitted one as the head advances.
func (s *Source) pollNewBlocks(ctx context.Context, sink chan<- uint64) ethereum.Subscription {
	return event.NewSubscription(func(quit <-chan struct{}) error {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			select {
			case <-quit:
				cancel()
			case <-ctx.Done():
			}
		}()

		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()

		var last uint64
		polled := false
		for {
			latest, err := s.LatestHeight(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("poll head: %w", err)
			}

			next := latest
			if polled {
				next = last + 1
			}
			for ; next <= latest; next++ {
				select {
				case sink <- next:
				case <-ctx.Done():
					return nil
				}
			}
			if !polled || latest > last {
				last = latest
			}
			polled = true

			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	})
}
