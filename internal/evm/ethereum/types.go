package ethereum

import (
	"context"

	"github.com/ethereum/go-ethereum"
	"github.com/goodnatureofminers/evm-tx-exporter/internal/pkg/ethrpc"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	// RPCClient is the JSON-RPC surface the source needs from the node.
	RPCClient interface {
		CallContext(ctx context.Context, result any, method string, args ...any) error
		SubscribeNewHeads(ctx context.Context, ch chan<- *ethrpc.Header) (ethereum.Subscription, error)
		SupportsSubscriptions() bool
	}
)
