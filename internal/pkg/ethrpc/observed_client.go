// Package ethrpc wraps the go-ethereum JSON-RPC client with call metrics.
package ethrpc

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

type (
	RPCMetrics interface {
		Observe(operation string, err error, started time.Time)
	}
)

// Header is the subset of a newHeads notification the exporter uses.
type Header struct {
	Number    *hexutil.Big   `json:"number"`
	Hash      common.Hash    `json:"hash"`
	Timestamp hexutil.Uint64 `json:"timestamp"`
}

type ObservedClient struct {
	client     *rpc.Client
	rpcMetrics RPCMetrics
}

func NewObservedClient(client *rpc.Client, rpcMetrics RPCMetrics) *ObservedClient {
	return &ObservedClient{
		client:     client,
		rpcMetrics: rpcMetrics,
	}
}

// Dial connects to rawURL; ws:// and wss:// endpoints support subscriptions.
func Dial(ctx context.Context, rawURL string, rpcMetrics RPCMetrics) (*ObservedClient, error) {
	client, err := rpc.DialContext(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return NewObservedClient(client, rpcMetrics), nil
}

// CallContext performs a JSON-RPC call, labelling metrics with the method name.
func (r *ObservedClient) CallContext(ctx context.Context, result any, method string, args ...any) (err error) {
	started := time.Now()
	defer func() {
		r.rpcMetrics.Observe(method, err, started)
	}()
	return r.client.CallContext(ctx, result, method, args...)
}

// SubscribeNewHeads subscribes to newHeads notifications.
func (r *ObservedClient) SubscribeNewHeads(ctx context.Context, ch chan<- *Header) (sub ethereum.Subscription, err error) {
	started := time.Now()
	defer func() {
		r.rpcMetrics.Observe("eth_subscribe_newHeads", err, started)
	}()

	clientSub, err := r.client.EthSubscribe(ctx, ch, "newHeads")
	if err != nil {
		return nil, err
	}
	return clientSub, nil
}

// SupportsSubscriptions reports whether the transport can carry subscriptions.
func (r *ObservedClient) SupportsSubscriptions() bool {
	return r.client.SupportsSubscriptions()
}

func (r *ObservedClient) Close() {
	r.client.Close()
}
