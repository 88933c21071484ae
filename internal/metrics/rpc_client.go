package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rpcRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "rpc_client",
		Name:      "operations_total",
		Help:      "Count of node RPC operations.",
	}, []string{"operation", "chain", "status"})
	rpcRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "rpc_client",
		Name:      "operation_duration_seconds",
		Help:      "Duration of node RPC operations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation", "chain", "status"})
)

// RPCClient tracks metrics for JSON-RPC calls to the chain node.
type RPCClient struct {
	chain string
}

// NewRPCClient constructs a metrics collector for RPC calls.
func NewRPCClient(chain string) *RPCClient {
	return &RPCClient{chain: labelOrUnknown(chain)}
}

// Observe records a single RPC call outcome and duration.
func (m RPCClient) Observe(operation string, err error, started time.Time) {
	s := status(err)
	rpcRequestsTotal.WithLabelValues(operation, m.chain, s).Inc()
	rpcRequestDuration.WithLabelValues(operation, m.chain, s).Observe(time.Since(started).Seconds())
}
