package exporter

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/goodnatureofminers/evm-tx-exporter/internal/evm/chain"
	"github.com/goodnatureofminers/evm-tx-exporter/internal/evm/model"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	ChainSource interface {
		LatestHeight(ctx context.Context) (uint64, error)
		FetchBlock(ctx context.Context, number uint64) (*chain.Block, error)
		FetchTransaction(ctx context.Context, hash string) (*model.Transaction, error)
		FetchReceipt(ctx context.Context, hash string) (*model.Receipt, error)
	}
	BlockSubscriber interface {
		SubscribeNewBlocks(ctx context.Context, sink chan<- uint64) (ethereum.Subscription, error)
	}
	TransactionBuffer interface {
		Add(ctx context.Context, tx model.EnrichedTransaction) error
	}
	BlockEnricher interface {
		Enrich(ctx context.Context, hashes []string, blockTimestamp uint64) (int, error)
	}
	RangeBackfiller interface {
		Backfill(ctx context.Context, from, to uint64) (BackfillReport, error)
	}
	Warehouse interface {
		InsertTransactions(ctx context.Context, rows []model.WarehouseRow) error
	}
	HealthReporter interface {
		SetServing(component string)
		SetNotServing(component string)
	}

	EnricherMetrics interface {
		ObserveTransaction(err error, started time.Time)
	}
	BackfillerMetrics interface {
		ObserveBlock(err error, transactions int, started time.Time)
		ObserveRange(err error, blocks int, started time.Time)
	}
	WatcherMetrics interface {
		ObserveHead(number uint64)
		ObserveBlock(err error, transactions int, started time.Time)
		ObserveSkipped()
		ObserveSubscribe(err error)
	}
	FlusherMetrics interface {
		ObserveFlush(err error, items int, started time.Time)
		SetDepth(depth int)
	}
)
