// Package main runs the EVM transaction exporter.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	grpcMiddleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpcZap "github.com/grpc-ecosystem/go-grpc-middleware/logging/zap"
	grpcRecovery "github.com/grpc-ecosystem/go-grpc-middleware/recovery"
	grpcCtxTags "github.com/grpc-ecosystem/go-grpc-middleware/tags"
	grpcPrometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/goodnatureofminers/evm-tx-exporter/internal/evm/ethereum"
	"github.com/goodnatureofminers/evm-tx-exporter/internal/evm/model"
	"github.com/goodnatureofminers/evm-tx-exporter/internal/evm/repository/bigquery"
	"github.com/goodnatureofminers/evm-tx-exporter/internal/evm/repository/clickhouse"
	"github.com/goodnatureofminers/evm-tx-exporter/internal/evm/service/exporter"
	"github.com/goodnatureofminers/evm-tx-exporter/internal/metrics"
	"github.com/goodnatureofminers/evm-tx-exporter/internal/pkg/ethrpc"
	"github.com/goodnatureofminers/evm-tx-exporter/internal/transport"
)

const (
	warehouseClickHouse = "clickhouse"
	warehouseBigQuery   = "bigquery"
)

type config struct {
	Chain               string        `long:"chain" env:"EVM_EXPORTER_CHAIN" description:"chain name used in logs and metrics" required:"true"`
	RPCURL              string        `long:"rpc-url" env:"EVM_EXPORTER_RPC_URL" description:"JSON-RPC endpoint, ws:// enables head subscriptions" default:"http://127.0.0.1:8545"`
	RPCRateLimit        int           `long:"rpc-rate-limit" env:"EVM_EXPORTER_RPC_RATE_LIMIT" description:"max RPC calls per second (0 = unlimited)" default:"0"`
	PollInterval        time.Duration `long:"poll-interval" env:"EVM_EXPORTER_POLL_INTERVAL" description:"head polling period when subscriptions are unavailable" default:"2s"`
	StartBlock          uint64        `long:"start-block" env:"EVM_EXPORTER_START_BLOCK" description:"first block of the backfill range" default:"0"`
	FetchMissedBlocks   bool          `long:"fetch-missed-blocks" env:"EVM_EXPORTER_FETCH_MISSED_BLOCKS" description:"backfill from start-block to the head at startup (enabled unless the env var is false)"`
	BulkThreshold       int           `long:"bulk-threshold" env:"EVM_EXPORTER_BULK_THRESHOLD" description:"minimum buffered transactions before a flush" default:"5"`
	FlushInterval       time.Duration `long:"flush-interval" env:"EVM_EXPORTER_FLUSH_INTERVAL" description:"flush attempt period" default:"1s"`
	FlushRateLimit      int           `long:"flush-rate-limit" env:"EVM_EXPORTER_FLUSH_RATE_LIMIT" description:"max warehouse inserts per second (0 = unlimited)" default:"0"`
	BufferHighWatermark int           `long:"buffer-high-watermark" env:"EVM_EXPORTER_BUFFER_HIGH_WATERMARK" description:"buffer depth that triggers backpressure warnings" default:"100000"`
	DedupeWindow        int           `long:"dedupe-window" env:"EVM_EXPORTER_DEDUPE_WINDOW" description:"recent block numbers remembered to skip double enrichment (0 disables)" default:"256"`
	Warehouse           string        `long:"warehouse" env:"EVM_EXPORTER_WAREHOUSE" description:"destination warehouse" choice:"clickhouse" choice:"bigquery" default:"clickhouse"`
	Dataset             string        `long:"dataset" env:"EVM_EXPORTER_DATASET" description:"ClickHouse database or BigQuery dataset" default:"crypto_redstone"`
	Table               string        `long:"table" env:"EVM_EXPORTER_TABLE" description:"destination table" default:"transactions"`
	ClickhouseDSN       string        `long:"clickhouse-dsn" env:"EVM_EXPORTER_CLICKHOUSE_DSN" description:"ClickHouse DSN"`
	BigQueryProject     string        `long:"bigquery-project" env:"EVM_EXPORTER_BIGQUERY_PROJECT" description:"Google Cloud project"`
	BigQueryCredentials string        `long:"bigquery-credentials" env:"EVM_EXPORTER_BIGQUERY_CREDENTIALS" description:"service account key file"`
	MetricsAddr         string        `long:"metrics-addr" env:"EVM_EXPORTER_METRICS_ADDR" description:"Prometheus listener" default:":2112"`
	HealthAddr          string        `long:"health-addr" env:"EVM_EXPORTER_HEALTH_ADDR" description:"gRPC health listener (empty disables)" default:":2113"`
	DevLogging          bool          `long:"dev-logging" env:"EVM_EXPORTER_DEV_LOGGING" description:"human-readable logs"`
}

type warehouse interface {
	exporter.Warehouse
	io.Closer
	CheckTable(ctx context.Context) error
}

func main() {
	cfg := config{FetchMissedBlocks: true}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := flags.ParseArgs(&cfg, os.Args[1:]); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := newLogger(cfg.DevLogging)
	if err != nil {
		panic("can't initialize zap logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync()
	}()
	grpcZap.ReplaceGrpcLoggerV2(logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("evm exporter failed", zap.Error(err))
	}
}

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(ctx context.Context, cfg config, logger *zap.Logger) error {
	logger = logger.With(zap.String("chain", cfg.Chain))

	startMetricsServer(ctx, cfg.MetricsAddr, logger)

	health := transport.NewHealthHandler(logger.Named("health"), exporter.ComponentWatcher, exporter.ComponentFlusher)
	defer health.Shutdown()
	if err := startHealthServer(ctx, cfg.HealthAddr, health, logger); err != nil {
		return err
	}

	rpc, err := ethrpc.Dial(ctx, cfg.RPCURL, metrics.NewRPCClient(cfg.Chain))
	if err != nil {
		return fmt.Errorf("dial rpc %s: %w", cfg.RPCURL, err)
	}
	defer rpc.Close()

	repo, err := newWarehouse(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Warn("close warehouse", zap.Error(err))
		}
	}()
	if err := repo.CheckTable(ctx); err != nil {
		return err
	}

	source := ethereum.NewSource(rpc, cfg.RPCRateLimit, cfg.PollInterval, logger.Named("source"))
	svc, err := exporter.NewService(
		source,
		source,
		repo,
		health,
		exporter.Metrics{
			Enricher:   metrics.NewEnricher(cfg.Chain),
			Backfiller: metrics.NewBackfiller(cfg.Chain),
			Watcher:    metrics.NewWatcher(cfg.Chain),
			Flusher:    metrics.NewFlusher(cfg.Chain),
		},
		exporter.Config{
			Chain:             model.Chain(cfg.Chain),
			StartBlock:        cfg.StartBlock,
			FetchMissedBlocks: cfg.FetchMissedBlocks,
			BulkThreshold:     cfg.BulkThreshold,
			FlushInterval:     cfg.FlushInterval,
			HighWatermark:     cfg.BufferHighWatermark,
			FlushRateLimit:    cfg.FlushRateLimit,
			DedupeWindow:      cfg.DedupeWindow,
		},
		logger,
	)
	if err != nil {
		return err
	}

	logger.Info("starting evm exporter",
		zap.String("warehouse", cfg.Warehouse),
		zap.String("dataset", cfg.Dataset),
		zap.String("table", cfg.Table),
		zap.Uint64("start_block", cfg.StartBlock),
		zap.Bool("fetch_missed_blocks", cfg.FetchMissedBlocks),
	)
	return svc.Run(ctx)
}

func newWarehouse(ctx context.Context, cfg config) (warehouse, error) {
	repoMetrics := metrics.NewWarehouseRepository(cfg.Warehouse, cfg.Chain)
	switch cfg.Warehouse {
	case warehouseClickHouse:
		if cfg.ClickhouseDSN == "" {
			return nil, errors.New("ClickHouse DSN is required")
		}
		repo, err := clickhouse.NewRepository(cfg.ClickhouseDSN, cfg.Dataset, cfg.Table, repoMetrics)
		if err != nil {
			return nil, fmt.Errorf("init clickhouse repository: %w", err)
		}
		return repo, nil
	case warehouseBigQuery:
		repo, err := bigquery.NewRepository(ctx, cfg.BigQueryProject, cfg.BigQueryCredentials, cfg.Dataset, cfg.Table, repoMetrics)
		if err != nil {
			return nil, fmt.Errorf("init bigquery repository: %w", err)
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown warehouse %q", cfg.Warehouse)
	}
}

func startMetricsServer(ctx context.Context, addr string, logger *zap.Logger) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	s := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    http.DefaultMaxHeaderBytes,
	}
	go func() {
		<-ctx.Done()
		logger.Info("Shutting down the metrics server")
		if err := s.Shutdown(context.Background()); err != nil {
			logger.Error("Failed to shutdown metrics server", zap.Error(err))
		}
	}()
	go func() {
		logger.Info("Starting metrics server", zap.String("addr", addr))
		if err := s.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Failed to listen and serve", zap.Error(err))
		}
	}()
}

func startHealthServer(ctx context.Context, addr string, health *transport.HealthHandler, logger *zap.Logger) error {
	if addr == "" {
		return nil
	}
	chain := []grpc.UnaryServerInterceptor{
		grpcRecovery.UnaryServerInterceptor(),
		grpcCtxTags.UnaryServerInterceptor(),
		grpcPrometheus.UnaryServerInterceptor,
		grpcZap.UnaryServerInterceptor(logger),
	}
	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(grpcMiddleware.ChainUnaryServer(chain...)),
	)
	grpcPrometheus.EnableHandlingTimeHistogram()
	grpcPrometheus.Register(grpcServer)
	health.Register(grpcServer)

	socket, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen health %s: %w", addr, err)
	}
	go func() {
		logger.Info("Starting gRPC health server", zap.String("addr", addr))
		if serveErr := grpcServer.Serve(socket); serveErr != nil {
			logger.Error("gRPC health server stopped", zap.Error(serveErr))
		}
	}()
	go func() {
		<-ctx.Done()
		logger.Info("Shutting down gRPC server")
		grpcServer.GracefulStop()
	}()
	return nil
}
