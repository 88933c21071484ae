// Package main applies the ClickHouse schema for the exporter's transactions table.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	_ "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/clickhouse"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"
)

type config struct {
	ClickhouseDSN string `long:"clickhouse-dsn" env:"EVM_EXPORTER_CLICKHOUSE_DSN" default:"clickhouse://localhost:9000/crypto_redstone" description:"ClickHouse DSN; the database in the path receives the transactions table"`
	MigrationsDir string `long:"migrations-dir" env:"EVM_EXPORTER_MIGRATIONS_DIR" default:"migrations/clickhouse" description:"Path to ClickHouse migration files"`
	Down          bool   `long:"down" description:"roll back every applied migration"`
}

type migrateLogger struct {
	logger *zap.Logger
}

func (l migrateLogger) Printf(format string, v ...any) {
	l.logger.Debug(fmt.Sprintf(format, v...))
}

func (l migrateLogger) Verbose() bool {
	return l.logger.Core().Enabled(zap.DebugLevel)
}

func main() {
	cfg := config{}
	if _, err := flags.Parse(&cfg); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		panic("can't initialize zap logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runMigrations(ctx, cfg, logger); err != nil {
		logger.Fatal("migration run failed", zap.Error(err))
	}
}

func runMigrations(ctx context.Context, cfg config, logger *zap.Logger) error {
	sourceURL, err := migrationsSourceURL(cfg.MigrationsDir)
	if err != nil {
		return err
	}

	m, err := migrate.New(sourceURL, cfg.ClickhouseDSN)
	if err != nil {
		return fmt.Errorf("init migrate: %w", err)
	}
	m.Log = migrateLogger{logger: logger}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil {
			logger.Warn("migration source close error", zap.Error(srcErr))
		}
		if dbErr != nil {
			logger.Warn("migration database close error", zap.Error(dbErr))
		}
	}()

	go func() {
		<-ctx.Done()
		m.GracefulStop <- true
	}()

	apply := m.Up
	if cfg.Down {
		apply = m.Down
	}
	if err := apply(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("no migrations to apply")
			return nil
		}
		return err
	}

	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		logger.Info("migrations rolled back")
	case err != nil:
		return fmt.Errorf("read schema version: %w", err)
	default:
		logger.Info("migrations applied successfully", zap.Uint("version", version), zap.Bool("dirty", dirty))
	}
	return nil
}

func migrationsSourceURL(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve migrations dir: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("stat migrations dir %s: %w", abs, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", abs)
	}
	return "file://" + filepath.ToSlash(abs), nil
}
