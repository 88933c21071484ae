// Package clickhouse stores exported transactions in ClickHouse.
package clickhouse

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

type Repository struct {
	conn    Conn
	table   string
	close   func() error
	metrics Metrics
}

// NewRepository opens a connection and targets `dataset`.`table`; dataset is the ClickHouse database.
func NewRepository(dsn, dataset, table string, metrics Metrics) (*Repository, error) {
	if dsn == "" {
		return nil, errors.New("clickhouse dsn is required")
	}
	if table == "" {
		return nil, errors.New("clickhouse table is required")
	}

	options, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse clickhouse dsn: %w", err)
	}

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("open clickhouse connection: %w", err)
	}

	return &Repository{
		conn:    driverConn{conn: conn},
		table:   qualifiedTable(dataset, table),
		close:   conn.Close,
		metrics: metrics,
	}, nil
}

func (r *Repository) Close() error {
	if r.close == nil {
		return nil
	}
	return r.close()
}

type driverConn struct {
	conn driver.Conn
}

func (c driverConn) PrepareBatch(ctx context.Context, query string) (Batch, error) {
	batch, err := c.conn.PrepareBatch(ctx, query)
	if err != nil {
		return nil, err
	}
	return batch, nil
}

func (c driverConn) QueryRow(ctx context.Context, query string, args ...any) Row {
	return c.conn.QueryRow(ctx, query, args...)
}

func qualifiedTable(dataset, table string) string {
	if dataset == "" {
		return quoteIdentifier(table)
	}
	return quoteIdentifier(dataset) + "." + quoteIdentifier(table)
}

func quoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "\\`") + "`"
}
