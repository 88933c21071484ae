package clickhouse

import (
	"context"
	"time"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	Metrics interface {
		Observe(operation string, err error, started time.Time)
	}

	// Conn is the part of the ClickHouse connection the repository writes through.
	Conn interface {
		PrepareBatch(ctx context.Context, query string) (Batch, error)
		QueryRow(ctx context.Context, query string, args ...any) Row
	}

	Row interface {
		Scan(dest ...any) error
	}

	Batch interface {
		Append(v ...any) error
		Send() error
		Abort() error
	}
)
