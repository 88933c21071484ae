package bigquery

import (
	"context"
	"time"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	Metrics interface {
		Observe(operation string, err error, started time.Time)
	}

	// Inserter streams rows into a table; *bigquery.Inserter satisfies it.
	Inserter interface {
		Put(ctx context.Context, src interface{}) error
	}
)
