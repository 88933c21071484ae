// Package bigquery stores exported transactions through BigQuery streaming inserts.
package bigquery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/option"
)

type Repository struct {
	inserter  Inserter
	tableName string
	metadata  func(ctx context.Context) error
	close     func() error
	metrics   Metrics
}

// NewRepository creates a client for project and streams into dataset.table.
// An empty credentialsFile falls back to application default credentials.
func NewRepository(ctx context.Context, project, credentialsFile, dataset, table string, metrics Metrics) (*Repository, error) {
	if project == "" {
		return nil, errors.New("bigquery project is required")
	}
	if dataset == "" || table == "" {
		return nil, errors.New("bigquery dataset and table are required")
	}

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := bigquery.NewClient(ctx, project, opts...)
	if err != nil {
		return nil, fmt.Errorf("create bigquery client: %w", err)
	}

	handle := client.Dataset(dataset).Table(table)
	return &Repository{
		inserter:  handle.Inserter(),
		tableName: dataset + "." + table,
		metadata: func(ctx context.Context) error {
			_, err := handle.Metadata(ctx)
			return err
		},
		close:   client.Close,
		metrics: metrics,
	}, nil
}

func (r *Repository) Close() error {
	if r.close == nil {
		return nil
	}
	return r.close()
}

// CheckTable verifies the destination table exists and is readable with the configured credentials.
func (r *Repository) CheckTable(ctx context.Context) (err error) {
	started := time.Now()
	defer func() {
		r.metrics.Observe("check_table", err, started)
	}()

	if err = r.metadata(ctx); err != nil {
		return fmt.Errorf("check table %s: %w", r.tableName, err)
	}
	return nil
}
