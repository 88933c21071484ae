package clickhouse

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTableNotFound is returned by CheckTable when the destination table is missing.
var ErrTableNotFound = errors.New("destination table does not exist")

// CheckTable verifies the destination table exists.
func (r *Repository) CheckTable(ctx context.Context) (err error) {
	started := time.Now()
	defer func() {
		r.metrics.Observe("check_table", err, started)
	}()

	var exists uint8
	if err = r.conn.QueryRow(ctx, "EXISTS TABLE "+r.table).Scan(&exists); err != nil {
		return fmt.Errorf("check table %s: %w", r.table, err)
	}
	if exists == 0 {
		return fmt.Errorf("%w: %s (apply migrations to this database or set --dataset)", ErrTableNotFound, r.table)
	}
	return nil
}
