package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// dbTx adapts a pgx.Tx to the storage.Tx port.
type dbTx struct {
	tx pgx.Tx
}

func (t *dbTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return fmt.Errorf("storage: commit: %w", err)
	}
	return nil
}

func (t *dbTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if err != nil && err != pgx.ErrTxClosed {
		return fmt.Errorf("storage: rollback: %w", err)
	}
	return nil
}

// BeginTx opens a new PostgreSQL transaction.
func (db *DB) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage: begin tx: %w", err)
	}
	return &dbTx{tx: tx}, nil
}
