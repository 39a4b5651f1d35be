package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopkit/order-fulfillment/internal/repository"
)

// txTimeout bounds every unit of work. The checkout transaction holds row
// locks across the payment gateway round trip, so the timeout must stay
// conservative; hitting it is treated like a payment failure by the caller.
const txTimeout = 10 * time.Second

type txManager struct {
	db *sql.DB
}

// NewTxManager creates a TxManager running read-committed transactions with
// a fixed timeout.
func NewTxManager(db *sql.DB) repository.TxManager {
	return &txManager{db: db}
}

func (m *txManager) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	ctx, cancel := context.WithTimeout(ctx, txTimeout)
	defer cancel()

	tx, err := m.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// sqlTx asserts the opaque transaction handle back to *sql.Tx.
func sqlTx(tx repository.Tx) (*sql.Tx, error) {
	t, ok := tx.(*sql.Tx)
	if !ok {
		return nil, fmt.Errorf("unexpected transaction type %T", tx)
	}
	return t, nil
}
