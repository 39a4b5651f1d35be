package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopkit/order-fulfillment/internal/apperrors"
	"github.com/shopkit/order-fulfillment/internal/entity"
	"github.com/shopkit/order-fulfillment/internal/repository"
)

type paymentRepository struct{}

// NewPaymentRepository creates a PaymentRepository backed by Postgres.
func NewPaymentRepository() repository.PaymentRepository {
	return &paymentRepository{}
}

const paymentColumns = "id, order_id, amount_cents, cancelled_cents, status, method, provider_tx_id, created_at, updated_at"

func (r *paymentRepository) Create(ctx context.Context, tx repository.Tx, p *entity.Payment) error {
	t, err := sqlTx(tx)
	if err != nil {
		return err
	}

	_, err = t.ExecContext(ctx,
		`INSERT INTO payments (`+paymentColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.OrderID, p.AmountCents, p.CancelledCents, p.Status, p.Method, p.ProviderTxID, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

func (r *paymentRepository) FindByOrder(ctx context.Context, tx repository.Tx, orderID string) (*entity.Payment, error) {
	return r.findOne(ctx, tx, "order_id", orderID)
}

func (r *paymentRepository) FindByProviderTxID(ctx context.Context, tx repository.Tx, providerTxID string) (*entity.Payment, error) {
	return r.findOne(ctx, tx, "provider_tx_id", providerTxID)
}

func (r *paymentRepository) findOne(ctx context.Context, tx repository.Tx, column, value string) (*entity.Payment, error) {
	t, err := sqlTx(tx)
	if err != nil {
		return nil, err
	}

	var p entity.Payment
	err = t.QueryRowContext(ctx,
		"SELECT "+paymentColumns+" FROM payments WHERE "+column+" = $1",
		value,
	).Scan(&p.ID, &p.OrderID, &p.AmountCents, &p.CancelledCents, &p.Status, &p.Method, &p.ProviderTxID, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.Newf(apperrors.CodePaymentNotFound, "payment with %s %s not found", column, value)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find payment: %w", err)
	}
	return &p, nil
}

func (r *paymentRepository) Update(ctx context.Context, tx repository.Tx, p *entity.Payment) error {
	t, err := sqlTx(tx)
	if err != nil {
		return err
	}

	result, err := t.ExecContext(ctx,
		"UPDATE payments SET status = $1, cancelled_cents = $2, updated_at = $3 WHERE id = $4",
		p.Status, p.CancelledCents, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.Newf(apperrors.CodePaymentNotFound, "payment %s not found", p.ID)
	}
	return nil
}
