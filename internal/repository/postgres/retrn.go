package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopkit/order-fulfillment/internal/apperrors"
	"github.com/shopkit/order-fulfillment/internal/entity"
	"github.com/shopkit/order-fulfillment/internal/repository"
)

type returnRepository struct{}

// NewReturnRepository creates a ReturnRepository backed by Postgres.
func NewReturnRepository() repository.ReturnRepository {
	return &returnRepository{}
}

const returnColumns = "id, order_id, order_line_id, user_id, status, reason, refund_cents, created_at, updated_at"

func (r *returnRepository) Create(ctx context.Context, tx repository.Tx, ret *entity.Return) error {
	t, err := sqlTx(tx)
	if err != nil {
		return err
	}

	_, err = t.ExecContext(ctx,
		`INSERT INTO returns (`+returnColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		ret.ID, ret.OrderID, ret.OrderLineID, ret.UserID, ret.Status, ret.Reason, ret.RefundCents,
		ret.CreatedAt, ret.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert return: %w", err)
	}
	return nil
}

func (r *returnRepository) Find(ctx context.Context, tx repository.Tx, returnID string) (*entity.Return, error) {
	t, err := sqlTx(tx)
	if err != nil {
		return nil, err
	}

	var ret entity.Return
	err = t.QueryRowContext(ctx,
		"SELECT "+returnColumns+" FROM returns WHERE id = $1",
		returnID,
	).Scan(&ret.ID, &ret.OrderID, &ret.OrderLineID, &ret.UserID, &ret.Status, &ret.Reason,
		&ret.RefundCents, &ret.CreatedAt, &ret.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.Newf(apperrors.CodeReturnNotFound, "return %s not found", returnID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find return %s: %w", returnID, err)
	}
	return &ret, nil
}

func (r *returnRepository) Update(ctx context.Context, tx repository.Tx, ret *entity.Return) error {
	t, err := sqlTx(tx)
	if err != nil {
		return err
	}

	result, err := t.ExecContext(ctx,
		"UPDATE returns SET status = $1, updated_at = $2 WHERE id = $3",
		ret.Status, ret.UpdatedAt, ret.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update return: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.Newf(apperrors.CodeReturnNotFound, "return %s not found", ret.ID)
	}
	return nil
}

// ActiveExists reports whether a non-terminal return exists for the same
// (order, order line) pair. A NULL order_line_id matches only whole-order
// returns.
func (r *returnRepository) ActiveExists(ctx context.Context, tx repository.Tx, orderID string, orderLineID *string) (bool, error) {
	t, err := sqlTx(tx)
	if err != nil {
		return false, err
	}

	var exists bool
	err = t.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM returns
			WHERE order_id = $1
			  AND order_line_id IS NOT DISTINCT FROM $2
			  AND status NOT IN ('REJECTED', 'COMPLETED')
		)`,
		orderID, orderLineID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check active returns: %w", err)
	}
	return exists, nil
}
