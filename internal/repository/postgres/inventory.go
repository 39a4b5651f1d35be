package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopkit/order-fulfillment/internal/apperrors"
	"github.com/shopkit/order-fulfillment/internal/entity"
	"github.com/shopkit/order-fulfillment/internal/repository"
)

type inventoryRepository struct{}

// NewInventoryRepository creates an InventoryRepository backed by Postgres.
// All methods operate on the caller's transaction.
func NewInventoryRepository() repository.InventoryRepository {
	return &inventoryRepository{}
}

// LockVariant reads a variant row with SELECT ... FOR UPDATE. Two concurrent
// reservations on the same SKU are strictly ordered by this lock.
func (r *inventoryRepository) LockVariant(ctx context.Context, tx repository.Tx, variantID string) (*entity.Variant, error) {
	t, err := sqlTx(tx)
	if err != nil {
		return nil, err
	}

	var v entity.Variant
	err = t.QueryRowContext(ctx,
		`SELECT id, product_id, name, price_cents, stock, reserved_stock, active, created_at
		 FROM variants WHERE id = $1 FOR UPDATE`,
		variantID,
	).Scan(&v.ID, &v.ProductID, &v.Name, &v.PriceCents, &v.Stock, &v.ReservedStock, &v.Active, &v.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.Newf(apperrors.CodeVariantNotFound, "variant %s not found", variantID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock variant %s: %w", variantID, err)
	}
	return &v, nil
}

func (r *inventoryRepository) ApplyStockDelta(ctx context.Context, tx repository.Tx, variantID string, stockDelta, reservedDelta int) error {
	t, err := sqlTx(tx)
	if err != nil {
		return err
	}

	result, err := t.ExecContext(ctx,
		"UPDATE variants SET stock = stock + $1, reserved_stock = reserved_stock + $2 WHERE id = $3",
		stockDelta, reservedDelta, variantID,
	)
	if err != nil {
		return fmt.Errorf("failed to update stock for variant %s: %w", variantID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.Newf(apperrors.CodeVariantNotFound, "variant %s not found", variantID)
	}
	return nil
}

func (r *inventoryRepository) InsertMovement(ctx context.Context, tx repository.Tx, m *entity.StockMovement) error {
	t, err := sqlTx(tx)
	if err != nil {
		return err
	}

	_, err = t.ExecContext(ctx,
		`INSERT INTO stock_movements (id, variant_id, kind, quantity, reason, reference_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.ID, m.VariantID, m.Kind, m.Quantity, m.Reason, m.ReferenceID, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert stock movement: %w", err)
	}
	return nil
}

func (r *inventoryRepository) VariantsByProduct(ctx context.Context, tx repository.Tx, productID string) ([]entity.Variant, error) {
	t, err := sqlTx(tx)
	if err != nil {
		return nil, err
	}

	rows, err := t.QueryContext(ctx,
		`SELECT id, product_id, name, price_cents, stock, reserved_stock, active, created_at
		 FROM variants WHERE product_id = $1`,
		productID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query variants for product %s: %w", productID, err)
	}
	defer rows.Close()

	var variants []entity.Variant
	for rows.Next() {
		var v entity.Variant
		if err := rows.Scan(&v.ID, &v.ProductID, &v.Name, &v.PriceCents, &v.Stock, &v.ReservedStock, &v.Active, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan variant: %w", err)
		}
		variants = append(variants, v)
	}
	return variants, rows.Err()
}
