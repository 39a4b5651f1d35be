package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopkit/order-fulfillment/internal/apperrors"
	"github.com/shopkit/order-fulfillment/internal/entity"
	"github.com/shopkit/order-fulfillment/internal/repository"
)

type productRepository struct{}

// NewProductRepository creates a ProductRepository backed by Postgres.
func NewProductRepository() repository.ProductRepository {
	return &productRepository{}
}

func (r *productRepository) Find(ctx context.Context, tx repository.Tx, productID string) (*entity.Product, error) {
	t, err := sqlTx(tx)
	if err != nil {
		return nil, err
	}

	var p entity.Product
	err = t.QueryRowContext(ctx,
		"SELECT id, name, brand_id, status, sales_count, created_at FROM products WHERE id = $1",
		productID,
	).Scan(&p.ID, &p.Name, &p.BrandID, &p.Status, &p.SalesCount, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.Newf(apperrors.CodeVariantNotFound, "product %s not found", productID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find product %s: %w", productID, err)
	}
	return &p, nil
}

func (r *productRepository) SetStatus(ctx context.Context, tx repository.Tx, productID string, status entity.ProductStatus) error {
	t, err := sqlTx(tx)
	if err != nil {
		return err
	}

	_, err = t.ExecContext(ctx, "UPDATE products SET status = $1 WHERE id = $2", status, productID)
	if err != nil {
		return fmt.Errorf("failed to set status for product %s: %w", productID, err)
	}
	return nil
}

func (r *productRepository) IncrementSalesCount(ctx context.Context, tx repository.Tx, productID string, delta int) error {
	t, err := sqlTx(tx)
	if err != nil {
		return err
	}

	_, err = t.ExecContext(ctx, "UPDATE products SET sales_count = sales_count + $1 WHERE id = $2", delta, productID)
	if err != nil {
		return fmt.Errorf("failed to increment sales count for product %s: %w", productID, err)
	}
	return nil
}
