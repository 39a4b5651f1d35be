package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/shopkit/order-fulfillment/internal/apperrors"
	"github.com/shopkit/order-fulfillment/internal/entity"
	"github.com/shopkit/order-fulfillment/internal/repository"
)

type orderRepository struct{}

// NewOrderRepository creates an OrderRepository backed by Postgres.
func NewOrderRepository() repository.OrderRepository {
	return &orderRepository{}
}

func (r *orderRepository) Create(ctx context.Context, tx repository.Tx, order *entity.Order) error {
	t, err := sqlTx(tx)
	if err != nil {
		return err
	}

	_, err = t.ExecContext(ctx,
		`INSERT INTO orders (id, user_id, status, total_cents, discount_cents, shipping_cents, final_cents,
			coupon_id, addr_name, addr_phone, addr_zip_code, addr_address1, addr_address2, note, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		order.ID, order.UserID, order.Status, order.TotalCents, order.DiscountCents, order.ShippingCents,
		order.FinalCents, order.CouponID, order.Address.Name, order.Address.Phone, order.Address.ZipCode,
		order.Address.Address1, order.Address.Address2, order.Note, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for _, line := range order.Lines {
		_, err = t.ExecContext(ctx,
			`INSERT INTO order_lines (id, order_id, product_id, variant_id, product_name, variant_name, price_cents, quantity, subtotal_cents)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			line.ID, line.OrderID, line.ProductID, line.VariantID, line.ProductName, line.VariantName,
			line.PriceCents, line.Quantity, line.SubtotalCents,
		)
		if err != nil {
			return fmt.Errorf("failed to insert order line: %w", err)
		}
	}
	return nil
}

func (r *orderRepository) Find(ctx context.Context, tx repository.Tx, orderID string) (*entity.Order, error) {
	t, err := sqlTx(tx)
	if err != nil {
		return nil, err
	}

	var o entity.Order
	err = t.QueryRowContext(ctx,
		`SELECT id, user_id, status, total_cents, discount_cents, shipping_cents, final_cents,
			coupon_id, addr_name, addr_phone, addr_zip_code, addr_address1, addr_address2, note, created_at, updated_at
		 FROM orders WHERE id = $1`,
		orderID,
	).Scan(&o.ID, &o.UserID, &o.Status, &o.TotalCents, &o.DiscountCents, &o.ShippingCents, &o.FinalCents,
		&o.CouponID, &o.Address.Name, &o.Address.Phone, &o.Address.ZipCode, &o.Address.Address1,
		&o.Address.Address2, &o.Note, &o.CreatedAt, &o.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.Newf(apperrors.CodeOrderNotFound, "order %s not found", orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find order %s: %w", orderID, err)
	}

	rows, err := t.QueryContext(ctx,
		`SELECT id, order_id, product_id, variant_id, product_name, variant_name, price_cents, quantity, subtotal_cents
		 FROM order_lines WHERE order_id = $1`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query order lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l entity.OrderLine
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.VariantID, &l.ProductName, &l.VariantName,
			&l.PriceCents, &l.Quantity, &l.SubtotalCents); err != nil {
			return nil, fmt.Errorf("failed to scan order line: %w", err)
		}
		o.Lines = append(o.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, tx repository.Tx, orderID string, status entity.OrderStatus) error {
	t, err := sqlTx(tx)
	if err != nil {
		return err
	}

	result, err := t.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3",
		status, time.Now().UTC(), orderID,
	)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.Newf(apperrors.CodeOrderNotFound, "order %s not found", orderID)
	}
	return nil
}

func (r *orderRepository) UpdateTotals(ctx context.Context, tx repository.Tx, orderID string, totalCents, finalCents int64) error {
	t, err := sqlTx(tx)
	if err != nil {
		return err
	}

	_, err = t.ExecContext(ctx,
		"UPDATE orders SET total_cents = $1, final_cents = $2, updated_at = $3 WHERE id = $4",
		totalCents, finalCents, time.Now().UTC(), orderID,
	)
	if err != nil {
		return fmt.Errorf("failed to update order totals: %w", err)
	}
	return nil
}

func (r *orderRepository) DeleteLines(ctx context.Context, tx repository.Tx, orderID string, lineIDs []string) error {
	t, err := sqlTx(tx)
	if err != nil {
		return err
	}

	_, err = t.ExecContext(ctx,
		"DELETE FROM order_lines WHERE order_id = $1 AND id = ANY($2)",
		orderID, pq.Array(lineIDs),
	)
	if err != nil {
		return fmt.Errorf("failed to delete order lines: %w", err)
	}
	return nil
}
