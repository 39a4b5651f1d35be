package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/shopkit/order-fulfillment/internal/apperrors"
	"github.com/shopkit/order-fulfillment/internal/entity"
	"github.com/shopkit/order-fulfillment/internal/repository"
)

type couponRepository struct{}

// NewCouponRepository creates a CouponRepository backed by Postgres.
func NewCouponRepository() repository.CouponRepository {
	return &couponRepository{}
}

const couponColumns = "id, code, type, value, min_order_cents, max_discount_cents, valid_from, valid_until, max_usage_count, used_count, active, created_at"

func (r *couponRepository) FindByCode(ctx context.Context, tx repository.Tx, code string) (*entity.Coupon, error) {
	return r.findOne(ctx, tx, "code", code)
}

func (r *couponRepository) Find(ctx context.Context, tx repository.Tx, couponID string) (*entity.Coupon, error) {
	return r.findOne(ctx, tx, "id", couponID)
}

func (r *couponRepository) findOne(ctx context.Context, tx repository.Tx, column, value string) (*entity.Coupon, error) {
	t, err := sqlTx(tx)
	if err != nil {
		return nil, err
	}

	var c entity.Coupon
	err = t.QueryRowContext(ctx,
		"SELECT "+couponColumns+" FROM coupons WHERE "+column+" = $1",
		value,
	).Scan(&c.ID, &c.Code, &c.Type, &c.Value, &c.MinOrderCents, &c.MaxDiscountCents,
		&c.ValidFrom, &c.ValidUntil, &c.MaxUsageCount, &c.UsedCount, &c.Active, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.Newf(apperrors.CodeCouponNotFound, "coupon %s not found", value)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find coupon: %w", err)
	}
	return &c, nil
}

func (r *couponRepository) UsageExists(ctx context.Context, tx repository.Tx, couponID, userID string) (bool, error) {
	t, err := sqlTx(tx)
	if err != nil {
		return false, err
	}

	var exists bool
	err = t.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM coupon_usages WHERE coupon_id = $1 AND user_id = $2)",
		couponID, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check coupon usage: %w", err)
	}
	return exists, nil
}

func (r *couponRepository) InsertUsage(ctx context.Context, tx repository.Tx, usage *entity.CouponUsage) error {
	t, err := sqlTx(tx)
	if err != nil {
		return err
	}

	_, err = t.ExecContext(ctx,
		"INSERT INTO coupon_usages (id, coupon_id, user_id, order_id, used_at) VALUES ($1, $2, $3, $4, $5)",
		usage.ID, usage.CouponID, usage.UserID, usage.OrderID, usage.UsedAt,
	)
	if err != nil {
		// The unique (coupon_id, user_id) constraint turns a concurrent
		// double use into a deterministic domain error.
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return apperrors.New(apperrors.CodeCouponAlreadyUsed, "coupon was already used")
		}
		return fmt.Errorf("failed to insert coupon usage: %w", err)
	}
	return nil
}

func (r *couponRepository) IncrementUsedCount(ctx context.Context, tx repository.Tx, couponID string) error {
	t, err := sqlTx(tx)
	if err != nil {
		return err
	}

	_, err = t.ExecContext(ctx, "UPDATE coupons SET used_count = used_count + 1 WHERE id = $1", couponID)
	if err != nil {
		return fmt.Errorf("failed to increment coupon used count: %w", err)
	}
	return nil
}
