package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shopkit/order-fulfillment/internal/apperrors"
	"github.com/shopkit/order-fulfillment/internal/entity"
	"github.com/shopkit/order-fulfillment/internal/repository"
)

// CouponService validates coupons against an order amount and records their
// one-time consumption.
type CouponService struct {
	coupons repository.CouponRepository
}

func NewCouponService(coupons repository.CouponRepository) *CouponService {
	return &CouponService{coupons: coupons}
}

// ValidateAndCalculate checks a coupon code for a user and order amount and
// returns the coupon with its discount. Checks run in a fixed order: not
// found, inactive, outside validity window, usage cap reached, already used
// by this user, below minimum order amount.
func (s *CouponService) ValidateAndCalculate(ctx context.Context, tx repository.Tx, code, userID string, orderCents int64) (*entity.Coupon, int64, error) {
	coupon, err := s.coupons.FindByCode(ctx, tx, code)
	if err != nil {
		return nil, 0, err
	}

	if !coupon.Active {
		return nil, 0, apperrors.Newf(apperrors.CodeCouponInactive, "coupon %s is not active", code)
	}

	now := time.Now().UTC()
	if now.Before(coupon.ValidFrom) || now.After(coupon.ValidUntil) {
		return nil, 0, apperrors.Newf(apperrors.CodeCouponExpired, "coupon %s is outside its validity window", code)
	}

	if coupon.MaxUsageCount != nil && coupon.UsedCount >= *coupon.MaxUsageCount {
		return nil, 0, apperrors.Newf(apperrors.CodeCouponExhausted, "coupon %s has reached its usage limit", code)
	}

	used, err := s.coupons.UsageExists(ctx, tx, coupon.ID, userID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to check coupon usage: %w", err)
	}
	if used {
		return nil, 0, apperrors.Newf(apperrors.CodeCouponAlreadyUsed, "coupon %s was already used", code)
	}

	if orderCents < coupon.MinOrderCents {
		return nil, 0, apperrors.Newf(apperrors.CodeCouponMinOrder,
			"coupon %s requires a minimum order of %d", code, coupon.MinOrderCents,
		).WithDetails(map[string]any{
			"min_order_cents": coupon.MinOrderCents,
			"order_cents":     orderCents,
		})
	}

	return coupon, coupon.DiscountFor(orderCents), nil
}

// MarkUsed records one-time consumption of a coupon. Called only after a
// successful charge so a coupon is never burned by an order that failed to
// pay. The unique (coupon, user) constraint makes concurrent double use fail
// deterministically.
func (s *CouponService) MarkUsed(ctx context.Context, tx repository.Tx, couponID, userID, orderID string) error {
	usage := &entity.CouponUsage{
		ID:       uuid.New().String(),
		CouponID: couponID,
		UserID:   userID,
		OrderID:  orderID,
		UsedAt:   time.Now().UTC(),
	}
	if err := s.coupons.InsertUsage(ctx, tx, usage); err != nil {
		return err
	}
	if err := s.coupons.IncrementUsedCount(ctx, tx, couponID); err != nil {
		return fmt.Errorf("failed to increment coupon usage count: %w", err)
	}
	return nil
}
