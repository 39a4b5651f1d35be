package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopkit/order-fulfillment/internal/apperrors"
	"github.com/shopkit/order-fulfillment/internal/entity"
)

func intPtr(v int) *int       { return &v }
func i64Ptr(v int64) *int64   { return &v }
func strPtr(v string) *string { return &v }

func newCouponFixture(c entity.Coupon) (*memStore, *CouponService) {
	store := newMemStore()
	store.coupons[c.ID] = c
	return store, NewCouponService(&memCouponRepo{store: store})
}

func validCoupon() entity.Coupon {
	now := time.Now().UTC()
	return entity.Coupon{
		ID:               "c1",
		Code:             "WELCOME10",
		Type:             entity.CouponPercentage,
		Value:            10,
		MinOrderCents:    30000,
		MaxDiscountCents: i64Ptr(10000),
		ValidFrom:        now.Add(-time.Hour),
		ValidUntil:       now.Add(time.Hour),
		Active:           true,
	}
}

func TestValidateAndCalculateSuccess(t *testing.T) {
	_, svc := newCouponFixture(validCoupon())

	coupon, discount, err := svc.ValidateAndCalculate(context.Background(), nil, "WELCOME10", "u1", 40000)

	require.NoError(t, err)
	assert.Equal(t, "c1", coupon.ID)
	assert.Equal(t, int64(4000), discount)
}

func TestValidateAndCalculateNotFound(t *testing.T) {
	_, svc := newCouponFixture(validCoupon())

	_, _, err := svc.ValidateAndCalculate(context.Background(), nil, "NOPE", "u1", 40000)

	assert.True(t, apperrors.HasCode(err, apperrors.CodeCouponNotFound))
}

func TestValidateAndCalculateInactive(t *testing.T) {
	c := validCoupon()
	c.Active = false
	_, svc := newCouponFixture(c)

	_, _, err := svc.ValidateAndCalculate(context.Background(), nil, "WELCOME10", "u1", 40000)

	assert.True(t, apperrors.HasCode(err, apperrors.CodeCouponInactive))
}

func TestValidateAndCalculateOutsideWindow(t *testing.T) {
	c := validCoupon()
	c.ValidUntil = time.Now().UTC().Add(-time.Minute)
	_, svc := newCouponFixture(c)

	_, _, err := svc.ValidateAndCalculate(context.Background(), nil, "WELCOME10", "u1", 40000)

	assert.True(t, apperrors.HasCode(err, apperrors.CodeCouponExpired))
}

func TestValidateAndCalculateUsageCapReached(t *testing.T) {
	c := validCoupon()
	c.MaxUsageCount = intPtr(100)
	c.UsedCount = 100
	_, svc := newCouponFixture(c)

	_, _, err := svc.ValidateAndCalculate(context.Background(), nil, "WELCOME10", "u1", 40000)

	assert.True(t, apperrors.HasCode(err, apperrors.CodeCouponExhausted))
}

func TestValidateAndCalculateAlreadyUsed(t *testing.T) {
	store, svc := newCouponFixture(validCoupon())
	store.usages = append(store.usages, entity.CouponUsage{CouponID: "c1", UserID: "u1"})

	_, _, err := svc.ValidateAndCalculate(context.Background(), nil, "WELCOME10", "u1", 40000)

	assert.True(t, apperrors.HasCode(err, apperrors.CodeCouponAlreadyUsed))
}

func TestValidateAndCalculateBelowMinOrder(t *testing.T) {
	_, svc := newCouponFixture(validCoupon())

	_, _, err := svc.ValidateAndCalculate(context.Background(), nil, "WELCOME10", "u1", 20000)

	require.True(t, apperrors.HasCode(err, apperrors.CodeCouponMinOrder))
	assert.Equal(t, int64(30000), apperrors.AsError(err).Details["min_order_cents"])
}

func TestMarkUsedRecordsUsageOnce(t *testing.T) {
	store, svc := newCouponFixture(validCoupon())
	ctx := context.Background()

	require.NoError(t, svc.MarkUsed(ctx, nil, "c1", "u1", "order-1"))

	require.Len(t, store.usages, 1)
	assert.Equal(t, 1, store.coupons["c1"].UsedCount)

	err := svc.MarkUsed(ctx, nil, "c1", "u1", "order-2")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeCouponAlreadyUsed))
}
