package entity

import (
	"time"
)

// CouponType selects how a coupon's value is interpreted.
type CouponType string

const (
	CouponFixed      CouponType = "FIXED"      // flat amount in minor units
	CouponPercentage CouponType = "PERCENTAGE" // percentage of the order amount
)

// Coupon defines a discount rule.
type Coupon struct {
	ID                string     `json:"id"`
	Code              string     `json:"code"`
	Type              CouponType `json:"type"`
	Value             int64      `json:"value"`
	MinOrderCents     int64      `json:"min_order_cents"`
	MaxDiscountCents  *int64     `json:"max_discount_cents,omitempty"`
	ValidFrom         time.Time  `json:"valid_from"`
	ValidUntil        time.Time  `json:"valid_until"`
	MaxUsageCount     *int       `json:"max_usage_count,omitempty"`
	UsedCount         int        `json:"used_count"`
	Active            bool       `json:"active"`
	CreatedAt         time.Time  `json:"created_at"`
}

// DiscountFor computes the discount this coupon grants on orderCents.
// Percentage discounts round down and are capped at MaxDiscountCents when
// set; the result is always capped at orderCents so the final total cannot
// go negative.
func (c *Coupon) DiscountFor(orderCents int64) int64 {
	var discount int64
	switch c.Type {
	case CouponFixed:
		discount = c.Value
	case CouponPercentage:
		discount = orderCents * c.Value / 100
		if c.MaxDiscountCents != nil && discount > *c.MaxDiscountCents {
			discount = *c.MaxDiscountCents
		}
	}
	if discount > orderCents {
		discount = orderCents
	}
	return discount
}

// CouponUsage records one-time consumption of a coupon by a user. The
// (CouponID, UserID) pair is unique; its existence is the authoritative
// "already used" check.
type CouponUsage struct {
	ID       string    `json:"id"`
	CouponID string    `json:"coupon_id"`
	UserID   string    `json:"user_id"`
	OrderID  string    `json:"order_id"`
	UsedAt   time.Time `json:"used_at"`
}
