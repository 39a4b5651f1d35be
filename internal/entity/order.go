package entity

import (
	"time"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderPaid      OrderStatus = "PAID"
	OrderPreparing OrderStatus = "PREPARING"
	OrderShipping  OrderStatus = "SHIPPING"
	OrderDelivered OrderStatus = "DELIVERED"
	OrderConfirmed OrderStatus = "CONFIRMED"
	OrderCancelled OrderStatus = "CANCELLED"
)

// CanTransitionTo reports whether an order may move from s to next.
// CONFIRMED and CANCELLED are terminal.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	switch s {
	case OrderPending:
		return next == OrderPaid || next == OrderCancelled
	case OrderPaid:
		return next == OrderPreparing || next == OrderCancelled
	case OrderPreparing:
		return next == OrderShipping
	case OrderShipping:
		return next == OrderDelivered
	case OrderDelivered:
		return next == OrderConfirmed
	case OrderConfirmed, OrderCancelled:
		return false
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed from s.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderConfirmed || s == OrderCancelled
}

// Order is one checkout attempt. Monetary fields are minor currency units.
// Invariant: FinalCents = max(0, TotalCents - DiscountCents + ShippingCents).
type Order struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	Status        OrderStatus     `json:"status"`
	TotalCents    int64           `json:"total_cents"`
	DiscountCents int64           `json:"discount_cents"`
	ShippingCents int64           `json:"shipping_cents"`
	FinalCents    int64           `json:"final_cents"`
	CouponID      *string         `json:"coupon_id,omitempty"`
	Address       AddressSnapshot `json:"address"`
	Note          *string         `json:"note,omitempty"`
	Lines         []OrderLine     `json:"lines"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// OrderLine is an immutable snapshot of a purchased variant at order-creation
// time; later catalog edits never alter it. Deleted only by partial
// cancellation.
type OrderLine struct {
	ID            string `json:"id"`
	OrderID       string `json:"order_id"`
	ProductID     string `json:"product_id"`
	VariantID     string `json:"variant_id"`
	ProductName   string `json:"product_name"`
	VariantName   string `json:"variant_name"`
	PriceCents    int64  `json:"price_cents"`
	Quantity      int    `json:"quantity"`
	SubtotalCents int64  `json:"subtotal_cents"`
}

// ShipmentStatus tracks the physical fulfillment of an order.
type ShipmentStatus string

const (
	ShipmentPreparing ShipmentStatus = "PREPARING"
	ShipmentShipped   ShipmentStatus = "SHIPPED"
	ShipmentDelivered ShipmentStatus = "DELIVERED"
)

// Shipment is the one-to-one shipping record of an order, updated as a side
// effect of order status transitions.
type Shipment struct {
	ID             string         `json:"id"`
	OrderID        string         `json:"order_id"`
	Status         ShipmentStatus `json:"status"`
	Carrier        *string        `json:"carrier,omitempty"`
	TrackingNumber *string        `json:"tracking_number,omitempty"`
	ShippedAt      *time.Time     `json:"shipped_at,omitempty"`
	DeliveredAt    *time.Time     `json:"delivered_at,omitempty"`
}
