package entity

import (
	"time"
)

// Event represents a domain event published to the message broker.
type Event interface {
	EventType() string
}

// OrderPaidEvent is emitted after a checkout commits with a successful
// charge.
type OrderPaidEvent struct {
	OrderID    string    `json:"order_id"`
	UserID     string    `json:"user_id"`
	FinalCents int64     `json:"final_cents"`
	PaidAt     time.Time `json:"paid_at"`
}

func (e OrderPaidEvent) EventType() string { return "OrderPaid" }

// OrderCancelledEvent is emitted when an order is cancelled, fully or after a
// failed charge.
type OrderCancelledEvent struct {
	OrderID     string    `json:"order_id"`
	Reason      string    `json:"reason"`
	CancelledAt time.Time `json:"cancelled_at"`
}

func (e OrderCancelledEvent) EventType() string { return "OrderCancelled" }

// OrderStatusChangedEvent is emitted on every admin-driven lifecycle
// transition.
type OrderStatusChangedEvent struct {
	OrderID   string      `json:"order_id"`
	From      OrderStatus `json:"from"`
	To        OrderStatus `json:"to"`
	ChangedAt time.Time   `json:"changed_at"`
}

func (e OrderStatusChangedEvent) EventType() string { return "OrderStatusChanged" }

// ReturnCompletedEvent is emitted once a return is refunded and its stock
// restored.
type ReturnCompletedEvent struct {
	ReturnID    string    `json:"return_id"`
	OrderID     string    `json:"order_id"`
	RefundCents int64     `json:"refund_cents"`
	CompletedAt time.Time `json:"completed_at"`
}

func (e ReturnCompletedEvent) EventType() string { return "ReturnCompleted" }
