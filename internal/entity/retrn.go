package entity

import (
	"time"
)

// ReturnStatus is the lifecycle state of a return request.
type ReturnStatus string

const (
	ReturnRequested  ReturnStatus = "REQUESTED"
	ReturnApproved   ReturnStatus = "APPROVED"
	ReturnRejected   ReturnStatus = "REJECTED"
	ReturnCollecting ReturnStatus = "COLLECTING"
	ReturnCollected  ReturnStatus = "COLLECTED"
	ReturnCompleted  ReturnStatus = "COMPLETED"
)

// CanTransitionTo reports whether a return may move from s to next.
// REJECTED and COMPLETED are terminal.
func (s ReturnStatus) CanTransitionTo(next ReturnStatus) bool {
	switch s {
	case ReturnRequested:
		return next == ReturnApproved || next == ReturnRejected
	case ReturnApproved:
		return next == ReturnCollecting
	case ReturnCollecting:
		return next == ReturnCollected
	case ReturnCollected:
		return next == ReturnCompleted
	case ReturnRejected, ReturnCompleted:
		return false
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed from s.
func (s ReturnStatus) IsTerminal() bool {
	return s == ReturnRejected || s == ReturnCompleted
}

// Return is a refund request against a whole order or a single order line.
// RefundCents is fixed at creation time: the referenced line's subtotal for
// item-level returns, else the order's final amount.
type Return struct {
	ID          string       `json:"id"`
	OrderID     string       `json:"order_id"`
	OrderLineID *string      `json:"order_line_id,omitempty"`
	UserID      string       `json:"user_id"`
	Status      ReturnStatus `json:"status"`
	Reason      string       `json:"reason"`
	RefundCents int64        `json:"refund_cents"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}
