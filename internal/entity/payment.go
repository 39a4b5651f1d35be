package entity

import (
	"time"
)

// PaymentStatus is the settlement state of a payment.
type PaymentStatus string

const (
	PaymentPending            PaymentStatus = "PENDING"
	PaymentCompleted          PaymentStatus = "COMPLETED"
	PaymentFailed             PaymentStatus = "FAILED"
	PaymentPartiallyCancelled PaymentStatus = "PARTIALLY_CANCELLED"
	PaymentCancelled          PaymentStatus = "CANCELLED"
)

// Payment is the one-to-one settlement record of an order.
// Invariant: 0 <= CancelledCents <= AmountCents.
type Payment struct {
	ID             string        `json:"id"`
	OrderID        string        `json:"order_id"`
	AmountCents    int64         `json:"amount_cents"`
	CancelledCents int64         `json:"cancelled_cents"`
	Status         PaymentStatus `json:"status"`
	Method         string        `json:"method"`
	ProviderTxID   string        `json:"provider_tx_id"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// ApplyCancellation accumulates a refunded amount and derives the resulting
// status: CANCELLED once the full amount is refunded, PARTIALLY_CANCELLED
// otherwise. Amounts beyond the remaining balance are capped so
// CancelledCents never exceeds AmountCents.
func (p *Payment) ApplyCancellation(amountCents int64) {
	if remaining := p.AmountCents - p.CancelledCents; amountCents > remaining {
		amountCents = remaining
	}
	p.CancelledCents += amountCents
	if p.CancelledCents >= p.AmountCents {
		p.Status = PaymentCancelled
	} else {
		p.Status = PaymentPartiallyCancelled
	}
}
