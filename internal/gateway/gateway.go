// Package gateway defines the payment provider port. Concrete adapters
// implement Gateway without the checkout orchestrator knowing provider
// specifics.
package gateway

import (
	"context"
)

// ChargeRequest asks the provider to capture a payment.
type ChargeRequest struct {
	OrderID     string `json:"order_id"`
	UserID      string `json:"user_id"`
	AmountCents int64  `json:"amount_cents"`
	Method      string `json:"method"`
}

// ChargeResult is the provider's settlement of a charge attempt.
type ChargeResult struct {
	Success     bool   `json:"success"`
	PaymentID   string `json:"payment_id"`
	Status      string `json:"status"`
	FailReason  string `json:"fail_reason,omitempty"`
	RawResponse string `json:"raw_response,omitempty"`
}

// CancelRequest asks the provider to reverse part or all of a captured
// payment.
type CancelRequest struct {
	PaymentID   string `json:"payment_id"`
	AmountCents int64  `json:"amount_cents"`
	Reason      string `json:"reason"`
}

// CancelResult is the provider's settlement of a cancel attempt.
type CancelResult struct {
	Success        bool  `json:"success"`
	CancelledCents int64 `json:"cancelled_cents"`
	RemainingCents int64 `json:"remaining_cents"`
}

// StatusSnapshot is the provider's current view of a payment.
type StatusSnapshot struct {
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
}

// WebhookNotification is a decoded asynchronous provider callback.
type WebhookNotification struct {
	Verified    bool   `json:"verified"`
	Event       string `json:"event"`
	PaymentID   string `json:"payment_id"`
	AmountCents int64  `json:"amount_cents"`
	OrderID     string `json:"order_id,omitempty"`
}

// Webhook event names the reconciliation handler understands.
const (
	EventPaymentCompleted = "payment.completed"
	EventPaymentFailed    = "payment.failed"
	EventPaymentCancelled = "payment.cancelled"
)

// Gateway is the abstract capability set of an external payment processor.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	Cancel(ctx context.Context, req CancelRequest) (*CancelResult, error)
	Verify(ctx context.Context, paymentID string) (*StatusSnapshot, error)
	// HandleWebhook decodes and authenticates a raw provider callback
	// payload. Verified=false means the payload must not be trusted.
	HandleWebhook(ctx context.Context, payload []byte) (*WebhookNotification, error)
}
