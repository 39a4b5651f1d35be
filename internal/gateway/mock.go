package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// MockGateway is the reference in-process provider used for development and
// fault-injection testing. Charges whose amount's last two digits equal 99
// deterministically fail; everything else succeeds with a synthesized
// provider id.
type MockGateway struct {
	mu       sync.Mutex
	payments map[string]*mockPayment // provider payment id -> ledger entry
}

type mockPayment struct {
	status         string
	amountCents    int64
	cancelledCents int64
}

// NewMockGateway creates a mock payment provider.
func NewMockGateway() *MockGateway {
	return &MockGateway{payments: make(map[string]*mockPayment)}
}

func (g *MockGateway) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if req.AmountCents%100 == 99 {
		return &ChargeResult{
			Success:     false,
			Status:      "FAILED",
			FailReason:  "card declined by issuer",
			RawResponse: fmt.Sprintf(`{"order_id":%q,"amount":%d,"result":"declined"}`, req.OrderID, req.AmountCents),
		}, nil
	}

	paymentID := "mock_" + uuid.New().String()

	g.mu.Lock()
	g.payments[paymentID] = &mockPayment{status: "COMPLETED", amountCents: req.AmountCents}
	g.mu.Unlock()

	slog.Info("Mock gateway charged", "payment_id", paymentID, "order_id", req.OrderID, "amount", req.AmountCents)

	return &ChargeResult{
		Success:     true,
		PaymentID:   paymentID,
		Status:      "COMPLETED",
		RawResponse: fmt.Sprintf(`{"order_id":%q,"amount":%d,"result":"approved"}`, req.OrderID, req.AmountCents),
	}, nil
}

// Cancel refunds against the recorded charge. Cancels for unknown payments
// or beyond the remaining balance are rejected.
func (g *MockGateway) Cancel(ctx context.Context, req CancelRequest) (*CancelResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.payments[req.PaymentID]
	if !ok {
		return &CancelResult{Success: false}, nil
	}

	remaining := p.amountCents - p.cancelledCents
	if req.AmountCents <= 0 || req.AmountCents > remaining {
		return &CancelResult{Success: false, RemainingCents: remaining}, nil
	}

	p.cancelledCents += req.AmountCents
	if p.cancelledCents >= p.amountCents {
		p.status = "CANCELLED"
	} else {
		p.status = "PARTIALLY_CANCELLED"
	}

	return &CancelResult{
		Success:        true,
		CancelledCents: req.AmountCents,
		RemainingCents: p.amountCents - p.cancelledCents,
	}, nil
}

func (g *MockGateway) Verify(ctx context.Context, paymentID string) (*StatusSnapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.payments[paymentID]
	if !ok {
		return nil, fmt.Errorf("unknown payment id %s", paymentID)
	}
	return &StatusSnapshot{PaymentID: paymentID, Status: p.status}, nil
}

// mockWebhookPayload is the wire shape the mock provider posts back.
type mockWebhookPayload struct {
	Provider string `json:"provider"`
	Event    string `json:"event"`
	Data     struct {
		PaymentID   string `json:"payment_id"`
		AmountCents int64  `json:"amount_cents"`
		OrderID     string `json:"order_id,omitempty"`
	} `json:"data"`
}

// HandleWebhook decodes a mock provider callback. The mock always reports
// Verified=true; a real adapter must check the payload signature first.
func (g *MockGateway) HandleWebhook(ctx context.Context, payload []byte) (*WebhookNotification, error) {
	var p mockWebhookPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("failed to decode webhook payload: %w", err)
	}

	return &WebhookNotification{
		Verified:    true,
		Event:       p.Event,
		PaymentID:   p.Data.PaymentID,
		AmountCents: p.Data.AmountCents,
		OrderID:     p.Data.OrderID,
	}, nil
}
