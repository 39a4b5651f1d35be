package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopkit/order-fulfillment/internal/apperrors"
	"github.com/shopkit/order-fulfillment/internal/entity"
	"github.com/shopkit/order-fulfillment/internal/gateway"
	"github.com/shopkit/order-fulfillment/internal/repository"
)

// ReconcileResult acknowledges a processed provider notification.
type ReconcileResult struct {
	Received  bool   `json:"received"`
	Event     string `json:"event"`
	PaymentID string `json:"payment_id"`
}

// WebhookService idempotently applies asynchronous payment-status
// notifications to payments and orders already created by checkout. Every
// transition is guarded by the payment's current status, so duplicate or
// out-of-order delivery is a no-op rather than a double effect.
type WebhookService struct {
	txm      repository.TxManager
	payments repository.PaymentRepository
	orders   repository.OrderRepository
	gw       gateway.Gateway
}

func NewWebhookService(
	txm repository.TxManager,
	payments repository.PaymentRepository,
	orders repository.OrderRepository,
	gw gateway.Gateway,
) *WebhookService {
	return &WebhookService{
		txm:      txm,
		payments: payments,
		orders:   orders,
		gw:       gw,
	}
}

// Reconcile decodes a raw provider callback through the gateway port and
// applies it.
func (s *WebhookService) Reconcile(ctx context.Context, payload []byte) (*ReconcileResult, error) {
	notification, err := s.gw.HandleWebhook(ctx, payload)
	if err != nil {
		return nil, apperrors.New(apperrors.CodeInvalidInput, "malformed webhook payload")
	}
	if !notification.Verified {
		return nil, apperrors.New(apperrors.CodeInvalidInput, "webhook payload failed verification")
	}

	err = s.txm.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		payment, err := s.payments.FindByProviderTxID(ctx, tx, notification.PaymentID)
		if err != nil {
			return err
		}

		switch notification.Event {
		case gateway.EventPaymentCompleted:
			return s.applyCompleted(ctx, tx, payment)
		case gateway.EventPaymentFailed:
			return s.applyFailed(ctx, tx, payment)
		case gateway.EventPaymentCancelled:
			return s.applyCancelled(ctx, tx, payment, notification.AmountCents)
		default:
			return apperrors.Newf(apperrors.CodeInvalidInput, "unknown webhook event %s", notification.Event)
		}
	})
	if err != nil {
		return nil, err
	}

	return &ReconcileResult{
		Received:  true,
		Event:     notification.Event,
		PaymentID: notification.PaymentID,
	}, nil
}

// applyCompleted settles a pending payment and marks its order paid. Already
// settled payments are left untouched.
func (s *WebhookService) applyCompleted(ctx context.Context, tx repository.Tx, payment *entity.Payment) error {
	if payment.Status != entity.PaymentPending {
		slog.Info("Webhook ignored: payment not pending", "payment_id", payment.ID, "status", payment.Status)
		return nil
	}

	payment.Status = entity.PaymentCompleted
	payment.UpdatedAt = time.Now().UTC()
	if err := s.payments.Update(ctx, tx, payment); err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}

	order, err := s.orders.Find(ctx, tx, payment.OrderID)
	if err != nil {
		return err
	}
	if order.Status == entity.OrderPending {
		if err := s.orders.UpdateStatus(ctx, tx, order.ID, entity.OrderPaid); err != nil {
			return fmt.Errorf("failed to mark order paid: %w", err)
		}
	}
	return nil
}

func (s *WebhookService) applyFailed(ctx context.Context, tx repository.Tx, payment *entity.Payment) error {
	if payment.Status != entity.PaymentPending {
		slog.Info("Webhook ignored: payment not pending", "payment_id", payment.ID, "status", payment.Status)
		return nil
	}

	payment.Status = entity.PaymentFailed
	payment.UpdatedAt = time.Now().UTC()
	if err := s.payments.Update(ctx, tx, payment); err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}

	order, err := s.orders.Find(ctx, tx, payment.OrderID)
	if err != nil {
		return err
	}
	if order.Status == entity.OrderPending {
		if err := s.orders.UpdateStatus(ctx, tx, order.ID, entity.OrderCancelled); err != nil {
			return fmt.Errorf("failed to cancel order: %w", err)
		}
	}
	return nil
}

// applyCancelled records the amount the provider says was refunded. A
// missing or oversized amount is treated as a full cancellation of whatever
// remains.
func (s *WebhookService) applyCancelled(ctx context.Context, tx repository.Tx, payment *entity.Payment, amountCents int64) error {
	if payment.Status != entity.PaymentCompleted && payment.Status != entity.PaymentPartiallyCancelled {
		slog.Info("Webhook ignored: payment not cancellable", "payment_id", payment.ID, "status", payment.Status)
		return nil
	}

	remaining := payment.AmountCents - payment.CancelledCents
	if amountCents <= 0 || amountCents > remaining {
		amountCents = remaining
	}
	payment.ApplyCancellation(amountCents)
	payment.UpdatedAt = time.Now().UTC()
	if err := s.payments.Update(ctx, tx, payment); err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	return nil
}
