package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopkit/order-fulfillment/internal/apperrors"
	"github.com/shopkit/order-fulfillment/internal/entity"
	"github.com/shopkit/order-fulfillment/internal/gateway"
)

// newWebhookFixture seeds a PENDING payment awaiting asynchronous settlement
// and its PENDING order.
func newWebhookFixture() (*memStore, *WebhookService) {
	store := newMemStore()
	now := time.Now().UTC()
	store.orders["o1"] = entity.Order{ID: "o1", UserID: "u1", Status: entity.OrderPending, FinalCents: 28000, CreatedAt: now, UpdatedAt: now}
	store.payments["pay1"] = entity.Payment{
		ID: "pay1", OrderID: "o1", AmountCents: 28000,
		Status: entity.PaymentPending, Method: "card", ProviderTxID: "mock_tx_1",
		CreatedAt: now, UpdatedAt: now,
	}

	txm := &memTxManager{store: store}
	svc := NewWebhookService(txm, &memPaymentRepo{store: store}, &memOrderRepo{store: store}, gateway.NewMockGateway())
	return store, svc
}

func webhookPayload(event, paymentID string) []byte {
	return webhookPayloadWithAmount(event, paymentID, 28000)
}

func webhookPayloadWithAmount(event, paymentID string, amountCents int64) []byte {
	return []byte(fmt.Sprintf(
		`{"provider":"mock","event":%q,"data":{"payment_id":%q,"amount_cents":%d,"order_id":"o1"}}`,
		event, paymentID, amountCents,
	))
}

func TestReconcileCompletedSettlesPaymentAndOrder(t *testing.T) {
	store, svc := newWebhookFixture()

	result, err := svc.Reconcile(context.Background(), webhookPayload(gateway.EventPaymentCompleted, "mock_tx_1"))
	require.NoError(t, err)

	assert.True(t, result.Received)
	assert.Equal(t, gateway.EventPaymentCompleted, result.Event)
	assert.Equal(t, entity.PaymentCompleted, store.payments["pay1"].Status)
	assert.Equal(t, entity.OrderPaid, store.orders["o1"].Status)
}

func TestReconcileCompletedIsIdempotent(t *testing.T) {
	store, svc := newWebhookFixture()
	ctx := context.Background()
	payload := webhookPayload(gateway.EventPaymentCompleted, "mock_tx_1")

	_, err := svc.Reconcile(ctx, payload)
	require.NoError(t, err)

	// A replayed notification is acknowledged without a second effect.
	_, err = svc.Reconcile(ctx, payload)
	require.NoError(t, err)

	assert.Equal(t, entity.PaymentCompleted, store.payments["pay1"].Status)
	assert.Equal(t, entity.OrderPaid, store.orders["o1"].Status)
}

func TestReconcileFailedCancelsPendingOrder(t *testing.T) {
	store, svc := newWebhookFixture()

	_, err := svc.Reconcile(context.Background(), webhookPayload(gateway.EventPaymentFailed, "mock_tx_1"))
	require.NoError(t, err)

	assert.Equal(t, entity.PaymentFailed, store.payments["pay1"].Status)
	assert.Equal(t, entity.OrderCancelled, store.orders["o1"].Status)
}

func TestReconcileFailedAfterCompletedIsNoOp(t *testing.T) {
	store, svc := newWebhookFixture()
	ctx := context.Background()

	_, err := svc.Reconcile(ctx, webhookPayload(gateway.EventPaymentCompleted, "mock_tx_1"))
	require.NoError(t, err)

	// An out-of-order failure notification must not claw back a settled
	// payment.
	_, err = svc.Reconcile(ctx, webhookPayload(gateway.EventPaymentFailed, "mock_tx_1"))
	require.NoError(t, err)

	assert.Equal(t, entity.PaymentCompleted, store.payments["pay1"].Status)
	assert.Equal(t, entity.OrderPaid, store.orders["o1"].Status)
}

func TestReconcileCancelledRefundsSettledPayment(t *testing.T) {
	store, svc := newWebhookFixture()
	ctx := context.Background()

	_, err := svc.Reconcile(ctx, webhookPayload(gateway.EventPaymentCompleted, "mock_tx_1"))
	require.NoError(t, err)

	_, err = svc.Reconcile(ctx, webhookPayload(gateway.EventPaymentCancelled, "mock_tx_1"))
	require.NoError(t, err)

	payment := store.payments["pay1"]
	assert.Equal(t, entity.PaymentCancelled, payment.Status)
	assert.Equal(t, int64(28000), payment.CancelledCents)
}

func TestReconcilePartialCancellationUsesNotifiedAmount(t *testing.T) {
	store, svc := newWebhookFixture()
	ctx := context.Background()

	_, err := svc.Reconcile(ctx, webhookPayload(gateway.EventPaymentCompleted, "mock_tx_1"))
	require.NoError(t, err)

	_, err = svc.Reconcile(ctx, webhookPayloadWithAmount(gateway.EventPaymentCancelled, "mock_tx_1", 10000))
	require.NoError(t, err)

	payment := store.payments["pay1"]
	assert.Equal(t, entity.PaymentPartiallyCancelled, payment.Status)
	assert.Equal(t, int64(10000), payment.CancelledCents)

	// A second notification for more than remains is capped at the remainder.
	_, err = svc.Reconcile(ctx, webhookPayloadWithAmount(gateway.EventPaymentCancelled, "mock_tx_1", 30000))
	require.NoError(t, err)

	payment = store.payments["pay1"]
	assert.Equal(t, entity.PaymentCancelled, payment.Status)
	assert.Equal(t, int64(28000), payment.CancelledCents)
}

func TestReconcileCancelledOnPendingPaymentIsNoOp(t *testing.T) {
	store, svc := newWebhookFixture()

	_, err := svc.Reconcile(context.Background(), webhookPayload(gateway.EventPaymentCancelled, "mock_tx_1"))
	require.NoError(t, err)

	assert.Equal(t, entity.PaymentPending, store.payments["pay1"].Status)
	assert.Equal(t, int64(0), store.payments["pay1"].CancelledCents)
}

func TestReconcileUnknownPayment(t *testing.T) {
	_, svc := newWebhookFixture()

	_, err := svc.Reconcile(context.Background(), webhookPayload(gateway.EventPaymentCompleted, "mock_tx_999"))

	assert.True(t, apperrors.HasCode(err, apperrors.CodePaymentNotFound))
}

func TestReconcileMalformedPayload(t *testing.T) {
	_, svc := newWebhookFixture()

	_, err := svc.Reconcile(context.Background(), []byte("not json"))

	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))
}

func TestReconcileUnknownEvent(t *testing.T) {
	_, svc := newWebhookFixture()

	_, err := svc.Reconcile(context.Background(), webhookPayload("payment.exploded", "mock_tx_1"))

	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))
}
