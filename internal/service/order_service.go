package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopkit/order-fulfillment/internal/apperrors"
	"github.com/shopkit/order-fulfillment/internal/entity"
	"github.com/shopkit/order-fulfillment/internal/gateway"
	"github.com/shopkit/order-fulfillment/internal/messaging"
	"github.com/shopkit/order-fulfillment/internal/repository"
)

// OrderService drives the order lifecycle: admin status transitions with
// their shipment side effects, full cancellation, and partial cancellation.
type OrderService struct {
	txm       repository.TxManager
	orders    repository.OrderRepository
	payments  repository.PaymentRepository
	shipments repository.ShipmentRepository
	inventory *InventoryService
	gw        gateway.Gateway
	publisher messaging.Publisher
}

func NewOrderService(
	txm repository.TxManager,
	orders repository.OrderRepository,
	payments repository.PaymentRepository,
	shipments repository.ShipmentRepository,
	inventory *InventoryService,
	gw gateway.Gateway,
	publisher messaging.Publisher,
) *OrderService {
	return &OrderService{
		txm:       txm,
		orders:    orders,
		payments:  payments,
		shipments: shipments,
		inventory: inventory,
		gw:        gw,
		publisher: publisher,
	}
}

// GetOrder loads one order with its lines.
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*entity.Order, error) {
	var order *entity.Order
	err := s.txm.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		order, err = s.orders.Find(ctx, tx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// ChangeStatus applies one lifecycle transition to an order. Invalid
// transitions fail with INVALID_STATE_TRANSITION naming both states.
// Entering SHIPPING or DELIVERED stamps the shipment; a CANCELLED target is
// routed through the full cancellation path.
func (s *OrderService) ChangeStatus(ctx context.Context, orderID string, next entity.OrderStatus) error {
	if next == entity.OrderCancelled {
		return s.CancelOrder(ctx, orderID, "cancelled by status change")
	}

	var event *entity.OrderStatusChangedEvent
	err := s.txm.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		order, err := s.orders.Find(ctx, tx, orderID)
		if err != nil {
			return err
		}

		if !order.Status.CanTransitionTo(next) {
			return invalidTransition(order.Status, next)
		}

		if err := s.orders.UpdateStatus(ctx, tx, orderID, next); err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}

		switch next {
		case entity.OrderShipping:
			if err := s.stampShipment(ctx, tx, orderID, entity.ShipmentShipped); err != nil {
				return err
			}
		case entity.OrderDelivered:
			if err := s.stampShipment(ctx, tx, orderID, entity.ShipmentDelivered); err != nil {
				return err
			}
		}

		event = &entity.OrderStatusChangedEvent{
			OrderID:   orderID,
			From:      order.Status,
			To:        next,
			ChangedAt: time.Now().UTC(),
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.publish(ctx, "orders.status", orderID, *event)
	return nil
}

// CancelOrder cancels a whole order. Allowed only from PENDING or PAID; a
// PAID order additionally has its payment cancelled in full and its stock
// restored.
func (s *OrderService) CancelOrder(ctx context.Context, orderID, reason string) error {
	var event *entity.OrderCancelledEvent
	err := s.txm.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		order, err := s.orders.Find(ctx, tx, orderID)
		if err != nil {
			return err
		}

		if order.Status != entity.OrderPending && order.Status != entity.OrderPaid {
			return invalidTransition(order.Status, entity.OrderCancelled)
		}

		if order.Status == entity.OrderPaid {
			payment, err := s.payments.FindByOrder(ctx, tx, orderID)
			if err != nil {
				return err
			}

			remaining := payment.AmountCents - payment.CancelledCents
			if remaining > 0 {
				result, err := s.gw.Cancel(ctx, gateway.CancelRequest{
					PaymentID:   payment.ProviderTxID,
					AmountCents: remaining,
					Reason:      reason,
				})
				if err != nil {
					return fmt.Errorf("payment gateway unreachable: %w", err)
				}
				if !result.Success {
					return apperrors.New(apperrors.CodeRefundFailed, "payment cancellation was rejected by the provider")
				}

				payment.ApplyCancellation(remaining)
				payment.UpdatedAt = time.Now().UTC()
				if err := s.payments.Update(ctx, tx, payment); err != nil {
					return fmt.Errorf("failed to update payment: %w", err)
				}
			}

			lines := make([]ReservationLine, len(order.Lines))
			for i, l := range order.Lines {
				lines[i] = ReservationLine{VariantID: l.VariantID, Quantity: l.Quantity}
			}
			if err := s.inventory.Restore(ctx, tx, lines, entity.MovementRelease, "order cancelled", &orderID); err != nil {
				return err
			}
		}

		if err := s.orders.UpdateStatus(ctx, tx, orderID, entity.OrderCancelled); err != nil {
			return fmt.Errorf("failed to cancel order: %w", err)
		}

		event = &entity.OrderCancelledEvent{OrderID: orderID, Reason: reason, CancelledAt: time.Now().UTC()}
		return nil
	})
	if err != nil {
		return err
	}

	s.publish(ctx, "orders.cancelled", orderID, *event)
	slog.Info("Order cancelled", "order_id", orderID, "reason", reason)
	return nil
}

// CancelItems cancels a subset of a PAID or PREPARING order's lines: refunds
// their subtotal, restores their stock, deletes them and recomputes the
// order's totals from the surviving lines.
func (s *OrderService) CancelItems(ctx context.Context, orderID string, lineIDs []string) error {
	if len(lineIDs) == 0 {
		return apperrors.New(apperrors.CodeInvalidItems, "no order lines specified")
	}

	return s.txm.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		order, err := s.orders.Find(ctx, tx, orderID)
		if err != nil {
			return err
		}

		if order.Status != entity.OrderPaid && order.Status != entity.OrderPreparing {
			return invalidTransition(order.Status, entity.OrderCancelled)
		}

		byID := make(map[string]entity.OrderLine, len(order.Lines))
		for _, l := range order.Lines {
			byID[l.ID] = l
		}

		targeted := make([]entity.OrderLine, 0, len(lineIDs))
		seen := make(map[string]bool, len(lineIDs))
		for _, id := range lineIDs {
			line, ok := byID[id]
			if !ok || seen[id] {
				return apperrors.Newf(apperrors.CodeInvalidItems, "order line %s does not belong to order %s", id, orderID)
			}
			seen[id] = true
			targeted = append(targeted, line)
		}

		if len(targeted) == len(order.Lines) {
			return apperrors.New(apperrors.CodeUseFullCancel, "cancelling every line requires the full cancellation path")
		}

		var refund int64
		for _, l := range targeted {
			refund += l.SubtotalCents
		}

		payment, err := s.payments.FindByOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}

		// On a discounted order the targeted subtotals can sum past what
		// was actually charged; never refund more than the remainder.
		if remaining := payment.AmountCents - payment.CancelledCents; refund > remaining {
			refund = remaining
		}

		if refund > 0 {
			result, err := s.gw.Cancel(ctx, gateway.CancelRequest{
				PaymentID:   payment.ProviderTxID,
				AmountCents: refund,
				Reason:      "partial cancellation",
			})
			if err != nil {
				return fmt.Errorf("payment gateway unreachable: %w", err)
			}
			if !result.Success {
				return apperrors.New(apperrors.CodeRefundFailed, "partial refund was rejected by the provider")
			}

			payment.ApplyCancellation(refund)
			payment.UpdatedAt = time.Now().UTC()
			if err := s.payments.Update(ctx, tx, payment); err != nil {
				return fmt.Errorf("failed to update payment: %w", err)
			}
		}

		lines := make([]ReservationLine, len(targeted))
		for i, l := range targeted {
			lines[i] = ReservationLine{VariantID: l.VariantID, Quantity: l.Quantity}
		}
		if err := s.inventory.Restore(ctx, tx, lines, entity.MovementRelease, "partial cancellation", &orderID); err != nil {
			return err
		}

		if err := s.orders.DeleteLines(ctx, tx, orderID, lineIDs); err != nil {
			return fmt.Errorf("failed to delete cancelled lines: %w", err)
		}

		var newTotal int64
		for _, l := range order.Lines {
			if !seen[l.ID] {
				newTotal += l.SubtotalCents
			}
		}
		newFinal := newTotal - order.DiscountCents + order.ShippingCents
		if newFinal < 0 {
			newFinal = 0
		}
		if err := s.orders.UpdateTotals(ctx, tx, orderID, newTotal, newFinal); err != nil {
			return fmt.Errorf("failed to recompute order totals: %w", err)
		}

		slog.Info("Order lines cancelled", "order_id", orderID, "lines", len(targeted), "refund", refund)
		return nil
	})
}

func (s *OrderService) stampShipment(ctx context.Context, tx repository.Tx, orderID string, status entity.ShipmentStatus) error {
	shipment, err := s.shipments.FindByOrder(ctx, tx, orderID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	shipment.Status = status
	switch status {
	case entity.ShipmentShipped:
		shipment.ShippedAt = &now
	case entity.ShipmentDelivered:
		shipment.DeliveredAt = &now
	}

	if err := s.shipments.Update(ctx, tx, shipment); err != nil {
		return fmt.Errorf("failed to update shipment: %w", err)
	}
	return nil
}

func (s *OrderService) publish(ctx context.Context, topic, key string, event entity.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishEvent(ctx, topic, key, event); err != nil {
		slog.Error("Failed to publish event", "topic", topic, "key", key, "err", err)
	}
}

func invalidTransition(from, to entity.OrderStatus) *apperrors.Error {
	return apperrors.Newf(apperrors.CodeInvalidStateTransition,
		"cannot transition order from %s to %s", from, to,
	).WithDetails(map[string]any{"from": string(from), "to": string(to)})
}
