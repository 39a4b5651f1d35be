package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shopkit/order-fulfillment/internal/apperrors"
	"github.com/shopkit/order-fulfillment/internal/entity"
	"github.com/shopkit/order-fulfillment/internal/gateway"
	"github.com/shopkit/order-fulfillment/internal/messaging"
	"github.com/shopkit/order-fulfillment/internal/repository"
)

// CreateReturnInput describes a return request for a whole order or for one
// of its lines.
type CreateReturnInput struct {
	OrderID     string  `json:"order_id"`
	OrderLineID *string `json:"order_line_id,omitempty"`
	Reason      string  `json:"reason"`
}

// ReturnService runs the return/refund workflow: eligibility checks at
// creation, the return state machine, and the refund plus stock restoration
// on completion.
type ReturnService struct {
	txm       repository.TxManager
	returns   repository.ReturnRepository
	orders    repository.OrderRepository
	payments  repository.PaymentRepository
	inventory *InventoryService
	gw        gateway.Gateway
	publisher messaging.Publisher
}

func NewReturnService(
	txm repository.TxManager,
	returns repository.ReturnRepository,
	orders repository.OrderRepository,
	payments repository.PaymentRepository,
	inventory *InventoryService,
	gw gateway.Gateway,
	publisher messaging.Publisher,
) *ReturnService {
	return &ReturnService{
		txm:       txm,
		returns:   returns,
		orders:    orders,
		payments:  payments,
		inventory: inventory,
		gw:        gw,
		publisher: publisher,
	}
}

// CreateReturn opens a return for a DELIVERED or CONFIRMED order. The refund
// amount is fixed now: the targeted line's subtotal for item-level returns,
// the order's final amount otherwise. Only one non-terminal return may exist
// per (order, line) pair.
func (s *ReturnService) CreateReturn(ctx context.Context, userID string, input CreateReturnInput) (*entity.Return, error) {
	var ret *entity.Return
	err := s.txm.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		order, err := s.orders.Find(ctx, tx, input.OrderID)
		if err != nil {
			return err
		}

		if order.UserID != userID {
			return apperrors.New(apperrors.CodeOrderNotFound, "order not found")
		}

		if order.Status != entity.OrderDelivered && order.Status != entity.OrderConfirmed {
			return apperrors.Newf(apperrors.CodeReturnNotAllowed,
				"order in status %s is not eligible for return", order.Status)
		}

		refund := order.FinalCents
		if input.OrderLineID != nil {
			line, ok := findLine(order.Lines, *input.OrderLineID)
			if !ok {
				return apperrors.Newf(apperrors.CodeInvalidItems,
					"order line %s does not belong to order %s", *input.OrderLineID, order.ID)
			}
			refund = line.SubtotalCents
		}

		exists, err := s.returns.ActiveExists(ctx, tx, input.OrderID, input.OrderLineID)
		if err != nil {
			return fmt.Errorf("failed to check existing returns: %w", err)
		}
		if exists {
			return apperrors.New(apperrors.CodeReturnAlreadyExists,
				"an open return already exists for this order item")
		}

		now := time.Now().UTC()
		ret = &entity.Return{
			ID:          uuid.New().String(),
			OrderID:     input.OrderID,
			OrderLineID: input.OrderLineID,
			UserID:      userID,
			Status:      entity.ReturnRequested,
			Reason:      input.Reason,
			RefundCents: refund,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.returns.Create(ctx, tx, ret); err != nil {
			return fmt.Errorf("failed to create return: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Return requested", "return_id", ret.ID, "order_id", ret.OrderID, "refund", ret.RefundCents)
	return ret, nil
}

// ChangeStatus applies one return lifecycle transition. Moving to COMPLETED
// triggers the refund and stock restoration; if the provider rejects the
// refund the transition rolls back and the return stays COLLECTED so the
// completion can be retried.
func (s *ReturnService) ChangeStatus(ctx context.Context, returnID string, next entity.ReturnStatus) error {
	var completed *entity.ReturnCompletedEvent
	err := s.txm.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		ret, err := s.returns.Find(ctx, tx, returnID)
		if err != nil {
			return err
		}

		if !ret.Status.CanTransitionTo(next) {
			return apperrors.Newf(apperrors.CodeInvalidReturnTransition,
				"cannot transition return from %s to %s", ret.Status, next,
			).WithDetails(map[string]any{"from": string(ret.Status), "to": string(next)})
		}

		if next == entity.ReturnCompleted {
			if err := s.complete(ctx, tx, ret); err != nil {
				return err
			}
			completed = &entity.ReturnCompletedEvent{
				ReturnID:    ret.ID,
				OrderID:     ret.OrderID,
				RefundCents: ret.RefundCents,
				CompletedAt: time.Now().UTC(),
			}
		}

		ret.Status = next
		ret.UpdatedAt = time.Now().UTC()
		if err := s.returns.Update(ctx, tx, ret); err != nil {
			return fmt.Errorf("failed to update return: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if completed != nil {
		s.publish(ctx, "returns.completed", completed.ReturnID, *completed)
	}
	return nil
}

// complete refunds the return's amount through the gateway, capped at the
// payment's remaining balance, and restores the returned stock with INBOUND
// movements.
func (s *ReturnService) complete(ctx context.Context, tx repository.Tx, ret *entity.Return) error {
	payment, err := s.payments.FindByOrder(ctx, tx, ret.OrderID)
	if err != nil {
		return err
	}

	// The fixed refund is a line subtotal or the order's final amount; on a
	// discounted order that can exceed what is left on the payment.
	refund := ret.RefundCents
	if remaining := payment.AmountCents - payment.CancelledCents; refund > remaining {
		refund = remaining
	}

	if refund > 0 {
		result, err := s.gw.Cancel(ctx, gateway.CancelRequest{
			PaymentID:   payment.ProviderTxID,
			AmountCents: refund,
			Reason:      "return completed",
		})
		if err != nil {
			return fmt.Errorf("payment gateway unreachable: %w", err)
		}
		if !result.Success {
			return apperrors.New(apperrors.CodeRefundFailed, "refund was rejected by the provider")
		}

		payment.ApplyCancellation(refund)
		payment.UpdatedAt = time.Now().UTC()
		if err := s.payments.Update(ctx, tx, payment); err != nil {
			return fmt.Errorf("failed to update payment: %w", err)
		}
	}

	order, err := s.orders.Find(ctx, tx, ret.OrderID)
	if err != nil {
		return err
	}

	var lines []ReservationLine
	if ret.OrderLineID != nil {
		line, ok := findLine(order.Lines, *ret.OrderLineID)
		if !ok {
			return apperrors.Newf(apperrors.CodeInvalidItems,
				"order line %s no longer belongs to order %s", *ret.OrderLineID, order.ID)
		}
		lines = []ReservationLine{{VariantID: line.VariantID, Quantity: line.Quantity}}
	} else {
		lines = make([]ReservationLine, len(order.Lines))
		for i, l := range order.Lines {
			lines[i] = ReservationLine{VariantID: l.VariantID, Quantity: l.Quantity}
		}
	}

	if err := s.inventory.Restore(ctx, tx, lines, entity.MovementInbound, "return completed", &ret.ID); err != nil {
		return err
	}

	slog.Info("Return completed", "return_id", ret.ID, "order_id", ret.OrderID, "refund", ret.RefundCents)
	return nil
}

func (s *ReturnService) publish(ctx context.Context, topic, key string, event entity.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishEvent(ctx, topic, key, event); err != nil {
		slog.Error("Failed to publish event", "topic", topic, "key", key, "err", err)
	}
}

func findLine(lines []entity.OrderLine, lineID string) (entity.OrderLine, bool) {
	for _, l := range lines {
		if l.ID == lineID {
			return l, true
		}
	}
	return entity.OrderLine{}, false
}
