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

// CartProvider is the boundary to the external cart collaborator: read the
// user's cart, and clear it exactly once after a successful charge.
type CartProvider interface {
	Get(ctx context.Context, userID string) (*entity.Cart, error)
	Clear(ctx context.Context, cartID string) error
}

// CreateOrderInput is the caller-supplied portion of a checkout.
type CreateOrderInput struct {
	AddressID     string  `json:"address_id"`
	CouponCode    *string `json:"coupon_code,omitempty"`
	PaymentMethod string  `json:"payment_method"`
	Note          *string `json:"note,omitempty"`
}

// CheckoutService turns a cart into a paid, inventory-committed order inside
// one bounded transaction: reserve stock, total, apply coupon, compute
// shipping, snapshot the address, create the order, charge payment, then
// confirm or roll back.
type CheckoutService struct {
	txm       repository.TxManager
	cart      CartProvider
	inventory *InventoryService
	coupons   *CouponService
	orders    repository.OrderRepository
	payments  repository.PaymentRepository
	shipments repository.ShipmentRepository
	addresses repository.AddressRepository
	products  repository.ProductRepository
	gw        gateway.Gateway
	publisher messaging.Publisher
}

func NewCheckoutService(
	txm repository.TxManager,
	cart CartProvider,
	inventory *InventoryService,
	coupons *CouponService,
	orders repository.OrderRepository,
	payments repository.PaymentRepository,
	shipments repository.ShipmentRepository,
	addresses repository.AddressRepository,
	products repository.ProductRepository,
	gw gateway.Gateway,
	publisher messaging.Publisher,
) *CheckoutService {
	return &CheckoutService{
		txm:       txm,
		cart:      cart,
		inventory: inventory,
		coupons:   coupons,
		orders:    orders,
		payments:  payments,
		shipments: shipments,
		addresses: addresses,
		products:  products,
		gw:        gw,
		publisher: publisher,
	}
}

// CreateOrder runs the checkout transaction for a user. It either produces a
// fully paid, fully reserved order with an emptied cart, or nothing durable
// beyond a CANCELLED order and its release movements when the charge is
// declined.
func (s *CheckoutService) CreateOrder(ctx context.Context, userID string, input CreateOrderInput) (*entity.Order, error) {
	cart, err := s.cart.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if cart == nil || len(cart.Lines) == 0 {
		return nil, apperrors.New(apperrors.CodeCartEmpty, "cart is empty")
	}

	var (
		order      *entity.Order
		chargeErr  error // gateway-declined charge; the transaction still commits
		paidEvent  *entity.OrderPaidEvent
		cancelledE *entity.OrderCancelledEvent
	)

	err = s.txm.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		lines := make([]ReservationLine, len(cart.Lines))
		for i, cl := range cart.Lines {
			lines[i] = ReservationLine{VariantID: cl.VariantID, Quantity: cl.Quantity}
		}

		// Steps 2-3: lock, validate and reserve every line; price from the
		// locked rows.
		reserved, err := s.inventory.Reserve(ctx, tx, lines)
		if err != nil {
			return err
		}

		var subtotal int64
		for _, r := range reserved {
			subtotal += r.Variant.PriceCents * int64(r.Quantity)
		}

		// Step 4: coupon.
		var (
			coupon   *entity.Coupon
			discount int64
		)
		if input.CouponCode != nil && *input.CouponCode != "" {
			coupon, discount, err = s.coupons.ValidateAndCalculate(ctx, tx, *input.CouponCode, userID, subtotal)
			if err != nil {
				return err
			}
		}

		// Step 5: shipping.
		shipping := ShippingFee(subtotal - discount)

		// Step 6: address snapshot + order in PENDING.
		address, err := s.addresses.FindForUser(ctx, tx, input.AddressID, userID)
		if err != nil {
			return err
		}

		final := subtotal - discount + shipping
		if final < 0 {
			final = 0
		}

		now := time.Now().UTC()
		order = &entity.Order{
			ID:            uuid.New().String(),
			UserID:        userID,
			Status:        entity.OrderPending,
			TotalCents:    subtotal,
			DiscountCents: discount,
			ShippingCents: shipping,
			FinalCents:    final,
			Address: entity.AddressSnapshot{
				Name:     address.Name,
				Phone:    address.Phone,
				ZipCode:  address.ZipCode,
				Address1: address.Address1,
				Address2: address.Address2,
			},
			Note:      input.Note,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if coupon != nil {
			order.CouponID = &coupon.ID
		}

		order.Lines = make([]entity.OrderLine, len(reserved))
		for i, r := range reserved {
			product, err := s.products.Find(ctx, tx, r.Variant.ProductID)
			if err != nil {
				return err
			}
			order.Lines[i] = entity.OrderLine{
				ID:            uuid.New().String(),
				OrderID:       order.ID,
				ProductID:     r.Variant.ProductID,
				VariantID:     r.Variant.ID,
				ProductName:   product.Name,
				VariantName:   r.Variant.Name,
				PriceCents:    r.Variant.PriceCents,
				Quantity:      r.Quantity,
				SubtotalCents: r.Variant.PriceCents * int64(r.Quantity),
			}
		}

		if err := s.orders.Create(ctx, tx, order); err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		// Step 7: charge. An infrastructure error aborts the whole
		// transaction; a gateway-reported decline commits the compensation
		// (released stock + CANCELLED order) as the only durable artifact.
		result, err := s.gw.Charge(ctx, gateway.ChargeRequest{
			OrderID:     order.ID,
			UserID:      userID,
			AmountCents: order.FinalCents,
			Method:      input.PaymentMethod,
		})
		if err != nil {
			return fmt.Errorf("payment gateway unreachable: %w", err)
		}

		if !result.Success {
			if err := s.inventory.Release(ctx, tx, lines, "payment failed", &order.ID); err != nil {
				return err
			}
			if err := s.orders.UpdateStatus(ctx, tx, order.ID, entity.OrderCancelled); err != nil {
				return fmt.Errorf("failed to cancel order: %w", err)
			}
			order.Status = entity.OrderCancelled

			chargeErr = apperrors.Newf(apperrors.CodePaymentFailed, "payment failed: %s", result.FailReason)
			cancelledE = &entity.OrderCancelledEvent{OrderID: order.ID, Reason: result.FailReason, CancelledAt: time.Now().UTC()}
			return nil
		}

		// Step 8: settle.
		payment := &entity.Payment{
			ID:           uuid.New().String(),
			OrderID:      order.ID,
			AmountCents:  order.FinalCents,
			Status:       entity.PaymentCompleted,
			Method:       input.PaymentMethod,
			ProviderTxID: result.PaymentID,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.payments.Create(ctx, tx, payment); err != nil {
			return fmt.Errorf("failed to persist payment: %w", err)
		}

		if err := s.orders.UpdateStatus(ctx, tx, order.ID, entity.OrderPaid); err != nil {
			return fmt.Errorf("failed to mark order paid: %w", err)
		}
		order.Status = entity.OrderPaid

		if err := s.inventory.Confirm(ctx, tx, lines, order.ID); err != nil {
			return err
		}

		if coupon != nil {
			if err := s.coupons.MarkUsed(ctx, tx, coupon.ID, userID, order.ID); err != nil {
				return err
			}
		}

		for _, r := range reserved {
			if err := s.products.IncrementSalesCount(ctx, tx, r.Variant.ProductID, r.Quantity); err != nil {
				return fmt.Errorf("failed to increment sales count: %w", err)
			}
		}

		shipment := &entity.Shipment{
			ID:      uuid.New().String(),
			OrderID: order.ID,
			Status:  entity.ShipmentPreparing,
		}
		if err := s.shipments.Create(ctx, tx, shipment); err != nil {
			return fmt.Errorf("failed to create shipment: %w", err)
		}

		paidEvent = &entity.OrderPaidEvent{
			OrderID:    order.ID,
			UserID:     userID,
			FinalCents: order.FinalCents,
			PaidAt:     time.Now().UTC(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if chargeErr != nil {
		s.publish(ctx, "orders.cancelled", cancelledE.OrderID, *cancelledE)
		return nil, chargeErr
	}

	// The cart is consumed only once the charge has committed.
	if err := s.cart.Clear(ctx, cart.ID); err != nil {
		slog.Error("Failed to clear cart after checkout", "cart_id", cart.ID, "order_id", order.ID, "err", err)
	}

	s.publish(ctx, "orders.paid", paidEvent.OrderID, *paidEvent)
	slog.Info("Checkout completed", "order_id", order.ID, "user_id", userID, "final", order.FinalCents)

	return order, nil
}

// publish sends a domain event after commit; broker failures are logged, not
// surfaced, since the order is already durable.
func (s *CheckoutService) publish(ctx context.Context, topic, key string, event entity.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishEvent(ctx, topic, key, event); err != nil {
		slog.Error("Failed to publish event", "topic", topic, "key", key, "err", err)
	}
}
