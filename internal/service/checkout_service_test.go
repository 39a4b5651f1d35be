package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopkit/order-fulfillment/internal/apperrors"
	"github.com/shopkit/order-fulfillment/internal/entity"
	"github.com/shopkit/order-fulfillment/internal/gateway"
)

type checkoutFixture struct {
	store *memStore
	cart  *memCartProvider
	pub   *memPublisher
	svc   *CheckoutService
}

// newCheckoutFixture seeds a catalog where v1 costs 10000 and v2 costs 1099,
// so a one-item v2 cart totals 4099 with shipping and triggers the gateway's
// deterministic decline on amounts ending in 99.
func newCheckoutFixture(lines []entity.CartLine) *checkoutFixture {
	store := newMemStore()
	store.products["p1"] = entity.Product{ID: "p1", Name: "Hoodie", Status: entity.ProductActive}
	store.variants["v1"] = entity.Variant{ID: "v1", ProductID: "p1", Name: "M", PriceCents: 10000, Stock: 10, Active: true}
	store.variants["v2"] = entity.Variant{ID: "v2", ProductID: "p1", Name: "L", PriceCents: 1099, Stock: 5, Active: true}
	store.variants["v3"] = entity.Variant{ID: "v3", ProductID: "p1", Name: "XL", PriceCents: 10000, Stock: 1, Active: true}
	store.addresses["a1"] = entity.Address{ID: "a1", UserID: "u1", Name: "Jo", Phone: "010", ZipCode: "12345", Address1: "1 Main St"}
	store.coupons["c1"] = validCoupon()

	txm := &memTxManager{store: store}
	cart := &memCartProvider{cart: &entity.Cart{ID: "cart:u1", UserID: "u1", Lines: lines}}
	pub := &memPublisher{}
	inventory := NewInventoryService(txm, &memInventoryRepo{store: store}, &memProductRepo{store: store})

	svc := NewCheckoutService(
		txm, cart, inventory,
		NewCouponService(&memCouponRepo{store: store}),
		&memOrderRepo{store: store},
		&memPaymentRepo{store: store},
		&memShipmentRepo{store: store},
		&memAddressRepo{store: store},
		&memProductRepo{store: store},
		gateway.NewMockGateway(),
		pub,
	)
	return &checkoutFixture{store: store, cart: cart, pub: pub, svc: svc}
}

func checkoutInput() CreateOrderInput {
	return CreateOrderInput{AddressID: "a1", PaymentMethod: "card"}
}

func TestCreateOrderSuccess(t *testing.T) {
	f := newCheckoutFixture([]entity.CartLine{{VariantID: "v1", Quantity: 2}})

	order, err := f.svc.CreateOrder(context.Background(), "u1", checkoutInput())
	require.NoError(t, err)

	assert.Equal(t, entity.OrderPaid, order.Status)
	assert.Equal(t, int64(20000), order.TotalCents)
	assert.Equal(t, int64(0), order.DiscountCents)
	assert.Equal(t, int64(3000), order.ShippingCents)
	assert.Equal(t, int64(23000), order.FinalCents)
	assert.Equal(t, "Jo", order.Address.Name)
	require.Len(t, order.Lines, 1)
	assert.Equal(t, "Hoodie", order.Lines[0].ProductName)
	assert.Equal(t, int64(20000), order.Lines[0].SubtotalCents)

	stored := f.store.orders[order.ID]
	assert.Equal(t, entity.OrderPaid, stored.Status)

	// Reservation was confirmed into a real decrement.
	assert.Equal(t, 8, f.store.variants["v1"].Stock)
	assert.Equal(t, 0, f.store.variants["v1"].ReservedStock)
	assert.Equal(t, 2, f.store.products["p1"].SalesCount)

	require.Len(t, f.store.payments, 1)
	for _, p := range f.store.payments {
		assert.Equal(t, entity.PaymentCompleted, p.Status)
		assert.Equal(t, int64(23000), p.AmountCents)
		assert.NotEmpty(t, p.ProviderTxID)
	}

	require.Len(t, f.store.shipments, 1)
	for _, s := range f.store.shipments {
		assert.Equal(t, entity.ShipmentPreparing, s.Status)
	}

	assert.True(t, f.cart.cleared)
	assert.Contains(t, f.pub.topics(), "orders.paid")

	require.Len(t, f.store.movementsOfKind(entity.MovementReserve), 1)
	require.Len(t, f.store.movementsOfKind(entity.MovementOutbound), 1)
}

func TestCreateOrderEmptyCart(t *testing.T) {
	f := newCheckoutFixture(nil)

	_, err := f.svc.CreateOrder(context.Background(), "u1", checkoutInput())

	assert.True(t, apperrors.HasCode(err, apperrors.CodeCartEmpty))
}

func TestCreateOrderInsufficientStockRollsBack(t *testing.T) {
	f := newCheckoutFixture([]entity.CartLine{{VariantID: "v1", Quantity: 11}})

	_, err := f.svc.CreateOrder(context.Background(), "u1", checkoutInput())

	require.True(t, apperrors.HasCode(err, apperrors.CodeInsufficientStock))
	assert.Empty(t, f.store.orders)
	assert.Empty(t, f.store.movements)
	assert.Equal(t, 0, f.store.variants["v1"].ReservedStock)
	assert.False(t, f.cart.cleared)
}

func TestCreateOrderPaymentDeclined(t *testing.T) {
	f := newCheckoutFixture([]entity.CartLine{{VariantID: "v2", Quantity: 1}})

	_, err := f.svc.CreateOrder(context.Background(), "u1", checkoutInput())
	require.True(t, apperrors.HasCode(err, apperrors.CodePaymentFailed))

	// The cancelled order and the release trail are the only durable
	// artifacts of a declined checkout.
	require.Len(t, f.store.orders, 1)
	for _, o := range f.store.orders {
		assert.Equal(t, entity.OrderCancelled, o.Status)
		assert.Equal(t, int64(4099), o.FinalCents)
	}
	assert.Empty(t, f.store.payments)
	assert.Empty(t, f.store.shipments)

	assert.Equal(t, 5, f.store.variants["v2"].Stock)
	assert.Equal(t, 0, f.store.variants["v2"].ReservedStock)
	assert.Equal(t, 0, f.store.products["p1"].SalesCount)
	require.Len(t, f.store.movementsOfKind(entity.MovementReserve), 1)
	require.Len(t, f.store.movementsOfKind(entity.MovementRelease), 1)

	assert.False(t, f.cart.cleared)
	assert.Contains(t, f.pub.topics(), "orders.cancelled")
}

func TestCreateOrderAppliesCoupon(t *testing.T) {
	f := newCheckoutFixture([]entity.CartLine{{VariantID: "v1", Quantity: 4}})

	input := checkoutInput()
	input.CouponCode = strPtr("WELCOME10")

	order, err := f.svc.CreateOrder(context.Background(), "u1", input)
	require.NoError(t, err)

	assert.Equal(t, int64(40000), order.TotalCents)
	assert.Equal(t, int64(4000), order.DiscountCents)
	assert.Equal(t, int64(3000), order.ShippingCents)
	assert.Equal(t, int64(39000), order.FinalCents)
	require.NotNil(t, order.CouponID)
	assert.Equal(t, "c1", *order.CouponID)

	require.Len(t, f.store.usages, 1)
	assert.Equal(t, order.ID, f.store.usages[0].OrderID)
	assert.Equal(t, 1, f.store.coupons["c1"].UsedCount)
}

func TestCreateOrderCouponBelowMinRollsBack(t *testing.T) {
	f := newCheckoutFixture([]entity.CartLine{{VariantID: "v1", Quantity: 2}})

	input := checkoutInput()
	input.CouponCode = strPtr("WELCOME10")

	_, err := f.svc.CreateOrder(context.Background(), "u1", input)

	require.True(t, apperrors.HasCode(err, apperrors.CodeCouponMinOrder))
	assert.Empty(t, f.store.orders)
	assert.Equal(t, 0, f.store.variants["v1"].ReservedStock)
	assert.Empty(t, f.store.usages)
}

func TestCreateOrderFreeShippingThreshold(t *testing.T) {
	f := newCheckoutFixture([]entity.CartLine{{VariantID: "v1", Quantity: 5}})

	order, err := f.svc.CreateOrder(context.Background(), "u1", checkoutInput())
	require.NoError(t, err)

	assert.Equal(t, int64(50000), order.TotalCents)
	assert.Equal(t, int64(0), order.ShippingCents)
	assert.Equal(t, int64(50000), order.FinalCents)
}

func TestCompetingCheckoutsOnLastUnit(t *testing.T) {
	f := newCheckoutFixture([]entity.CartLine{{VariantID: "v3", Quantity: 1}})
	ctx := context.Background()

	// The first checkout takes the last unit.
	_, err := f.svc.CreateOrder(ctx, "u1", checkoutInput())
	require.NoError(t, err)
	assert.Equal(t, 0, f.store.variants["v3"].Stock)

	// The second attempt for the same unit loses deterministically.
	f.cart.cart = &entity.Cart{ID: "cart:u1", UserID: "u1", Lines: []entity.CartLine{{VariantID: "v3", Quantity: 1}}}
	_, err = f.svc.CreateOrder(ctx, "u1", checkoutInput())

	require.True(t, apperrors.HasCode(err, apperrors.CodeInsufficientStock))
	assert.Equal(t, 0, f.store.variants["v3"].Stock)
	assert.Equal(t, 0, f.store.variants["v3"].ReservedStock)
}

func TestCreateOrderAddressNotFoundRollsBack(t *testing.T) {
	f := newCheckoutFixture([]entity.CartLine{{VariantID: "v1", Quantity: 1}})

	input := checkoutInput()
	input.AddressID = "someone-elses"

	_, err := f.svc.CreateOrder(context.Background(), "u1", input)

	require.True(t, apperrors.HasCode(err, apperrors.CodeAddressNotFound))
	assert.Empty(t, f.store.orders)
	assert.Equal(t, 0, f.store.variants["v1"].ReservedStock)
}
