package service

import (
	"context"

	"github.com/shopkit/order-fulfillment/internal/apperrors"
	"github.com/shopkit/order-fulfillment/internal/entity"
	"github.com/shopkit/order-fulfillment/internal/repository"
)

// memStore backs the in-memory repository fakes. The tx manager snapshots it
// before each unit of work and restores the snapshot on error, mirroring the
// rollback semantics of the real database.
type memStore struct {
	variants  map[string]entity.Variant
	movements []entity.StockMovement
	products  map[string]entity.Product
	orders    map[string]entity.Order
	shipments map[string]entity.Shipment
	payments  map[string]entity.Payment
	coupons   map[string]entity.Coupon
	usages    []entity.CouponUsage
	addresses map[string]entity.Address
	returns   map[string]entity.Return
}

func newMemStore() *memStore {
	return &memStore{
		variants:  make(map[string]entity.Variant),
		products:  make(map[string]entity.Product),
		orders:    make(map[string]entity.Order),
		shipments: make(map[string]entity.Shipment),
		payments:  make(map[string]entity.Payment),
		coupons:   make(map[string]entity.Coupon),
		addresses: make(map[string]entity.Address),
		returns:   make(map[string]entity.Return),
	}
}

func (s *memStore) clone() *memStore {
	c := newMemStore()
	for k, v := range s.variants {
		c.variants[k] = v
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.orders {
		v.Lines = append([]entity.OrderLine(nil), v.Lines...)
		c.orders[k] = v
	}
	for k, v := range s.shipments {
		c.shipments[k] = v
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	for k, v := range s.coupons {
		c.coupons[k] = v
	}
	for k, v := range s.addresses {
		c.addresses[k] = v
	}
	for k, v := range s.returns {
		c.returns[k] = v
	}
	c.movements = append([]entity.StockMovement(nil), s.movements...)
	c.usages = append([]entity.CouponUsage(nil), s.usages...)
	return c
}

func (s *memStore) movementsOfKind(kind entity.MovementKind) []entity.StockMovement {
	var out []entity.StockMovement
	for _, m := range s.movements {
		if m.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}

type memTxManager struct {
	store *memStore
}

func (m *memTxManager) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	snap := m.store.clone()
	if err := fn(ctx, nil); err != nil {
		*m.store = *snap
		return err
	}
	return nil
}

type memInventoryRepo struct{ store *memStore }

func (r *memInventoryRepo) LockVariant(ctx context.Context, tx repository.Tx, variantID string) (*entity.Variant, error) {
	v, ok := r.store.variants[variantID]
	if !ok {
		return nil, apperrors.Newf(apperrors.CodeVariantNotFound, "variant %s not found", variantID)
	}
	return &v, nil
}

func (r *memInventoryRepo) ApplyStockDelta(ctx context.Context, tx repository.Tx, variantID string, stockDelta, reservedDelta int) error {
	v := r.store.variants[variantID]
	v.Stock += stockDelta
	v.ReservedStock += reservedDelta
	r.store.variants[variantID] = v
	return nil
}

func (r *memInventoryRepo) InsertMovement(ctx context.Context, tx repository.Tx, movement *entity.StockMovement) error {
	r.store.movements = append(r.store.movements, *movement)
	return nil
}

func (r *memInventoryRepo) VariantsByProduct(ctx context.Context, tx repository.Tx, productID string) ([]entity.Variant, error) {
	var out []entity.Variant
	for _, v := range r.store.variants {
		if v.ProductID == productID {
			out = append(out, v)
		}
	}
	return out, nil
}

type memProductRepo struct{ store *memStore }

func (r *memProductRepo) Find(ctx context.Context, tx repository.Tx, productID string) (*entity.Product, error) {
	p, ok := r.store.products[productID]
	if !ok {
		return nil, apperrors.Newf(apperrors.CodeVariantNotFound, "product %s not found", productID)
	}
	return &p, nil
}

func (r *memProductRepo) SetStatus(ctx context.Context, tx repository.Tx, productID string, status entity.ProductStatus) error {
	p := r.store.products[productID]
	p.Status = status
	r.store.products[productID] = p
	return nil
}

func (r *memProductRepo) IncrementSalesCount(ctx context.Context, tx repository.Tx, productID string, delta int) error {
	p := r.store.products[productID]
	p.SalesCount += delta
	r.store.products[productID] = p
	return nil
}

type memOrderRepo struct{ store *memStore }

func (r *memOrderRepo) Create(ctx context.Context, tx repository.Tx, order *entity.Order) error {
	o := *order
	o.Lines = append([]entity.OrderLine(nil), order.Lines...)
	r.store.orders[order.ID] = o
	return nil
}

func (r *memOrderRepo) Find(ctx context.Context, tx repository.Tx, orderID string) (*entity.Order, error) {
	o, ok := r.store.orders[orderID]
	if !ok {
		return nil, apperrors.Newf(apperrors.CodeOrderNotFound, "order %s not found", orderID)
	}
	o.Lines = append([]entity.OrderLine(nil), o.Lines...)
	return &o, nil
}

func (r *memOrderRepo) UpdateStatus(ctx context.Context, tx repository.Tx, orderID string, status entity.OrderStatus) error {
	o := r.store.orders[orderID]
	o.Status = status
	r.store.orders[orderID] = o
	return nil
}

func (r *memOrderRepo) UpdateTotals(ctx context.Context, tx repository.Tx, orderID string, totalCents, finalCents int64) error {
	o := r.store.orders[orderID]
	o.TotalCents = totalCents
	o.FinalCents = finalCents
	r.store.orders[orderID] = o
	return nil
}

func (r *memOrderRepo) DeleteLines(ctx context.Context, tx repository.Tx, orderID string, lineIDs []string) error {
	drop := make(map[string]bool, len(lineIDs))
	for _, id := range lineIDs {
		drop[id] = true
	}
	o := r.store.orders[orderID]
	kept := o.Lines[:0:0]
	for _, l := range o.Lines {
		if !drop[l.ID] {
			kept = append(kept, l)
		}
	}
	o.Lines = kept
	r.store.orders[orderID] = o
	return nil
}

type memShipmentRepo struct{ store *memStore }

func (r *memShipmentRepo) Create(ctx context.Context, tx repository.Tx, shipment *entity.Shipment) error {
	r.store.shipments[shipment.ID] = *shipment
	return nil
}

func (r *memShipmentRepo) FindByOrder(ctx context.Context, tx repository.Tx, orderID string) (*entity.Shipment, error) {
	for _, s := range r.store.shipments {
		if s.OrderID == orderID {
			return &s, nil
		}
	}
	return nil, apperrors.Newf(apperrors.CodeOrderNotFound, "shipment for order %s not found", orderID)
}

func (r *memShipmentRepo) Update(ctx context.Context, tx repository.Tx, shipment *entity.Shipment) error {
	r.store.shipments[shipment.ID] = *shipment
	return nil
}

type memPaymentRepo struct{ store *memStore }

func (r *memPaymentRepo) Create(ctx context.Context, tx repository.Tx, payment *entity.Payment) error {
	r.store.payments[payment.ID] = *payment
	return nil
}

func (r *memPaymentRepo) FindByOrder(ctx context.Context, tx repository.Tx, orderID string) (*entity.Payment, error) {
	for _, p := range r.store.payments {
		if p.OrderID == orderID {
			return &p, nil
		}
	}
	return nil, apperrors.Newf(apperrors.CodePaymentNotFound, "payment with order_id %s not found", orderID)
}

func (r *memPaymentRepo) FindByProviderTxID(ctx context.Context, tx repository.Tx, providerTxID string) (*entity.Payment, error) {
	for _, p := range r.store.payments {
		if p.ProviderTxID == providerTxID {
			return &p, nil
		}
	}
	return nil, apperrors.Newf(apperrors.CodePaymentNotFound, "payment with provider_tx_id %s not found", providerTxID)
}

func (r *memPaymentRepo) Update(ctx context.Context, tx repository.Tx, payment *entity.Payment) error {
	r.store.payments[payment.ID] = *payment
	return nil
}

type memCouponRepo struct{ store *memStore }

func (r *memCouponRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*entity.Coupon, error) {
	for _, c := range r.store.coupons {
		if c.Code == code {
			return &c, nil
		}
	}
	return nil, apperrors.Newf(apperrors.CodeCouponNotFound, "coupon %s not found", code)
}

func (r *memCouponRepo) Find(ctx context.Context, tx repository.Tx, couponID string) (*entity.Coupon, error) {
	c, ok := r.store.coupons[couponID]
	if !ok {
		return nil, apperrors.Newf(apperrors.CodeCouponNotFound, "coupon %s not found", couponID)
	}
	return &c, nil
}

func (r *memCouponRepo) UsageExists(ctx context.Context, tx repository.Tx, couponID, userID string) (bool, error) {
	for _, u := range r.store.usages {
		if u.CouponID == couponID && u.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memCouponRepo) InsertUsage(ctx context.Context, tx repository.Tx, usage *entity.CouponUsage) error {
	// Mirrors the unique (coupon_id, user_id) constraint.
	for _, u := range r.store.usages {
		if u.CouponID == usage.CouponID && u.UserID == usage.UserID {
			return apperrors.New(apperrors.CodeCouponAlreadyUsed, "coupon was already used")
		}
	}
	r.store.usages = append(r.store.usages, *usage)
	return nil
}

func (r *memCouponRepo) IncrementUsedCount(ctx context.Context, tx repository.Tx, couponID string) error {
	c := r.store.coupons[couponID]
	c.UsedCount++
	r.store.coupons[couponID] = c
	return nil
}

type memAddressRepo struct{ store *memStore }

func (r *memAddressRepo) FindForUser(ctx context.Context, tx repository.Tx, addressID, userID string) (*entity.Address, error) {
	a, ok := r.store.addresses[addressID]
	if !ok || a.UserID != userID {
		return nil, apperrors.Newf(apperrors.CodeAddressNotFound, "address %s not found", addressID)
	}
	return &a, nil
}

type memReturnRepo struct{ store *memStore }

func (r *memReturnRepo) Create(ctx context.Context, tx repository.Tx, ret *entity.Return) error {
	r.store.returns[ret.ID] = *ret
	return nil
}

func (r *memReturnRepo) Find(ctx context.Context, tx repository.Tx, returnID string) (*entity.Return, error) {
	ret, ok := r.store.returns[returnID]
	if !ok {
		return nil, apperrors.Newf(apperrors.CodeReturnNotFound, "return %s not found", returnID)
	}
	return &ret, nil
}

func (r *memReturnRepo) Update(ctx context.Context, tx repository.Tx, ret *entity.Return) error {
	r.store.returns[ret.ID] = *ret
	return nil
}

func (r *memReturnRepo) ActiveExists(ctx context.Context, tx repository.Tx, orderID string, orderLineID *string) (bool, error) {
	for _, ret := range r.store.returns {
		if ret.OrderID != orderID || ret.Status.IsTerminal() {
			continue
		}
		if orderLineID == nil && ret.OrderLineID == nil {
			return true, nil
		}
		if orderLineID != nil && ret.OrderLineID != nil && *orderLineID == *ret.OrderLineID {
			return true, nil
		}
	}
	return false, nil
}

// memCartProvider is a fixed cart for checkout tests.
type memCartProvider struct {
	cart    *entity.Cart
	cleared bool
}

func (p *memCartProvider) Get(ctx context.Context, userID string) (*entity.Cart, error) {
	return p.cart, nil
}

func (p *memCartProvider) Clear(ctx context.Context, cartID string) error {
	p.cleared = true
	return nil
}

// memPublisher records published events for assertions.
type publishedEvent struct {
	topic string
	key   string
	event any
}

type memPublisher struct {
	events []publishedEvent
}

func (p *memPublisher) PublishEvent(ctx context.Context, topic string, key string, event any) error {
	p.events = append(p.events, publishedEvent{topic: topic, key: key, event: event})
	return nil
}

func (p *memPublisher) topics() []string {
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.topic
	}
	return out
}
