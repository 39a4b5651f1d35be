package repository

import (
	"context"

	"github.com/shopkit/order-fulfillment/internal/entity"
)

// Tx is an opaque handle to a running database transaction. Concrete
// implementations assert it back to their own transaction type; in-memory
// fakes may ignore it entirely.
type Tx any

// TxManager runs a function inside a single bounded database transaction.
// The whole unit of work commits or rolls back together; row locks taken
// inside fn are held until it returns.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// InventoryRepository persists variants and the append-only stock movement
// log. All methods run inside the caller's transaction so locking composes.
type InventoryRepository interface {
	// LockVariant reads a variant under an exclusive row lock, serializing
	// concurrent reservations on the same SKU.
	LockVariant(ctx context.Context, tx Tx, variantID string) (*entity.Variant, error)
	// ApplyStockDelta adjusts the stock and reserved-stock counters of a
	// variant by the given signed amounts.
	ApplyStockDelta(ctx context.Context, tx Tx, variantID string, stockDelta, reservedDelta int) error
	// InsertMovement appends one stock movement log entry.
	InsertMovement(ctx context.Context, tx Tx, movement *entity.StockMovement) error
	// VariantsByProduct returns every variant of a product.
	VariantsByProduct(ctx context.Context, tx Tx, productID string) ([]entity.Variant, error)
}

// ProductRepository exposes the catalog fields the core is allowed to touch:
// the SOLD_OUT/ACTIVE flip and the running sales counter.
type ProductRepository interface {
	Find(ctx context.Context, tx Tx, productID string) (*entity.Product, error)
	SetStatus(ctx context.Context, tx Tx, productID string, status entity.ProductStatus) error
	IncrementSalesCount(ctx context.Context, tx Tx, productID string, delta int) error
}

// OrderRepository persists orders together with their line snapshots.
type OrderRepository interface {
	Create(ctx context.Context, tx Tx, order *entity.Order) error
	Find(ctx context.Context, tx Tx, orderID string) (*entity.Order, error)
	UpdateStatus(ctx context.Context, tx Tx, orderID string, status entity.OrderStatus) error
	UpdateTotals(ctx context.Context, tx Tx, orderID string, totalCents, finalCents int64) error
	DeleteLines(ctx context.Context, tx Tx, orderID string, lineIDs []string) error
}

// ShipmentRepository persists the one-to-one shipment record of an order.
type ShipmentRepository interface {
	Create(ctx context.Context, tx Tx, shipment *entity.Shipment) error
	FindByOrder(ctx context.Context, tx Tx, orderID string) (*entity.Shipment, error)
	Update(ctx context.Context, tx Tx, shipment *entity.Shipment) error
}

// PaymentRepository persists payment settlement records.
type PaymentRepository interface {
	Create(ctx context.Context, tx Tx, payment *entity.Payment) error
	FindByOrder(ctx context.Context, tx Tx, orderID string) (*entity.Payment, error)
	FindByProviderTxID(ctx context.Context, tx Tx, providerTxID string) (*entity.Payment, error)
	Update(ctx context.Context, tx Tx, payment *entity.Payment) error
}

// CouponRepository persists coupons and their one-time usage records.
type CouponRepository interface {
	FindByCode(ctx context.Context, tx Tx, code string) (*entity.Coupon, error)
	Find(ctx context.Context, tx Tx, couponID string) (*entity.Coupon, error)
	UsageExists(ctx context.Context, tx Tx, couponID, userID string) (bool, error)
	// InsertUsage creates the unique (coupon, user) usage row; a duplicate
	// insert fails with COUPON_ALREADY_USED.
	InsertUsage(ctx context.Context, tx Tx, usage *entity.CouponUsage) error
	IncrementUsedCount(ctx context.Context, tx Tx, couponID string) error
}

// AddressRepository reads address-book entries scoped to their owner.
type AddressRepository interface {
	FindForUser(ctx context.Context, tx Tx, addressID, userID string) (*entity.Address, error)
}

// ReturnRepository persists return requests.
type ReturnRepository interface {
	Create(ctx context.Context, tx Tx, ret *entity.Return) error
	Find(ctx context.Context, tx Tx, returnID string) (*entity.Return, error)
	Update(ctx context.Context, tx Tx, ret *entity.Return) error
	// ActiveExists reports whether a non-terminal return already exists for
	// the same (order, order line) pair.
	ActiveExists(ctx context.Context, tx Tx, orderID string, orderLineID *string) (bool, error)
}
