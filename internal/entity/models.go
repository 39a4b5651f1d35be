package entity

import (
	"time"
)

// ProductStatus is the catalog visibility state of a product.
type ProductStatus string

const (
	ProductActive  ProductStatus = "ACTIVE"
	ProductSoldOut ProductStatus = "SOLD_OUT"
)

// Product represents a sellable product in the store.
type Product struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	BrandID    *string       `json:"brand_id,omitempty"`
	Status     ProductStatus `json:"status"`
	SalesCount int           `json:"sales_count"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Variant is a purchasable SKU of a product with its own stock counters.
// Invariant: 0 <= ReservedStock <= Stock at all times.
type Variant struct {
	ID            string    `json:"id"`
	ProductID     string    `json:"product_id"`
	Name          string    `json:"name"`
	PriceCents    int64     `json:"price_cents"`
	Stock         int       `json:"stock"`
	ReservedStock int       `json:"reserved_stock"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
}

// AvailableStock returns the stock available for new reservations.
func (v *Variant) AvailableStock() int {
	return v.Stock - v.ReservedStock
}

// MovementKind classifies a stock movement log entry.
type MovementKind string

const (
	MovementReserve    MovementKind = "RESERVE"
	MovementRelease    MovementKind = "RELEASE"
	MovementOutbound   MovementKind = "OUTBOUND"
	MovementInbound    MovementKind = "INBOUND"
	MovementAdjustment MovementKind = "ADJUSTMENT"
)

// StockMovement is an immutable audit record of a stock-count change.
// Rows are append-only; they are never updated or deleted.
type StockMovement struct {
	ID          string       `json:"id"`
	VariantID   string       `json:"variant_id"`
	Kind        MovementKind `json:"kind"`
	Quantity    int          `json:"quantity"` // signed
	Reason      string       `json:"reason"`
	ReferenceID *string      `json:"reference_id,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Address is an immutable address-book entry read at checkout time.
type Address struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	ZipCode  string `json:"zip_code"`
	Address1 string `json:"address1"`
	Address2 string `json:"address2"`
}

// AddressSnapshot is the copy of an address frozen into an order at creation
// time, decoupled from the live address book.
type AddressSnapshot struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	ZipCode  string `json:"zip_code"`
	Address1 string `json:"address1"`
	Address2 string `json:"address2"`
}

// CartLine is a single variant/quantity pair inside a cart.
type CartLine struct {
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity"`
}

// Cart is the ephemeral pre-order state owned by a user. It is consumed
// (lines cleared) exactly once, at successful checkout.
type Cart struct {
	ID     string     `json:"id"`
	UserID string     `json:"user_id"`
	Lines  []CartLine `json:"lines"`
}
