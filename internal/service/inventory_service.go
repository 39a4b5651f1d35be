package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shopkit/order-fulfillment/internal/apperrors"
	"github.com/shopkit/order-fulfillment/internal/entity"
	"github.com/shopkit/order-fulfillment/internal/repository"
)

// ReservationLine is one variant/quantity pair to reserve, confirm or
// release.
type ReservationLine struct {
	VariantID string
	Quantity  int
}

// ReservedLine pairs a reservation with the variant row read under lock, so
// the caller can price lines without a second read.
type ReservedLine struct {
	Variant  entity.Variant
	Quantity int
}

// InventoryService is the stock reservation ledger. Reserve, Confirm and
// Release run inside the caller's transaction so row locking composes with
// the rest of the unit of work; Adjust opens its own transaction.
type InventoryService struct {
	txm       repository.TxManager
	inventory repository.InventoryRepository
	products  repository.ProductRepository
}

func NewInventoryService(
	txm repository.TxManager,
	inventory repository.InventoryRepository,
	products repository.ProductRepository,
) *InventoryService {
	return &InventoryService{
		txm:       txm,
		inventory: inventory,
		products:  products,
	}
}

// Reserve locks each variant row in turn, verifies available stock and
// increments the reserved counter, logging a RESERVE movement per line. The
// whole reservation is all-or-nothing: any shortfall aborts the caller's
// transaction.
func (s *InventoryService) Reserve(ctx context.Context, tx repository.Tx, lines []ReservationLine) ([]ReservedLine, error) {
	reserved := make([]ReservedLine, 0, len(lines))

	for _, line := range lines {
		variant, err := s.inventory.LockVariant(ctx, tx, line.VariantID)
		if err != nil {
			return nil, err
		}

		if !variant.Active {
			return nil, apperrors.Newf(apperrors.CodeVariantInactive,
				"variant %s is no longer available for sale", variant.ID)
		}

		if variant.AvailableStock() < line.Quantity {
			return nil, apperrors.Newf(apperrors.CodeInsufficientStock,
				"insufficient stock for variant %s: available %d, requested %d",
				variant.ID, variant.AvailableStock(), line.Quantity,
			).WithDetails(map[string]any{
				"variant_id": variant.ID,
				"available":  variant.AvailableStock(),
				"requested":  line.Quantity,
			})
		}

		if err := s.inventory.ApplyStockDelta(ctx, tx, variant.ID, 0, line.Quantity); err != nil {
			return nil, fmt.Errorf("failed to reserve stock for variant %s: %w", variant.ID, err)
		}

		if err := s.logMovement(ctx, tx, variant.ID, entity.MovementReserve, -line.Quantity, "stock reserved at checkout", nil); err != nil {
			return nil, err
		}

		variant.ReservedStock += line.Quantity
		reserved = append(reserved, ReservedLine{Variant: *variant, Quantity: line.Quantity})
	}

	return reserved, nil
}

// Confirm converts reservations into permanent decrements: stock and
// reserved stock go down together and an OUTBOUND movement tagged with the
// order is logged. A product whose variants are all out of available stock
// is flipped to SOLD_OUT.
func (s *InventoryService) Confirm(ctx context.Context, tx repository.Tx, lines []ReservationLine, orderID string) error {
	for _, line := range lines {
		variant, err := s.inventory.LockVariant(ctx, tx, line.VariantID)
		if err != nil {
			return err
		}

		if err := s.inventory.ApplyStockDelta(ctx, tx, variant.ID, -line.Quantity, -line.Quantity); err != nil {
			return fmt.Errorf("failed to confirm reservation for variant %s: %w", variant.ID, err)
		}

		if err := s.logMovement(ctx, tx, variant.ID, entity.MovementOutbound, -line.Quantity, "order confirmed", &orderID); err != nil {
			return err
		}

		soldOut, err := s.productSoldOut(ctx, tx, variant.ProductID)
		if err != nil {
			return err
		}
		if soldOut {
			if err := s.products.SetStatus(ctx, tx, variant.ProductID, entity.ProductSoldOut); err != nil {
				return fmt.Errorf("failed to mark product %s sold out: %w", variant.ProductID, err)
			}
			slog.Info("Product sold out", "product_id", variant.ProductID)
		}
	}

	return nil
}

// Release undoes reservations without touching physical stock, logging a
// RELEASE movement per line. Used on payment failure and order cancellation.
func (s *InventoryService) Release(ctx context.Context, tx repository.Tx, lines []ReservationLine, reason string, referenceID *string) error {
	for _, line := range lines {
		variant, err := s.inventory.LockVariant(ctx, tx, line.VariantID)
		if err != nil {
			return err
		}

		if err := s.inventory.ApplyStockDelta(ctx, tx, variant.ID, 0, -line.Quantity); err != nil {
			return fmt.Errorf("failed to release stock for variant %s: %w", variant.ID, err)
		}

		if err := s.logMovement(ctx, tx, variant.ID, entity.MovementRelease, line.Quantity, reason, referenceID); err != nil {
			return err
		}
	}

	return nil
}

// Restore puts already-shipped stock back on the shelf, used when a paid
// order is cancelled (kind RELEASE) or a return completes (kind INBOUND).
func (s *InventoryService) Restore(ctx context.Context, tx repository.Tx, lines []ReservationLine, kind entity.MovementKind, reason string, referenceID *string) error {
	for _, line := range lines {
		variant, err := s.inventory.LockVariant(ctx, tx, line.VariantID)
		if err != nil {
			return err
		}

		if err := s.inventory.ApplyStockDelta(ctx, tx, variant.ID, line.Quantity, 0); err != nil {
			return fmt.Errorf("failed to restore stock for variant %s: %w", variant.ID, err)
		}

		if err := s.logMovement(ctx, tx, variant.ID, kind, line.Quantity, reason, referenceID); err != nil {
			return err
		}
	}

	return nil
}

// Adjust is the administrator-only correction path. It mutates physical
// stock directly inside its own transaction and reactivates a SOLD_OUT
// product whose availability rises above zero.
func (s *InventoryService) Adjust(ctx context.Context, variantID string, quantity int, kind entity.MovementKind, reason string) error {
	switch kind {
	case entity.MovementInbound, entity.MovementOutbound, entity.MovementAdjustment:
	default:
		return apperrors.Newf(apperrors.CodeInvalidInput, "unsupported adjustment kind %s", kind)
	}

	return s.txm.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		variant, err := s.inventory.LockVariant(ctx, tx, variantID)
		if err != nil {
			return err
		}

		if variant.Stock+quantity < variant.ReservedStock || variant.Stock+quantity < 0 {
			return apperrors.Newf(apperrors.CodeInsufficientStock,
				"adjustment of %d would leave variant %s with stock below its reservations",
				quantity, variant.ID)
		}

		if err := s.inventory.ApplyStockDelta(ctx, tx, variant.ID, quantity, 0); err != nil {
			return fmt.Errorf("failed to adjust stock for variant %s: %w", variant.ID, err)
		}

		if err := s.logMovement(ctx, tx, variant.ID, kind, quantity, reason, nil); err != nil {
			return err
		}

		if quantity > 0 {
			product, err := s.products.Find(ctx, tx, variant.ProductID)
			if err != nil {
				return err
			}
			if product.Status == entity.ProductSoldOut {
				soldOut, err := s.productSoldOut(ctx, tx, variant.ProductID)
				if err != nil {
					return err
				}
				if !soldOut {
					if err := s.products.SetStatus(ctx, tx, variant.ProductID, entity.ProductActive); err != nil {
						return fmt.Errorf("failed to reactivate product %s: %w", variant.ProductID, err)
					}
					slog.Info("Product reactivated", "product_id", variant.ProductID)
				}
			}
		}

		return nil
	})
}

func (s *InventoryService) logMovement(ctx context.Context, tx repository.Tx, variantID string, kind entity.MovementKind, quantity int, reason string, referenceID *string) error {
	movement := &entity.StockMovement{
		ID:          uuid.New().String(),
		VariantID:   variantID,
		Kind:        kind,
		Quantity:    quantity,
		Reason:      reason,
		ReferenceID: referenceID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.inventory.InsertMovement(ctx, tx, movement); err != nil {
		return fmt.Errorf("failed to log %s movement for variant %s: %w", kind, variantID, err)
	}
	return nil
}

// productSoldOut reports whether every variant of a product has no available
// stock left.
func (s *InventoryService) productSoldOut(ctx context.Context, tx repository.Tx, productID string) (bool, error) {
	variants, err := s.inventory.VariantsByProduct(ctx, tx, productID)
	if err != nil {
		return false, err
	}
	for _, v := range variants {
		if v.AvailableStock() > 0 {
			return false, nil
		}
	}
	return true, nil
}
