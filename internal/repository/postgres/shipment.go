package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopkit/order-fulfillment/internal/apperrors"
	"github.com/shopkit/order-fulfillment/internal/entity"
	"github.com/shopkit/order-fulfillment/internal/repository"
)

type shipmentRepository struct{}

// NewShipmentRepository creates a ShipmentRepository backed by Postgres.
func NewShipmentRepository() repository.ShipmentRepository {
	return &shipmentRepository{}
}

func (r *shipmentRepository) Create(ctx context.Context, tx repository.Tx, s *entity.Shipment) error {
	t, err := sqlTx(tx)
	if err != nil {
		return err
	}

	_, err = t.ExecContext(ctx,
		`INSERT INTO shipments (id, order_id, status, carrier, tracking_number, shipped_at, delivered_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		s.ID, s.OrderID, s.Status, s.Carrier, s.TrackingNumber, s.ShippedAt, s.DeliveredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert shipment: %w", err)
	}
	return nil
}

func (r *shipmentRepository) FindByOrder(ctx context.Context, tx repository.Tx, orderID string) (*entity.Shipment, error) {
	t, err := sqlTx(tx)
	if err != nil {
		return nil, err
	}

	var s entity.Shipment
	err = t.QueryRowContext(ctx,
		`SELECT id, order_id, status, carrier, tracking_number, shipped_at, delivered_at
		 FROM shipments WHERE order_id = $1`,
		orderID,
	).Scan(&s.ID, &s.OrderID, &s.Status, &s.Carrier, &s.TrackingNumber, &s.ShippedAt, &s.DeliveredAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.Newf(apperrors.CodeOrderNotFound, "shipment for order %s not found", orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find shipment for order %s: %w", orderID, err)
	}
	return &s, nil
}

func (r *shipmentRepository) Update(ctx context.Context, tx repository.Tx, s *entity.Shipment) error {
	t, err := sqlTx(tx)
	if err != nil {
		return err
	}

	_, err = t.ExecContext(ctx,
		`UPDATE shipments SET status = $1, carrier = $2, tracking_number = $3, shipped_at = $4, delivered_at = $5
		 WHERE id = $6`,
		s.Status, s.Carrier, s.TrackingNumber, s.ShippedAt, s.DeliveredAt, s.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update shipment: %w", err)
	}
	return nil
}
