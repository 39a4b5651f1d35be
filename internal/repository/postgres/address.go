package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopkit/order-fulfillment/internal/apperrors"
	"github.com/shopkit/order-fulfillment/internal/entity"
	"github.com/shopkit/order-fulfillment/internal/repository"
)

type addressRepository struct{}

// NewAddressRepository creates an AddressRepository backed by Postgres.
func NewAddressRepository() repository.AddressRepository {
	return &addressRepository{}
}

func (r *addressRepository) FindForUser(ctx context.Context, tx repository.Tx, addressID, userID string) (*entity.Address, error) {
	t, err := sqlTx(tx)
	if err != nil {
		return nil, err
	}

	var a entity.Address
	err = t.QueryRowContext(ctx,
		`SELECT id, user_id, name, phone, zip_code, address1, address2
		 FROM addresses WHERE id = $1 AND user_id = $2`,
		addressID, userID,
	).Scan(&a.ID, &a.UserID, &a.Name, &a.Phone, &a.ZipCode, &a.Address1, &a.Address2)
	if err == sql.ErrNoRows {
		return nil, apperrors.Newf(apperrors.CodeAddressNotFound, "address %s not found", addressID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find address %s: %w", addressID, err)
	}
	return &a, nil
}
