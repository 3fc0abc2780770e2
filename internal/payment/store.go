package payment

import (
	"context"
	"errors"
)

// Store errors.
var (
	ErrNotFound = errors.New("payment detail not found")
	ErrConflict = errors.New("payment detail already exists")
)

// Store persists payment details. Implementations must be safe for
// concurrent use.
type Store interface {
	// List returns all records ordered by id.
	List(ctx context.Context) ([]PaymentDetail, error)

	// Get returns ErrNotFound when id is absent.
	Get(ctx context.Context, id int) (PaymentDetail, error)

	// Create stores d. A zero id is assigned by the store and written back.
	Create(ctx context.Context, d *PaymentDetail) error

	// Update replaces the record with d's id; ErrNotFound when absent.
	Update(ctx context.Context, d PaymentDetail) error

	// Delete removes id; ErrNotFound when absent.
	Delete(ctx context.Context, id int) error
}
