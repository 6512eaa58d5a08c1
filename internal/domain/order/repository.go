package order

import "context"

type Repository interface {
	Get(ctx context.Context, id string) (*Order, error)
	Put(ctx context.Context, order *Order) error
	// Create stores a new order and fails with ErrConflict when the id is taken.
	Create(ctx context.Context, order *Order) error
	// Update applies patch to the stored order. An empty patch returns the current record without writing.
	Update(ctx context.Context, id string, patch Patch) (*Order, error)
	List(ctx context.Context) ([]*Order, error)
}
