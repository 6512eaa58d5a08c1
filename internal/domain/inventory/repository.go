package inventory

import (
	"context"
)

type Repository interface {
	Get(ctx context.Context, id string) (*Product, error)
	List(ctx context.Context) ([]*Product, error)
	Put(ctx context.Context, p *Product) error
	// AddStock atomically adds delta to the stock counter under policy and
	// returns the product after the update.
	AddStock(ctx context.Context, id string, delta int64, policy FloorPolicy) (*Product, error)
}
