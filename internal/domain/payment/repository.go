package payment

import "context"

type Repository interface {
	Get(ctx context.Context, id string) (*Payment, error)
	Put(ctx context.Context, p *Payment) error
	List(ctx context.Context) ([]*Payment, error)
}
