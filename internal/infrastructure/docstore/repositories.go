package docstore

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/Zhima-Mochi/storefront/internal/domain/inventory"
	"github.com/Zhima-Mochi/storefront/internal/domain/order"
	"github.com/Zhima-Mochi/storefront/internal/domain/payment"
	"github.com/Zhima-Mochi/storefront/internal/domain/user"
)

// StockField is the product document field holding the stock counter.
const StockField = "stock_amount"

type OrderRepository struct{ table Table }

func NewOrderRepository(t Table) *OrderRepository { return &OrderRepository{table: t} }

func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	doc, err := r.table.Get(ctx, id)
	if err != nil {
		return nil, mapErr(err, order.ErrNotFound)
	}
	var o order.Order
	if err := Decode(doc, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepository) Put(ctx context.Context, o *order.Order) error {
	doc, err := Encode(o)
	if err != nil {
		return err
	}
	return r.table.Put(ctx, o.ID, doc)
}

func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	doc, err := Encode(o)
	if err != nil {
		return err
	}
	err = r.table.Insert(ctx, o.ID, doc)
	if errors.Is(err, ErrConflict) {
		return fmt.Errorf("%w: %s", order.ErrConflict, o.ID)
	}
	return err
}

func (r *OrderRepository) Update(ctx context.Context, id string, patch order.Patch) (*order.Order, error) {
	doc, err := r.table.Update(ctx, id, Document(patch.Fields()))
	if err != nil {
		return nil, mapErr(err, order.ErrNotFound)
	}
	var o order.Order
	if err := Decode(doc, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// List returns orders newest first.
func (r *OrderRepository) List(ctx context.Context) ([]*order.Order, error) {
	docs, err := r.table.Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*order.Order, 0, len(docs))
	for _, doc := range docs {
		var o order.Order
		if err := Decode(doc, &o); err != nil {
			return nil, err
		}
		out = append(out, &o)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type PaymentRepository struct{ table Table }

func NewPaymentRepository(t Table) *PaymentRepository { return &PaymentRepository{table: t} }

func (r *PaymentRepository) Get(ctx context.Context, id string) (*payment.Payment, error) {
	doc, err := r.table.Get(ctx, id)
	if err != nil {
		return nil, mapErr(err, payment.ErrNotFound)
	}
	var p payment.Payment
	if err := Decode(doc, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) Put(ctx context.Context, p *payment.Payment) error {
	doc, err := Encode(p)
	if err != nil {
		return err
	}
	return r.table.Put(ctx, p.ID, doc)
}

func (r *PaymentRepository) List(ctx context.Context) ([]*payment.Payment, error) {
	docs, err := r.table.Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*payment.Payment, 0, len(docs))
	for _, doc := range docs {
		var p payment.Payment
		if err := Decode(doc, &p); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type ProductRepository struct{ table Table }

func NewProductRepository(t Table) *ProductRepository { return &ProductRepository{table: t} }

func (r *ProductRepository) Get(ctx context.Context, id string) (*inventory.Product, error) {
	doc, err := r.table.Get(ctx, id)
	if err != nil {
		return nil, mapErr(err, inventory.ErrNotFound)
	}
	return decodeProduct(doc)
}

func (r *ProductRepository) List(ctx context.Context) ([]*inventory.Product, error) {
	docs, err := r.table.Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*inventory.Product, 0, len(docs))
	for _, doc := range docs {
		p, err := decodeProduct(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *ProductRepository) Put(ctx context.Context, p *inventory.Product) error {
	doc, err := Encode(p)
	if err != nil {
		return err
	}
	return r.table.Put(ctx, p.ID, doc)
}

func (r *ProductRepository) AddStock(ctx context.Context, id string, delta int64, policy inventory.FloorPolicy) (*inventory.Product, error) {
	doc, err := r.table.Increment(ctx, id, StockField, delta, BoundFor(policy))
	switch {
	case errors.Is(err, ErrBelowFloor):
		return nil, fmt.Errorf("%w: %s", inventory.ErrInsufficientStock, id)
	case errors.Is(err, ErrConflict):
		return nil, fmt.Errorf("%w: %w", inventory.ErrTransient, err)
	case err != nil:
		return nil, mapErr(err, inventory.ErrNotFound)
	}
	return decodeProduct(doc)
}

// BoundFor maps a stock floor policy onto the store's increment bound.
func BoundFor(p inventory.FloorPolicy) Bound {
	switch p {
	case inventory.FloorClamp:
		return ClampAtZero
	case inventory.FloorReject:
		return RejectBelowZero
	default:
		return Unbounded
	}
}

func decodeProduct(doc Document) (*inventory.Product, error) {
	var p inventory.Product
	if err := Decode(doc, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

type UserRepository struct{ table Table }

func NewUserRepository(t Table) *UserRepository { return &UserRepository{table: t} }

func (r *UserRepository) Get(ctx context.Context, id string) (*user.User, error) {
	doc, err := r.table.Get(ctx, id)
	if err != nil {
		return nil, mapErr(err, user.ErrNotFound)
	}
	var u user.User
	if err := Decode(doc, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) List(ctx context.Context) ([]*user.User, error) {
	docs, err := r.table.Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*user.User, 0, len(docs))
	for _, doc := range docs {
		var u user.User
		if err := Decode(doc, &u); err != nil {
			return nil, err
		}
		out = append(out, &u)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *UserRepository) Put(ctx context.Context, u *user.User) error {
	doc, err := Encode(u)
	if err != nil {
		return err
	}
	return r.table.Put(ctx, u.ID, doc)
}

func mapErr(err, notFound error) error {
	if errors.Is(err, ErrNotFound) {
		return notFound
	}
	return err
}
