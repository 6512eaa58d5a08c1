package docstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/Zhima-Mochi/storefront/internal/domain/inventory"
	"github.com/Zhima-Mochi/storefront/internal/domain/order"
	"github.com/Zhima-Mochi/storefront/internal/domain/payment"
	"github.com/Zhima-Mochi/storefront/internal/infrastructure/docstore"
	"github.com/Zhima-Mochi/storefront/internal/infrastructure/docstore/memstore"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleOrder(t *testing.T, id string) *order.Order {
	t.Helper()
	o, err := order.New(order.Draft{
		ID:            id,
		UserID:        "u-1",
		Address:       "Calle 1",
		CustomerEmail: "ana@example.com",
		Items: []order.CartItem{
			{ProductID: "p1", Name: "Mug", UnitPrice: decimal.RequireFromString("12.50"), Quantity: 2},
		},
	})
	require.NoError(t, err)
	return o
}

func TestOrderRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := docstore.NewOrderRepository(memstore.New("orders"))
	o := sampleOrder(t, "o-1")
	require.NoError(t, o.MarkCompleted("pay-1"))

	require.NoError(t, repo.Put(ctx, o))
	got, err := repo.Get(ctx, "o-1")
	require.NoError(t, err)

	assert.Equal(t, o.ID, got.ID)
	assert.Equal(t, o.UserID, got.UserID)
	assert.Equal(t, o.Address, got.Address)
	assert.Equal(t, o.CustomerEmail, got.CustomerEmail)
	assert.Equal(t, o.Status, got.Status)
	assert.Equal(t, o.PaymentID, got.PaymentID)
	assert.True(t, o.CreatedAt.Equal(got.CreatedAt))
	assert.True(t, o.TotalPrice.Equal(got.TotalPrice))
	require.Len(t, got.Content, 1)
	assert.Equal(t, o.Content[0].ProductID, got.Content[0].ProductID)
	assert.Equal(t, o.Content[0].Quantity, got.Content[0].Quantity)
	assert.True(t, o.Content[0].UnitPrice.Equal(got.Content[0].UnitPrice))
	assert.True(t, o.Content[0].LineTotal.Equal(got.Content[0].LineTotal))
}

func TestOrderRepository_UpdateAndList(t *testing.T) {
	ctx := context.Background()
	repo := docstore.NewOrderRepository(memstore.New("orders"))

	older := sampleOrder(t, "o-old")
	older.CreatedAt = time.Now().Add(-time.Hour).UTC()
	require.NoError(t, repo.Put(ctx, older))
	require.NoError(t, repo.Put(ctx, sampleOrder(t, "o-new")))

	addr := "Otra 9"
	updated, err := repo.Update(ctx, "o-old", order.Patch{Address: &addr})
	require.NoError(t, err)
	assert.Equal(t, "Otra 9", updated.Address)
	assert.Equal(t, "o-old", updated.ID)

	_, err = repo.Update(ctx, "nope", order.Patch{Address: &addr})
	assert.ErrorIs(t, err, order.ErrNotFound)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "o-new", list[0].ID)
}

func TestPaymentRepository(t *testing.T) {
	ctx := context.Background()
	repo := docstore.NewPaymentRepository(memstore.New("payments"))

	p := &payment.Payment{ID: "pay-1", AmountInCents: 2500, Currency: "COP", Status: payment.StatusApproved, Method: payment.MethodCard}
	require.NoError(t, repo.Put(ctx, p))

	got, err := repo.Get(ctx, "pay-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2500), got.AmountInCents)
	assert.Equal(t, payment.StatusApproved, got.Status)

	_, err = repo.Get(ctx, "pay-2")
	assert.ErrorIs(t, err, payment.ErrNotFound)
}

func TestProductRepository_AddStock(t *testing.T) {
	ctx := context.Background()
	repo := docstore.NewProductRepository(memstore.New("products"))
	require.NoError(t, repo.Put(ctx, &inventory.Product{ID: "p1", Name: "Mug", Price: decimal.NewFromInt(10), StockAmount: 2}))

	p, err := repo.AddStock(ctx, "p1", 5, inventory.FloorAllow)
	require.NoError(t, err)
	assert.Equal(t, int64(7), p.StockAmount)
	assert.Equal(t, "Mug", p.Name)

	_, err = repo.AddStock(ctx, "p1", -10, inventory.FloorReject)
	assert.ErrorIs(t, err, inventory.ErrInsufficientStock)

	p, err = repo.AddStock(ctx, "p1", -10, inventory.FloorClamp)
	require.NoError(t, err)
	assert.Equal(t, int64(0), p.StockAmount)

	_, err = repo.AddStock(ctx, "ghost", 1, inventory.FloorAllow)
	assert.ErrorIs(t, err, inventory.ErrNotFound)
}

func TestOrderRepository_CreateRejectsExistingID(t *testing.T) {
	ctx := context.Background()
	repo := docstore.NewOrderRepository(memstore.New("orders"))
	first := sampleOrder(t, "o-1")
	require.NoError(t, repo.Create(ctx, first))

	err := repo.Create(ctx, sampleOrder(t, "o-1"))
	assert.ErrorIs(t, err, order.ErrConflict)

	got, err := repo.Get(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, first.CreatedAt.Unix(), got.CreatedAt.Unix())
}

func TestProductRepository_AddStockConflictIsTransient(t *testing.T) {
	repo := docstore.NewProductRepository(conflictTable{memstore.New("products")})
	_, err := repo.AddStock(context.Background(), "p1", -1, inventory.FloorReject)
	assert.ErrorIs(t, err, inventory.ErrTransient)
	assert.ErrorIs(t, err, docstore.ErrConflict)
}

type conflictTable struct{ *memstore.Table }

func (conflictTable) Increment(context.Context, string, string, int64, docstore.Bound) (docstore.Document, error) {
	return nil, docstore.ErrConflict
}
