package memstore

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/Zhima-Mochi/storefront/internal/infrastructure/docstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_PutGet(t *testing.T) {
	ctx := context.Background()
	tbl := New("orders")

	require.NoError(t, tbl.Put(ctx, "o-1", docstore.Document{"id": "o-1", "address": "A"}))

	doc, err := tbl.Get(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, "A", doc["address"])

	doc["address"] = "mutated"
	again, err := tbl.Get(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, "A", again["address"])

	_, err = tbl.Get(ctx, "missing")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestTable_Update(t *testing.T) {
	ctx := context.Background()
	tbl := New("orders")
	require.NoError(t, tbl.Put(ctx, "o-1", docstore.Document{"id": "o-1", "address": "A", "order_status": "PENDING"}))

	doc, err := tbl.Update(ctx, "o-1", docstore.Document{"address": "B", "id": "hijack"})
	require.NoError(t, err)
	assert.Equal(t, "B", doc["address"])
	assert.Equal(t, "o-1", doc["id"])
	assert.Equal(t, "PENDING", doc["order_status"])

	unchanged, err := tbl.Update(ctx, "o-1", docstore.Document{})
	require.NoError(t, err)
	assert.Equal(t, doc, unchanged)

	_, err = tbl.Update(ctx, "missing", docstore.Document{"address": "X"})
	assert.ErrorIs(t, err, docstore.ErrNotFound)
	_, err = tbl.Get(ctx, "missing")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestTable_ScanSorted(t *testing.T) {
	ctx := context.Background()
	tbl := New("products")
	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, tbl.Put(ctx, id, docstore.Document{"id": id}))
	}

	docs, err := tbl.Scan(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "a", docs[0]["id"])
	assert.Equal(t, "c", docs[2]["id"])
}

func TestTable_IncrementBounds(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name  string
		bound docstore.Bound
		want  int64
		err   error
	}{
		{"allow goes negative", docstore.Unbounded, -3, nil},
		{"clamp floors at zero", docstore.ClampAtZero, 0, nil},
		{"reject leaves counter", docstore.RejectBelowZero, 2, docstore.ErrBelowFloor},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tbl := New("products")
			require.NoError(t, tbl.Put(ctx, "p1", docstore.Document{"id": "p1", "stock_amount": 2}))

			_, err := tbl.Increment(ctx, "p1", "stock_amount", -5, tc.bound)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
			} else {
				require.NoError(t, err)
			}

			doc, err := tbl.Get(ctx, "p1")
			require.NoError(t, err)
			got, err := docstore.IntField(doc, "stock_amount")
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestTable_IncrementConcurrent(t *testing.T) {
	ctx := context.Background()
	tbl := New("products")
	require.NoError(t, tbl.Put(ctx, "p1", docstore.Document{"id": "p1", "stock_amount": 0}))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = tbl.Increment(ctx, "p1", "stock_amount", 1, docstore.Unbounded)
		}()
	}
	wg.Wait()

	doc, err := tbl.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, json.Number("50"), doc["stock_amount"])
}

func TestTable_IncrementRaisesNegativeCounter(t *testing.T) {
	ctx := context.Background()
	for _, b := range []docstore.Bound{docstore.Unbounded, docstore.ClampAtZero, docstore.RejectBelowZero} {
		t.Run(b.String(), func(t *testing.T) {
			tbl := New("products")
			require.NoError(t, tbl.Put(ctx, "p1", docstore.Document{"id": "p1", "stock_amount": -5}))

			doc, err := tbl.Increment(ctx, "p1", "stock_amount", 2, b)
			require.NoError(t, err)
			got, err := docstore.IntField(doc, "stock_amount")
			require.NoError(t, err)
			assert.Equal(t, int64(-3), got)
		})
	}
}

func TestTable_Insert(t *testing.T) {
	ctx := context.Background()
	tbl := New("orders")
	require.NoError(t, tbl.Insert(ctx, "o1", docstore.Document{"id": "o1", "status": "COMPLETED"}))

	err := tbl.Insert(ctx, "o1", docstore.Document{"id": "o1", "status": "FAILED"})
	assert.ErrorIs(t, err, docstore.ErrConflict)
	assert.ErrorIs(t, tbl.Insert(ctx, "", docstore.Document{}), docstore.ErrMissingID)

	doc, err := tbl.Get(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", doc["status"])
}
