package pgstore

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Zhima-Mochi/storefront/internal/infrastructure/docstore"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTable(t *testing.T, name string) (*Table, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	tbl, err := New(sqlx.NewDb(db, "postgres"), name)
	require.NoError(t, err)
	return tbl, mock
}

func TestNew_RejectsBadName(t *testing.T) {
	_, err := New(nil, "orders; DROP TABLE users")
	assert.Error(t, err)
}

func TestTable_Get(t *testing.T) {
	tbl, mock := newTable(t, "orders")
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT doc FROM "orders" WHERE id = $1`)).
		WithArgs("o-1").
		WillReturnRows(sqlmock.NewRows([]string{"doc"}).AddRow([]byte(`{"id":"o-1","address":"A"}`)))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT doc FROM "orders" WHERE id = $1`)).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"doc"}))

	doc, err := tbl.Get(context.Background(), "o-1")
	require.NoError(t, err)
	assert.Equal(t, "A", doc["address"])

	_, err = tbl.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTable_Put(t *testing.T) {
	tbl, mock := newTable(t, "payments")
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "payments" (id, doc) VALUES ($1, $2::jsonb)`)).
		WithArgs("pay-1", `{"id":"pay-1"}`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, tbl.Put(context.Background(), "pay-1", docstore.Document{"id": "pay-1"}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTable_Update(t *testing.T) {
	tbl, mock := newTable(t, "orders")
	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE "orders" SET doc = doc || $2::jsonb WHERE id = $1 RETURNING doc`)).
		WithArgs("o-1", `{"address":"B"}`).
		WillReturnRows(sqlmock.NewRows([]string{"doc"}).AddRow([]byte(`{"id":"o-1","address":"B"}`)))
	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE "orders" SET doc = doc || $2::jsonb WHERE id = $1 RETURNING doc`)).
		WithArgs("missing", `{"address":"X"}`).
		WillReturnRows(sqlmock.NewRows([]string{"doc"}))

	doc, err := tbl.Update(context.Background(), "o-1", docstore.Document{"address": "B", "id": "ignored"})
	require.NoError(t, err)
	assert.Equal(t, "B", doc["address"])

	_, err = tbl.Update(context.Background(), "missing", docstore.Document{"address": "X"})
	assert.ErrorIs(t, err, docstore.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTable_UpdateEmptyPatchReadsOnly(t *testing.T) {
	tbl, mock := newTable(t, "orders")
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT doc FROM "orders" WHERE id = $1`)).
		WithArgs("o-1").
		WillReturnRows(sqlmock.NewRows([]string{"doc"}).AddRow([]byte(`{"id":"o-1"}`)))

	doc, err := tbl.Update(context.Background(), "o-1", docstore.Document{})
	require.NoError(t, err)
	assert.Equal(t, "o-1", doc["id"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTable_Scan(t *testing.T) {
	tbl, mock := newTable(t, "users")
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT doc FROM "users" ORDER BY id`)).
		WillReturnRows(sqlmock.NewRows([]string{"doc"}).
			AddRow([]byte(`{"id":"u-1"}`)).
			AddRow([]byte(`{"id":"u-2"}`)))

	docs, err := tbl.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "u-2", docs[1]["id"])
}

func TestTable_Increment(t *testing.T) {
	tbl, mock := newTable(t, "products")
	mock.ExpectQuery(regexp.QuoteMeta(incrementQuery(`"products"`, docstore.Unbounded, 5))).
		WithArgs("p1", "stock_amount", int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"doc"}).AddRow([]byte(`{"id":"p1","stock_amount":15}`)))

	doc, err := tbl.Increment(context.Background(), "p1", "stock_amount", 5, docstore.Unbounded)
	require.NoError(t, err)
	n, err := docstore.IntField(doc, "stock_amount")
	require.NoError(t, err)
	assert.Equal(t, int64(15), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTable_IncrementRejectDistinguishesMissing(t *testing.T) {
	tbl, mock := newTable(t, "products")
	q := regexp.QuoteMeta(incrementQuery(`"products"`, docstore.RejectBelowZero, -1))
	exists := regexp.QuoteMeta(`SELECT EXISTS (SELECT 1 FROM "products" WHERE id = $1)`)

	mock.ExpectQuery(q).WithArgs("p1", "stock_amount", int64(-9)).
		WillReturnRows(sqlmock.NewRows([]string{"doc"}))
	mock.ExpectQuery(exists).WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	mock.ExpectQuery(q).WithArgs("p2", "stock_amount", int64(-1)).
		WillReturnRows(sqlmock.NewRows([]string{"doc"}))
	mock.ExpectQuery(exists).WithArgs("p2").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	_, err := tbl.Increment(context.Background(), "p1", "stock_amount", -9, docstore.RejectBelowZero)
	assert.ErrorIs(t, err, docstore.ErrBelowFloor)

	_, err = tbl.Increment(context.Background(), "p2", "stock_amount", -1, docstore.RejectBelowZero)
	assert.ErrorIs(t, err, docstore.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIncrementQuery_Clamp(t *testing.T) {
	q := incrementQuery(`"products"`, docstore.ClampAtZero, -3)
	assert.Contains(t, q, "GREATEST(LEAST(")
	assert.NotContains(t, q, ">= 0")
}

func TestIncrementQuery_AdditionsIgnoreBound(t *testing.T) {
	plain := incrementQuery(`"products"`, docstore.Unbounded, 2)
	for _, b := range []docstore.Bound{docstore.ClampAtZero, docstore.RejectBelowZero} {
		q := incrementQuery(`"products"`, b, 2)
		assert.Equal(t, plain, q, b.String())
		assert.NotContains(t, q, "GREATEST")
		assert.NotContains(t, q, ">= 0")
	}
}

func TestTable_IncrementRaisesNegativeCounter(t *testing.T) {
	tbl, mock := newTable(t, "products")
	mock.ExpectQuery(regexp.QuoteMeta(incrementQuery(`"products"`, docstore.RejectBelowZero, 2))).
		WithArgs("p1", "stock_amount", int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"doc"}).AddRow([]byte(`{"id":"p1","stock_amount":-3}`)))

	doc, err := tbl.Increment(context.Background(), "p1", "stock_amount", 2, docstore.RejectBelowZero)
	require.NoError(t, err)
	n, err := docstore.IntField(doc, "stock_amount")
	require.NoError(t, err)
	assert.Equal(t, int64(-3), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTable_Insert(t *testing.T) {
	tbl, mock := newTable(t, "orders")
	q := regexp.QuoteMeta(`INSERT INTO "orders" (id, doc) VALUES ($1, $2::jsonb) ON CONFLICT (id) DO NOTHING`)
	mock.ExpectExec(q).WithArgs("o1", `{"id":"o1"}`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("o1", `{"id":"o1"}`).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, tbl.Insert(context.Background(), "o1", docstore.Document{"id": "o1"}))
	err := tbl.Insert(context.Background(), "o1", docstore.Document{"id": "o1"})
	assert.ErrorIs(t, err, docstore.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}
