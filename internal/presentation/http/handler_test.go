package httppresentation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Zhima-Mochi/storefront/internal/application"
	appOrder "github.com/Zhima-Mochi/storefront/internal/application/order"
	appPayment "github.com/Zhima-Mochi/storefront/internal/application/payment"
	domainInventory "github.com/Zhima-Mochi/storefront/internal/domain/inventory"
	domainOrder "github.com/Zhima-Mochi/storefront/internal/domain/order"
	domainPayment "github.com/Zhima-Mochi/storefront/internal/domain/payment"
	domainUser "github.com/Zhima-Mochi/storefront/internal/domain/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOrders struct {
	created appOrder.CreateOrderInput
	result  *appOrder.CreateOrderResult
	err     error
	patched domainOrder.Patch
}

func (f *fakeOrders) Create(_ context.Context, in appOrder.CreateOrderInput) (*appOrder.CreateOrderResult, error) {
	f.created = in
	return f.result, f.err
}

func (f *fakeOrders) Get(_ context.Context, id string) (*domainOrder.Order, error) {
	if id != "ord-1" {
		return nil, appOrder.ErrNotFound
	}
	return &domainOrder.Order{ID: id, Status: domainOrder.StatusCompleted}, nil
}

func (f *fakeOrders) List(context.Context) ([]*domainOrder.Order, error) {
	return []*domainOrder.Order{{ID: "ord-1"}}, nil
}

func (f *fakeOrders) Update(_ context.Context, id string, patch domainOrder.Patch) (*domainOrder.Order, error) {
	f.patched = patch
	o := &domainOrder.Order{ID: id}
	if patch.Address != nil {
		o.Address = *patch.Address
	}
	return o, nil
}

type fakePayments struct {
	err error
}

func (f *fakePayments) Create(_ context.Context, in appPayment.SubmitPaymentInput) (*domainPayment.Payment, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domainPayment.Payment{ID: "pay-1", OrderID: in.OrderID, Status: domainPayment.StatusFailed, FailureReason: "transaction: boom"}, nil
}

func (f *fakePayments) Get(context.Context, string) (*domainPayment.Payment, error) {
	return nil, appPayment.ErrNotFound
}

func (f *fakePayments) List(context.Context) ([]*domainPayment.Payment, error) { return nil, nil }

func (f *fakePayments) AcceptanceTokens(context.Context) (domainPayment.AcceptanceTokens, error) {
	return domainPayment.AcceptanceTokens{}, &domainPayment.GatewayError{Op: "merchant", StatusCode: 503}
}

type fakeStock struct {
	res *domainInventory.AdjustResult
	err error
}

func (f fakeStock) Execute(context.Context, []domainInventory.Adjustment) (*domainInventory.AdjustResult, error) {
	return f.res, f.err
}

type fakeUsers struct{}

func (fakeUsers) Get(_ context.Context, id string) (*domainUser.User, error) {
	return &domainUser.User{ID: id, Name: "Ana"}, nil
}

func (fakeUsers) List(context.Context) ([]*domainUser.User, error) { return nil, nil }

func serve(t *testing.T, svc Services, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	NewHandler(svc, nil, nil).Router().ServeHTTP(rec, req)
	return rec
}

func TestCreateOrder_MapsRequest(t *testing.T) {
	orders := &fakeOrders{result: &appOrder.CreateOrderResult{
		Order: &domainOrder.Order{ID: "ord-1", Status: domainOrder.StatusCompleted},
	}}
	body := `{"address":"Calle 1","content":[{"product_id":"p1","name":"Mug","unit_price":100,"quantity":3}],
		"customer_email":"a@example.com","tokenized_credit_card":"tok","acceptance_token":"acc",
		"acceptance_auth_token":"auth","total_order_price":"300","user_id":"u-1"}`

	rec := serve(t, Services{Orders: orders}, http.MethodPost, "/orders", body)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(headerRequestID))

	assert.Equal(t, "u-1", orders.created.UserID)
	assert.Equal(t, "tok", orders.created.CardToken)
	assert.Equal(t, "auth", orders.created.PersonalAuthToken)
	require.Len(t, orders.created.Items, 1)
	assert.Equal(t, int64(3), orders.created.Items[0].Quantity)
	require.NotNil(t, orders.created.Total)
	assert.Equal(t, "300", orders.created.Total.String())

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "COMPLETED", got["order_status"])
	_, hasWarnings := got["stock_sync_warnings"]
	assert.False(t, hasWarnings)
}

func TestCreateOrder_IncludesStockWarnings(t *testing.T) {
	orders := &fakeOrders{result: &appOrder.CreateOrderResult{
		Order:             &domainOrder.Order{ID: "ord-1", Status: domainOrder.StatusCompleted},
		StockSyncWarnings: []appOrder.StockSyncWarning{{ProductID: "p1", Quantity: 3, Reason: "not found"}},
	}}
	rec := serve(t, Services{Orders: orders}, http.MethodPost, "/orders", `{"user_id":"u-1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"stock_sync_warnings":[{"product_id":"p1","quantity":3,"reason":"not found"}]`)
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", application.NewValidation("address is required"), http.StatusBadRequest},
		{"gateway", fmt.Errorf("payment: create source: %w", &domainPayment.GatewayError{Op: "payment_sources", StatusCode: 422}), http.StatusBadGateway},
		{"store", fmt.Errorf("%w: timeout", appOrder.ErrRepository), http.StatusInternalServerError},
		{"duplicate id", fmt.Errorf("%w: ord-X", appOrder.ErrConflict), http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(t, Services{Orders: &fakeOrders{err: tc.err}}, http.MethodPost, "/orders", `{}`)
			assert.Equal(t, tc.want, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestCreateOrder_RejectsUnknownFields(t *testing.T) {
	orders := &fakeOrders{}
	rec := serve(t, Services{Orders: orders}, http.MethodPost, "/orders", `{"coupon":"FREE"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, orders.created.UserID)
}

func TestOrderRoutes(t *testing.T) {
	orders := &fakeOrders{}
	svc := Services{Orders: orders}

	assert.Equal(t, http.StatusOK, serve(t, svc, http.MethodGet, "/orders/ord-1", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(t, svc, http.MethodGet, "/orders/missing", "").Code)
	assert.Equal(t, http.StatusOK, serve(t, svc, http.MethodGet, "/orders", "").Code)

	rec := serve(t, svc, http.MethodPatch, "/orders/ord-1", `{"address":"New 1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, orders.patched.Address)
	assert.Equal(t, "New 1", *orders.patched.Address)
	assert.Equal(t, http.StatusMethodNotAllowed, serve(t, svc, http.MethodDelete, "/orders/ord-1", "").Code)
}

func TestPaymentRoutes(t *testing.T) {
	svc := Services{Payments: &fakePayments{}}

	rec := serve(t, svc, http.MethodPost, "/payments", `{"order_id":"ord-1","amount":"12.50"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"payment_status":"FAILED"`)

	assert.Equal(t, http.StatusBadGateway, serve(t, svc, http.MethodGet, "/payments/acceptance-tokens", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(t, svc, http.MethodGet, "/payments/pay-9", "").Code)
}

func TestAdjustStock(t *testing.T) {
	updated := []*domainInventory.Product{{ID: "p1", StockAmount: 5}}

	rec := serve(t, Services{Stock: fakeStock{res: &domainInventory.AdjustResult{Updated: updated}}},
		http.MethodPatch, "/products", `[{"id":"p1","stock_variation":5,"variation":"INCREMENT"}]`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"stock_amount":5`)

	partial := fakeStock{
		res: &domainInventory.AdjustResult{
			Updated:  updated,
			Failures: []domainInventory.ItemFailure{{Adjustment: domainInventory.Adjustment{ProductID: "ghost"}, Reason: "not found"}},
		},
		err: fmt.Errorf("%w: 1 of 2 items failed", domainInventory.ErrPartialAdjustment),
	}
	rec = serve(t, Services{Stock: partial}, http.MethodPatch, "/products", `[]`)
	require.Equal(t, http.StatusMultiStatus, rec.Code)
	var body adjustStockPartialResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Updated, 1)
	require.Len(t, body.Failures, 1)
	assert.Equal(t, "ghost", body.Failures[0].ProductID)
}

func TestHealthAndUnknownRoute(t *testing.T) {
	rec := serve(t, Services{Users: fakeUsers{}}, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	assert.Equal(t, http.StatusOK, serve(t, Services{Users: fakeUsers{}}, http.MethodGet, "/users/u-1", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(t, Services{}, http.MethodGet, "/users/u-1", "").Code)
}

func TestRequestIDIsEchoed(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(headerRequestID, "req-42")
	rec := httptest.NewRecorder()
	NewHandler(Services{}, nil, nil).Router().ServeHTTP(rec, req)
	assert.Equal(t, "req-42", rec.Header().Get(headerRequestID))
}
