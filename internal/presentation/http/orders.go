package httppresentation

import (
	"net/http"

	appOrder "github.com/Zhima-Mochi/storefront/internal/application/order"
	domainOrder "github.com/Zhima-Mochi/storefront/internal/domain/order"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

type cartItemRequest struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int64           `json:"quantity"`
}

type createOrderRequest struct {
	ID                  string            `json:"id"`
	UserID              string            `json:"user_id"`
	Address             string            `json:"address"`
	Content             []cartItemRequest `json:"content"`
	CustomerEmail       string            `json:"customer_email"`
	TokenizedCreditCard string            `json:"tokenized_credit_card"`
	AcceptanceToken     string            `json:"acceptance_token"`
	AcceptanceAuthToken string            `json:"acceptance_auth_token"`
	TotalOrderPrice     *decimal.Decimal  `json:"total_order_price"`
}

type orderResponse struct {
	*domainOrder.Order
	StockSyncWarnings []appOrder.StockSyncWarning `json:"stock_sync_warnings,omitempty"`
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	items := make([]domainOrder.CartItem, 0, len(req.Content))
	for _, it := range req.Content {
		items = append(items, domainOrder.CartItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
		})
	}

	result, err := h.svc.Orders.Create(r.Context(), appOrder.CreateOrderInput{
		ID:                req.ID,
		UserID:            req.UserID,
		Address:           req.Address,
		CustomerEmail:     req.CustomerEmail,
		Items:             items,
		Total:             req.TotalOrderPrice,
		CardToken:         req.TokenizedCreditCard,
		AcceptanceToken:   req.AcceptanceToken,
		PersonalAuthToken: req.AcceptanceAuthToken,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, orderResponse{
		Order:             result.Order,
		StockSyncWarnings: result.StockSyncWarnings,
	})
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Orders.List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.svc.Orders.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) handleUpdateOrder(w http.ResponseWriter, r *http.Request) {
	var patch domainOrder.Patch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeDomainError(w, err)
		return
	}
	o, err := h.svc.Orders.Update(r.Context(), mux.Vars(r)["id"], patch)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}
