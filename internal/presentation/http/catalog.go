package httppresentation

import (
	"errors"
	"net/http"

	domainInventory "github.com/Zhima-Mochi/storefront/internal/domain/inventory"
	"github.com/gorilla/mux"
)

type adjustStockPartialResponse struct {
	Updated  []*domainInventory.Product    `json:"updated"`
	Failures []domainInventory.ItemFailure `json:"failures"`
}

func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Products.List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Products.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleAdjustStock answers 200 with the updated products, or 207 with the
// applied and failed items when only part of the batch went through.
func (h *Handler) handleAdjustStock(w http.ResponseWriter, r *http.Request) {
	var items []domainInventory.Adjustment
	if err := decodeJSON(w, r, &items); err != nil {
		writeDomainError(w, err)
		return
	}

	res, err := h.svc.Stock.Execute(r.Context(), items)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res.Updated)
	case errors.Is(err, domainInventory.ErrPartialAdjustment) && res != nil:
		writeJSON(w, http.StatusMultiStatus, adjustStockPartialResponse{Updated: res.Updated, Failures: res.Failures})
	default:
		writeDomainError(w, err)
	}
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Users.List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.Users.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}
