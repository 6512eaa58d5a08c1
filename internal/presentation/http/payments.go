package httppresentation

import (
	"net/http"

	appPayment "github.com/Zhima-Mochi/storefront/internal/application/payment"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

type createPaymentRequest struct {
	ID                  string          `json:"id"`
	OrderID             string          `json:"order_id"`
	TokenizedCreditCard string          `json:"tokenized_credit_card"`
	AcceptanceToken     string          `json:"acceptance_token"`
	AcceptanceAuthToken string          `json:"acceptance_auth_token"`
	CustomerEmail       string          `json:"customer_email"`
	Amount              decimal.Decimal `json:"amount"`
}

// handleCreatePayment answers 201 with the stored record, including attempts
// that ended FAILED at the gateway.
func (h *Handler) handleCreatePayment(w http.ResponseWriter, r *http.Request) {
	var req createPaymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	p, err := h.svc.Payments.Create(r.Context(), appPayment.SubmitPaymentInput{
		PaymentID:         req.ID,
		OrderID:           req.OrderID,
		Token:             req.TokenizedCreditCard,
		AcceptanceToken:   req.AcceptanceToken,
		PersonalAuthToken: req.AcceptanceAuthToken,
		CustomerEmail:     req.CustomerEmail,
		Total:             req.Amount,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) handleListPayments(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Payments.List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Payments.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) handleAcceptanceTokens(w http.ResponseWriter, r *http.Request) {
	tokens, err := h.svc.Payments.AcceptanceTokens(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokens)
}
