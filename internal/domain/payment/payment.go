package payment

import "time"

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusDeclined Status = "DECLINED"
	StatusVoided   Status = "VOIDED"
	StatusError    Status = "ERROR"
	StatusFailed   Status = "FAILED"
	StatusTimeout  Status = "TIMEOUT"
)

// Terminal reports whether polling can stop. Gateway-specific values other
// than PENDING are treated as terminal.
func (s Status) Terminal() bool {
	return s != "" && s != StatusPending
}

const MethodCard = "CARD"

// Payment is the record of a single charge attempt against the gateway.
type Payment struct {
	ID            string    `json:"id"`
	OrderID       string    `json:"order_id,omitempty"`
	Token         string    `json:"tokenized_credit_card"`
	AmountInCents int64     `json:"amount_in_cents"`
	Currency      string    `json:"currency"`
	Status        Status    `json:"payment_status"`
	TransactionID string    `json:"transaction_id,omitempty"`
	CustomerEmail string    `json:"customer_email"`
	Method        string    `json:"payment_method"`
	CreatedAt     time.Time `json:"created_at"`
	FailureReason string    `json:"failure_reason,omitempty"`
}

func (p *Payment) Approved() bool { return p != nil && p.Status == StatusApproved }

// Fail marks the attempt as FAILED with reason.
func (p *Payment) Fail(reason string) {
	p.Status = StatusFailed
	p.FailureReason = reason
}
