package payment

import "context"

// SourceRequest exchanges a tokenized card and consent tokens for a payment source.
type SourceRequest struct {
	Token             string
	AcceptanceToken   string
	PersonalAuthToken string
	CustomerEmail     string
}

type TransactionRequest struct {
	AmountInCents int64
	Currency      string
	CustomerEmail string
	Reference     string
	SourceID      string
	Signature     string
}

// AcceptanceTokens are the merchant consent tokens a customer must accept before paying.
type AcceptanceTokens struct {
	AcceptanceToken       string `json:"acceptance_token"`
	AcceptancePermalink   string `json:"acceptance_permalink"`
	PersonalAuthToken     string `json:"personal_auth_token"`
	PersonalAuthPermalink string `json:"personal_auth_permalink"`
}

// Gateway is the boundary to the external card payment provider.
type Gateway interface {
	Sign(paymentID string, amountInCents int64) string
	Currency() string
	CreatePaymentSource(ctx context.Context, req SourceRequest) (string, error)
	CreateTransaction(ctx context.Context, req TransactionRequest) (string, error)
	TransactionStatus(ctx context.Context, transactionID string) (Status, error)
	AcceptanceTokens(ctx context.Context) (AcceptanceTokens, error)
}
