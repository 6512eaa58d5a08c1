package order

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const MaxAddressLength = 200

var (
	ErrNotFound               = errors.New("order: not found")
	ErrConflict               = errors.New("order: id already exists")
	ErrMissingUser            = errors.New("order: user id is required")
	ErrInvalidAddress         = fmt.Errorf("order: address must be between 1 and %d characters", MaxAddressLength)
	ErrEmptyCart              = errors.New("order: cart must contain at least one item")
	ErrInvalidItem            = errors.New("order: invalid cart item")
	ErrInvalidEmail           = errors.New("order: invalid customer email")
	ErrInvalidTotal           = errors.New("order: total price must cover the cart subtotal")
	ErrInvalidStatus          = errors.New("order: unknown order status")
	ErrInvalidStateTransition = errors.New("order: invalid state transition")
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether the creation attempt is over for an order in this status.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CartItem is one product line of an order. LineTotal is derived, never trusted from input.
type CartItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name,omitempty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int64           `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type Order struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	Address       string          `json:"address"`
	CustomerEmail string          `json:"customer_email"`
	CreatedAt     time.Time       `json:"created_at"`
	Content       []CartItem      `json:"content"`
	Status        Status          `json:"order_status"`
	PaymentID     string          `json:"payment_id,omitempty"`
	TotalPrice    decimal.Decimal `json:"total_order_price"`
	FailureReason string          `json:"failure_reason,omitempty"`
}

// Draft carries the caller-supplied fields of a new order.
type Draft struct {
	ID            string
	UserID        string
	Address       string
	CustomerEmail string
	Items         []CartItem
	// Total is optional; nil means the cart subtotal.
	Total *decimal.Decimal
}

// New validates d and returns a PENDING order with line totals computed.
func New(d Draft) (*Order, error) {
	if strings.TrimSpace(d.UserID) == "" {
		return nil, ErrMissingUser
	}
	if err := ValidateAddress(d.Address); err != nil {
		return nil, err
	}
	if err := ValidateEmail(d.CustomerEmail); err != nil {
		return nil, err
	}
	if len(d.Items) == 0 {
		return nil, ErrEmptyCart
	}

	items := make([]CartItem, 0, len(d.Items))
	subtotal := decimal.Zero
	for i, it := range d.Items {
		switch {
		case strings.TrimSpace(it.ProductID) == "":
			return nil, fmt.Errorf("%w: line %d: product id is required", ErrInvalidItem, i)
		case it.Quantity <= 0:
			return nil, fmt.Errorf("%w: line %d: quantity must be greater than zero", ErrInvalidItem, i)
		case !it.UnitPrice.IsPositive():
			return nil, fmt.Errorf("%w: line %d: unit price must be greater than zero", ErrInvalidItem, i)
		}
		it.LineTotal = it.UnitPrice.Mul(decimal.NewFromInt(it.Quantity))
		subtotal = subtotal.Add(it.LineTotal)
		items = append(items, it)
	}

	total := subtotal
	if d.Total != nil {
		if d.Total.LessThan(subtotal) {
			return nil, fmt.Errorf("%w: total %s is below subtotal %s", ErrInvalidTotal, d.Total.String(), subtotal.String())
		}
		total = *d.Total
	}

	return &Order{
		ID:            d.ID,
		UserID:        d.UserID,
		Address:       d.Address,
		CustomerEmail: d.CustomerEmail,
		CreatedAt:     time.Now().UTC(),
		Content:       items,
		Status:        StatusPending,
		TotalPrice:    total,
	}, nil
}

// Subtotal sums the line totals of the order.
func (o *Order) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range o.Content {
		sum = sum.Add(it.LineTotal)
	}
	return sum
}

func (o *Order) MarkCompleted(paymentID string) error {
	next, err := stateFor(o.Status).OnPaymentApproved(o)
	if err != nil {
		return err
	}
	o.PaymentID = paymentID
	o.Status = next.Status()
	return nil
}

func (o *Order) MarkFailed(paymentID, reason string) error {
	next, err := stateFor(o.Status).OnPaymentFailed(o, reason)
	if err != nil {
		return err
	}
	o.PaymentID = paymentID
	o.Status = next.Status()
	return nil
}

func (o *Order) Cancel() error {
	next, err := stateFor(o.Status).OnCancelled(o)
	if err != nil {
		return err
	}
	o.Status = next.Status()
	return nil
}

func ValidateAddress(address string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(address))
	if n == 0 || utf8.RuneCountInString(address) > MaxAddressLength {
		return ErrInvalidAddress
	}
	return nil
}

func ValidateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != strings.TrimSpace(email) {
		return ErrInvalidEmail
	}
	return nil
}
