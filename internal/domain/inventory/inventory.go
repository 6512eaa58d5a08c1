package inventory

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("inventory: product not found")
	ErrInvalidMagnitude  = errors.New("inventory: stock variation must be zero or greater")
	ErrInvalidDirection  = errors.New("inventory: variation must be INCREMENT or REDUCE")
	ErrMissingProduct    = errors.New("inventory: product id is required")
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
	ErrPartialAdjustment = errors.New("inventory: stock adjustment partially failed")
	ErrInvalidPolicy     = errors.New("inventory: unknown floor policy")
	// ErrTransient marks a store failure known to have left the counter untouched.
	ErrTransient = errors.New("inventory: stock update not applied, retry later")
)

type Direction string

const (
	Increment Direction = "INCREMENT"
	Reduce    Direction = "REDUCE"
)

// Adjustment requests a change of a product's stock counter.
type Adjustment struct {
	ProductID string    `json:"id"`
	Magnitude int64     `json:"stock_variation"`
	Direction Direction `json:"variation"`
}

func (a Adjustment) Validate() error {
	if strings.TrimSpace(a.ProductID) == "" {
		return ErrMissingProduct
	}
	if a.Magnitude < 0 {
		return ErrInvalidMagnitude
	}
	if a.Direction != Increment && a.Direction != Reduce {
		return ErrInvalidDirection
	}
	return nil
}

// Delta is the signed amount to add to the counter.
func (a Adjustment) Delta() int64 {
	if a.Direction == Reduce {
		return -a.Magnitude
	}
	return a.Magnitude
}

// FloorPolicy decides what happens when a reduction would take stock below zero.
type FloorPolicy string

const (
	FloorAllow  FloorPolicy = "allow"
	FloorClamp  FloorPolicy = "clamp"
	FloorReject FloorPolicy = "reject"
)

func ParseFloorPolicy(s string) (FloorPolicy, error) {
	switch p := FloorPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return FloorAllow, nil
	case FloorAllow, FloorClamp, FloorReject:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPolicy, s)
	}
}

type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	StockAmount int64           `json:"stock_amount"`
	UpdatedAt   time.Time       `json:"updated_at,omitempty"`
}

// ItemFailure records why one adjustment of a batch was not applied.
type ItemFailure struct {
	Adjustment
	Reason string `json:"reason"`
	// Retryable marks failures that may succeed when replayed unchanged.
	Retryable bool `json:"retryable"`
}

// AdjustResult is the outcome of a batch; Updated holds post-update products in input order.
type AdjustResult struct {
	Updated  []*Product    `json:"updated"`
	Failures []ItemFailure `json:"failures,omitempty"`
}
