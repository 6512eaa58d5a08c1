package payment

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

const DefaultMinorUnitFactor int64 = 100

// ToMinorUnits converts an amount in major units to the gateway's integer
// minor units. It is the only place prices cross that boundary.
func ToMinorUnits(amount decimal.Decimal, factor int64) (int64, error) {
	if factor <= 0 {
		return 0, errors.New("payment: minor unit factor must be positive")
	}
	if !amount.IsPositive() {
		return 0, ErrInvalidAmount
	}
	minor := amount.Mul(decimal.NewFromInt(factor))
	if !minor.IsInteger() {
		return 0, fmt.Errorf("%w: %s x %d", ErrFractionalAmount, amount.String(), factor)
	}
	if !minor.BigInt().IsInt64() {
		return 0, fmt.Errorf("payment: amount %s overflows minor units", amount.String())
	}
	return minor.IntPart(), nil
}
