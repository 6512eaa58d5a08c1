package payment

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("payment: not found")
	ErrGateway          = errors.New("payment: gateway error")
	ErrInvalidAmount    = errors.New("payment: amount must be greater than zero")
	ErrFractionalAmount = errors.New("payment: amount is not a whole number of minor units")
)

// GatewayError describes a failed call to the payment gateway. StatusCode is
// zero when the request never got a response.
type GatewayError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *GatewayError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("payment gateway: %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("payment gateway: %s: status %d: %s", e.Op, e.StatusCode, e.Body)
	case e.Err != nil:
		return fmt.Sprintf("payment gateway: %s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("payment gateway: %s failed", e.Op)
	}
}

func (e *GatewayError) Unwrap() error { return e.Err }

func (e *GatewayError) Is(target error) bool { return target == ErrGateway }
