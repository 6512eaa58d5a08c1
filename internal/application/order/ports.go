package order

import (
	"github.com/Zhima-Mochi/storefront/internal/application"
	apppayment "github.com/Zhima-Mochi/storefront/internal/application/payment"
	dominventory "github.com/Zhima-Mochi/storefront/internal/domain/inventory"
	dompayment "github.com/Zhima-Mochi/storefront/internal/domain/payment"
)

type IDGenerator interface {
	NewID() string
}

// PaymentPort runs one payment attempt for an order.
type PaymentPort = application.UseCase[apppayment.SubmitPaymentInput, *dompayment.Payment]

// StockPort applies stock adjustments after an order was paid.
type StockPort = application.UseCase[[]dominventory.Adjustment, *dominventory.AdjustResult]
