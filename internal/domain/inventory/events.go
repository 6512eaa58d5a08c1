package inventory

import "time"

const (
	FailureReasonNotFound          = "not_found"
	FailureReasonInsufficientStock = "insufficient_stock"
	FailureReasonInvalid           = "invalid_adjustment"
	FailureReasonPersistenceError  = "persist_error"
)

// StockAdjustedEvent is emitted after a product counter changed.
type StockAdjustedEvent struct {
	ProductID   string    `json:"product_id"`
	Delta       int64     `json:"delta"`
	StockAmount int64     `json:"stock_amount"`
	OccurredAt  time.Time `json:"occurred_at"`
}

func (StockAdjustedEvent) EventName() string { return "inventory.stock_adjusted" }

func (e StockAdjustedEvent) EventKey() string { return e.ProductID }

func NewStockAdjustedEvent(p *Product, delta int64) StockAdjustedEvent {
	return StockAdjustedEvent{
		ProductID:   p.ID,
		Delta:       delta,
		StockAmount: p.StockAmount,
		OccurredAt:  time.Now().UTC(),
	}
}

// StockSyncFailedEvent is emitted when a completed order could not reduce
// stock for some of its lines. Items holds only the lines worth replaying.
type StockSyncFailedEvent struct {
	OrderID    string       `json:"order_id"`
	Items      []Adjustment `json:"items"`
	OccurredAt time.Time    `json:"occurred_at"`
}

func (StockSyncFailedEvent) EventName() string { return "order.stock_sync_failed" }

func (e StockSyncFailedEvent) EventKey() string { return e.OrderID }

func NewStockSyncFailedEvent(orderID string, items []Adjustment) StockSyncFailedEvent {
	return StockSyncFailedEvent{
		OrderID:    orderID,
		Items:      items,
		OccurredAt: time.Now().UTC(),
	}
}
