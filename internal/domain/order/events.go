package order

import "time"

// OrderCompletedEvent is emitted once an order has been paid and persisted.
type OrderCompletedEvent struct {
	OrderID    string    `json:"order_id"`
	UserID     string    `json:"user_id"`
	PaymentID  string    `json:"payment_id"`
	Total      string    `json:"total_order_price"`
	Items      int       `json:"items"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (OrderCompletedEvent) EventName() string { return "order.completed" }

func (e OrderCompletedEvent) EventKey() string { return e.OrderID }

func NewOrderCompletedEvent(o *Order) OrderCompletedEvent {
	return OrderCompletedEvent{
		OrderID:    o.ID,
		UserID:     o.UserID,
		PaymentID:  o.PaymentID,
		Total:      o.TotalPrice.String(),
		Items:      len(o.Content),
		OccurredAt: time.Now().UTC(),
	}
}

// OrderFailedEvent is emitted when an order attempt ends without an approved payment.
type OrderFailedEvent struct {
	OrderID    string    `json:"order_id"`
	UserID     string    `json:"user_id"`
	PaymentID  string    `json:"payment_id,omitempty"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (OrderFailedEvent) EventName() string { return "order.failed" }

func (e OrderFailedEvent) EventKey() string { return e.OrderID }

func NewOrderFailedEvent(o *Order) OrderFailedEvent {
	return OrderFailedEvent{
		OrderID:    o.ID,
		UserID:     o.UserID,
		PaymentID:  o.PaymentID,
		Reason:     o.FailureReason,
		OccurredAt: time.Now().UTC(),
	}
}
