package order

import "time"

// PlacedEvent is emitted after a checkout commits. Consumers outside the core
// (notification, fulfillment) subscribe to it; the core itself does not depend
// on delivery.
type PlacedEvent struct {
	OrderID     string
	UserID      string
	TotalAmount int64
	OccurredAt  time.Time
}

func (PlacedEvent) EventName() string { return "order.placed" }

func NewPlacedEvent(o *Order) PlacedEvent {
	return PlacedEvent{
		OrderID:     o.ID,
		UserID:      o.UserID,
		TotalAmount: o.TotalAmount,
		OccurredAt:  time.Now().UTC(),
	}
}

// CancelledEvent is emitted after a cancellation restores stock.
type CancelledEvent struct {
	OrderID    string
	UserID     string
	OccurredAt time.Time
}

func (CancelledEvent) EventName() string { return "order.cancelled" }

func NewCancelledEvent(o *Order) CancelledEvent {
	return CancelledEvent{
		OrderID:    o.ID,
		UserID:     o.UserID,
		OccurredAt: time.Now().UTC(),
	}
}

// PaymentSettledEvent carries the external settlement signal for an order's
// passive payment-status field.
type PaymentSettledEvent struct {
	OrderID    string
	Status     PaymentStatus
	OccurredAt time.Time
}

func (PaymentSettledEvent) EventName() string { return "payment.settled" }
