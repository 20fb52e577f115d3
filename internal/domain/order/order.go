package order

import (
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("order: not found")
	ErrEmptyOrder        = errors.New("order: snapshot must contain at least one item")
	ErrInvalidStatus     = errors.New("order: unrecognized status")
	ErrInvalidTransition = errors.New("order: invalid status transition")
	ErrNotOwned          = errors.New("order: not owned by requester")
	ErrConflict          = errors.New("order: concurrent modification")
)

// Item is a snapshot line captured at checkout time. Name, price, and images
// are copied out of the catalog so the order is unaffected by later catalog
// edits.
type Item struct {
	ProductID   string
	ProductName string
	UnitPrice   int64
	Quantity    int
	Images      []string
}

func (i Item) Subtotal() int64 {
	return i.UnitPrice * int64(i.Quantity)
}

// Order is immutable once created except for its status and payment-status
// fields. It embeds its line-item snapshot inline; TotalAmount is fixed at
// creation from that snapshot.
type Order struct {
	ID              string
	UserID          string
	Items           []Item
	TotalAmount     int64
	Status          Status
	PaymentStatus   PaymentStatus
	ShippingAddress string
	PaymentMethod   string
	Note            string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// New builds a pending order from a non-empty snapshot, computing TotalAmount
// as the sum of item subtotals.
func New(id, userID string, items []Item, shippingAddress, paymentMethod, note string) (*Order, error) {
	if len(items) == 0 {
		return nil, ErrEmptyOrder
	}

	var total int64
	for _, it := range items {
		total += it.Subtotal()
	}

	now := time.Now().UTC()
	return &Order{
		ID:              id,
		UserID:          userID,
		Items:           append([]Item(nil), items...),
		TotalAmount:     total,
		Status:          StatusPending,
		PaymentStatus:   PaymentPending,
		ShippingAddress: shippingAddress,
		PaymentMethod:   paymentMethod,
		Note:            note,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	clone.Items = make([]Item, len(o.Items))
	copy(clone.Items, o.Items)
	return &clone
}
