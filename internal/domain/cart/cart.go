package cart

import (
	"errors"
	"time"
)

var ErrInvalidQuantity = errors.New("cart: quantity must be greater than zero")

// Line is a single product-quantity pair in a user's cart.
type Line struct {
	ProductID string
	Quantity  int
	AddedAt   time.Time
}

// Cart holds a user's pending lines, ordered by insertion. At most one line
// exists per product; duplicate adds merge quantities.
type Cart struct {
	UserID string
	Lines  []Line
}

// Empty returns the empty-cart sentinel for a user. Reads never fail with
// "no cart"; an absent cart and an empty cart are the same thing.
func Empty(userID string) *Cart {
	return &Cart{UserID: userID}
}

func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Lines) == 0
}

// Merge folds qty into the line for productID, appending a new line when none
// exists. It mirrors the store-side upsert and is used by the in-memory
// backend.
func (c *Cart) Merge(productID string, qty int, now time.Time) {
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			c.Lines[i].Quantity += qty
			c.Lines[i].AddedAt = now
			return
		}
	}
	c.Lines = append(c.Lines, Line{ProductID: productID, Quantity: qty, AddedAt: now})
}

func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	clone := &Cart{UserID: c.UserID, Lines: make([]Line, len(c.Lines))}
	copy(clone.Lines, c.Lines)
	return clone
}
