package memory

import (
	"context"
	"sync"
	"time"

	domain "github.com/orderstack/storefront/internal/domain/cart"
)

// CartRepository keeps carts in memory. Every mutation targets a single
// (userID, productID) line under the lock, matching the upsert granularity of
// the document store.
type CartRepository struct {
	mu    sync.RWMutex
	carts map[string]*domain.Cart
}

func NewCartRepository() *CartRepository {
	return &CartRepository{
		carts: make(map[string]*domain.Cart),
	}
}

func (r *CartRepository) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.carts[userID]
	if !ok {
		return domain.Empty(userID), nil
	}
	return c.Clone(), nil
}

func (r *CartRepository) UpsertLine(ctx context.Context, userID, productID string, qty int) error {
	_ = ctx
	if qty < 1 {
		return domain.ErrInvalidQuantity
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.carts[userID]
	if !ok {
		c = domain.Empty(userID)
		r.carts[userID] = c
	}
	c.Merge(productID, qty, time.Now().UTC())
	return nil
}

func (r *CartRepository) SetLineQuantity(ctx context.Context, userID, productID string, qty int) error {
	if qty <= 0 {
		return r.RemoveLine(ctx, userID, productID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.carts[userID]
	if !ok {
		return nil
	}
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			c.Lines[i].Quantity = qty
			return nil
		}
	}
	return nil
}

func (r *CartRepository) RemoveLine(ctx context.Context, userID, productID string) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.carts[userID]
	if !ok {
		return nil
	}
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
			break
		}
	}
	if len(c.Lines) == 0 {
		delete(r.carts, userID)
	}
	return nil
}

func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.carts, userID)
	return nil
}
