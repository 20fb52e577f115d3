package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	domain "github.com/orderstack/storefront/internal/domain/order"
)

// OrderRepository keeps orders in memory with compare-and-set status writes.
type OrderRepository struct {
	mu     sync.RWMutex
	orders map[string]*domain.Order
}

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{
		orders: make(map[string]*domain.Order),
	}
}

func (r *OrderRepository) Insert(ctx context.Context, o *domain.Order) error {
	_ = ctx
	if o == nil || o.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[o.ID]; exists {
		return domain.ErrConflict
	}
	r.orders[o.ID] = o.Clone()
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return o.Clone(), nil
}

func (r *OrderRepository) CompareAndSetStatus(ctx context.Context, id string, expect, next domain.Status) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return domain.ErrNotFound
	}
	if o.Status != expect {
		return domain.ErrConflict
	}
	o.Status = next
	o.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *OrderRepository) CompareAndSetPaymentStatus(ctx context.Context, id string, expect, next domain.PaymentStatus) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return domain.ErrNotFound
	}
	if o.PaymentStatus != expect {
		return domain.ErrConflict
	}
	o.PaymentStatus = next
	o.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID string, page, pageSize int) (*domain.Page, error) {
	return r.list(ctx, func(o *domain.Order) bool { return o.UserID == userID }, page, pageSize)
}

func (r *OrderRepository) ListAll(ctx context.Context, filter domain.ListFilter, page, pageSize int) (*domain.Page, error) {
	return r.list(ctx, func(o *domain.Order) bool {
		return filter.Status == "" || o.Status == filter.Status
	}, page, pageSize)
}

func (r *OrderRepository) list(ctx context.Context, keep func(*domain.Order) bool, page, pageSize int) (*domain.Page, error) {
	_ = ctx
	page, pageSize = domain.ClampPage(page, pageSize)

	r.mu.RLock()
	matched := make([]*domain.Order, 0, len(r.orders))
	for _, o := range r.orders {
		if keep(o) {
			matched = append(matched, o.Clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	start := (page - 1) * pageSize
	if start > len(matched) {
		start = len(matched)
	}
	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}

	return &domain.Page{
		Orders:   matched[start:end],
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		Pages:    domain.PageCount(total, pageSize),
	}, nil
}
