package memory

import (
	"context"
	"sync"
	"time"

	domain "github.com/orderstack/storefront/internal/domain/catalog"
)

// CatalogRepository is the in-memory product store. AdjustStock performs the
// conditional check and the write under one lock acquisition, which is the
// in-process equivalent of the store-side atomic conditional update.
type CatalogRepository struct {
	mu       sync.RWMutex
	products map[string]*domain.Product
}

func NewCatalogRepository() *CatalogRepository {
	return &CatalogRepository{
		products: make(map[string]*domain.Product),
	}
}

func (r *CatalogRepository) Get(ctx context.Context, productID string) (*domain.Product, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.products[productID]
	if !ok {
		return nil, &domain.NotFoundError{ProductID: productID}
	}
	return cloneProduct(p), nil
}

func (r *CatalogRepository) Save(ctx context.Context, p *domain.Product) error {
	_ = ctx
	if p == nil || p.ID == "" {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	clone := cloneProduct(p)
	clone.UpdatedAt = time.Now().UTC()
	r.products[p.ID] = clone
	return nil
}

func (r *CatalogRepository) AdjustStock(ctx context.Context, productID string, delta int) (int, error) {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[productID]
	if !ok {
		return 0, &domain.NotFoundError{ProductID: productID}
	}
	if delta < 0 && p.Stock < -delta {
		return 0, &domain.InsufficientStockError{
			ProductID: productID,
			Requested: -delta,
			Available: p.Stock,
		}
	}

	p.Stock += delta
	p.UpdatedAt = time.Now().UTC()
	return p.Stock, nil
}

func cloneProduct(p *domain.Product) *domain.Product {
	if p == nil {
		return nil
	}
	clone := *p
	clone.Images = append([]string(nil), p.Images...)
	return &clone
}
