package catalog

import "context"

// Repository is the stock ledger port. AdjustStock is the only way stock is
// mutated: implementations must apply the delta as a single conditional write
// (decrement only where stock >= |delta|), never as a read followed by a
// separate write, so that concurrent checkouts for the same product serialize
// at the store and stock can never go negative.
type Repository interface {
	// Get returns the product or a *NotFoundError.
	Get(ctx context.Context, productID string) (*Product, error)

	// Save upserts a product record. Admin/catalog boundary only; Save must
	// not be used to change stock on an existing product.
	Save(ctx context.Context, p *Product) error

	// AdjustStock applies delta (positive restock, negative consume) and
	// returns the resulting stock. A negative delta that would drive stock
	// below zero fails with *InsufficientStockError and leaves stock
	// untouched.
	AdjustStock(ctx context.Context, productID string, delta int) (int, error)
}
