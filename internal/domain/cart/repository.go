package cart

import "context"

// Repository is the cart store port. Mutations are targeted upserts keyed by
// (userID, productID) so that concurrent adds from the same user never lose
// updates; implementations must not read-modify-write the whole cart.
type Repository interface {
	// Get returns the user's cart, or the empty-cart sentinel when none
	// exists. Never fails with a not-found error.
	Get(ctx context.Context, userID string) (*Cart, error)

	// UpsertLine adds qty to the (userID, productID) line, creating it when
	// absent, and refreshes the line's AddedAt.
	UpsertLine(ctx context.Context, userID, productID string, qty int) error

	// SetLineQuantity overwrites the line's quantity. qty <= 0 removes the
	// line.
	SetLineQuantity(ctx context.Context, userID, productID string, qty int) error

	// RemoveLine deletes the line; removing an absent line is a no-op.
	RemoveLine(ctx context.Context, userID, productID string) error

	// Clear deletes the whole cart; clearing an absent cart is a no-op.
	Clear(ctx context.Context, userID string) error
}
