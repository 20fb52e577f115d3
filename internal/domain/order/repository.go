package order

import "context"

// Page is one page of an offset-paginated listing. Page numbers are 1-based.
type Page struct {
	Orders   []*Order
	Total    int64
	Page     int
	PageSize int
	Pages    int
}

// ListFilter narrows ListAll. An empty Status matches every order.
type ListFilter struct {
	Status Status
}

// Repository is the order ledger port. Status writes are compare-and-set on
// the expected prior value so concurrent admin and user actions on the same
// order cannot clobber each other.
type Repository interface {
	// Insert persists a new order; the id must not already exist.
	Insert(ctx context.Context, o *Order) error

	// Get returns the order or ErrNotFound.
	Get(ctx context.Context, id string) (*Order, error)

	// CompareAndSetStatus moves id from expect to next in a single store
	// operation. Fails with ErrNotFound for an unknown id and ErrConflict
	// when the stored status is not expect.
	CompareAndSetStatus(ctx context.Context, id string, expect, next Status) error

	// CompareAndSetPaymentStatus is the payment-field analogue of
	// CompareAndSetStatus.
	CompareAndSetPaymentStatus(ctx context.Context, id string, expect, next PaymentStatus) error

	// ListByUser returns the user's orders, newest first.
	ListByUser(ctx context.Context, userID string, page, pageSize int) (*Page, error)

	// ListAll returns every order matching filter, newest first.
	ListAll(ctx context.Context, filter ListFilter, page, pageSize int) (*Page, error)
}

// PageCount computes the number of pages covering total items.
func PageCount(total int64, pageSize int) int {
	if pageSize <= 0 {
		return 0
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}

// ClampPage normalises 1-based pagination input.
func ClampPage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	return page, pageSize
}
