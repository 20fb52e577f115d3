package catalog

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound          = errors.New("catalog: product not found")
	ErrInsufficientStock = errors.New("catalog: insufficient stock")
	ErrInvalidDelta      = errors.New("catalog: stock delta must be non-zero")
)

// Product is the catalog read model. The core only reads name/price/stock and
// issues stock deltas; everything else about a product belongs to the catalog
// collaborator.
type Product struct {
	ID        string
	Name      string
	UnitPrice int64
	Stock     int
	Images    []string
	Active    bool
	UpdatedAt time.Time
}

// NotFoundError names the product a lookup failed for.
type NotFoundError struct {
	ProductID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("catalog: product %s not found", e.ProductID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// InsufficientStockError reports a requested quantity that exceeds the stock
// available at the time of the conditional write.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("catalog: insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }
