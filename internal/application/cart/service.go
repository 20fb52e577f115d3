package cart

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/orderstack/storefront/internal/domain/cart"
	"github.com/orderstack/storefront/internal/observability"
	"github.com/orderstack/storefront/internal/observability/logctx"
)

var ErrStoreUnavailable = errors.New("cart: store unavailable")

const componentCart = "cart_service"

// Service exposes the cart store operations. Cart mutations never validate
// against current stock; availability is checked at checkout time only.
type Service struct {
	repo domain.Repository
	log  observability.Logger
}

func NewService(repo domain.Repository, logger observability.Logger) *Service {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Service{
		repo: repo,
		log:  logger.With(observability.F("component", componentCart)),
	}
}

// AddItem merges qty into the user's line for productID, creating the line
// (and implicitly the cart) when absent.
func (s *Service) AddItem(ctx context.Context, userID, productID string, qty int) error {
	if userID == "" || productID == "" {
		return errors.New("cart: user id and product id are required")
	}
	if qty < 1 {
		return domain.ErrInvalidQuantity
	}

	if err := s.repo.UpsertLine(ctx, userID, productID, qty); err != nil {
		if errors.Is(err, domain.ErrInvalidQuantity) {
			return err
		}
		return s.storeErr(ctx, "cart_add_failed", userID, productID, err)
	}

	logctx.FromOr(ctx, s.log).Info("cart_item_added",
		observability.F("user_id", userID),
		observability.F("product_id", productID),
		observability.F("quantity", qty),
	)
	return nil
}

// UpdateItemQuantity overwrites the line's quantity; qty <= 0 removes the line.
func (s *Service) UpdateItemQuantity(ctx context.Context, userID, productID string, qty int) error {
	if userID == "" || productID == "" {
		return errors.New("cart: user id and product id are required")
	}

	if err := s.repo.SetLineQuantity(ctx, userID, productID, qty); err != nil {
		return s.storeErr(ctx, "cart_update_failed", userID, productID, err)
	}
	return nil
}

func (s *Service) RemoveItem(ctx context.Context, userID, productID string) error {
	if err := s.repo.RemoveLine(ctx, userID, productID); err != nil {
		return s.storeErr(ctx, "cart_remove_failed", userID, productID, err)
	}
	return nil
}

// Clear deletes the whole cart; clearing an absent cart is a no-op.
func (s *Service) Clear(ctx context.Context, userID string) error {
	if err := s.repo.Clear(ctx, userID); err != nil {
		return s.storeErr(ctx, "cart_clear_failed", userID, "", err)
	}
	return nil
}

// Get returns the cart, or the empty-cart sentinel when none exists.
func (s *Service) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	c, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, s.storeErr(ctx, "cart_get_failed", userID, "", err)
	}
	return c, nil
}

func (s *Service) storeErr(ctx context.Context, msg, userID, productID string, err error) error {
	fields := []observability.Field{
		observability.F("user_id", userID),
		observability.F("error", err.Error()),
	}
	if productID != "" {
		fields = append(fields, observability.F("product_id", productID))
	}
	logctx.FromOr(ctx, s.log).Error(msg, fields...)
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}
