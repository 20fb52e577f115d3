package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	domcart "github.com/orderstack/storefront/internal/domain/cart"
	domcatalog "github.com/orderstack/storefront/internal/domain/catalog"
	domorder "github.com/orderstack/storefront/internal/domain/order"
	domoutbox "github.com/orderstack/storefront/internal/domain/outbox"
	"github.com/orderstack/storefront/internal/infrastructure/id"
	"github.com/orderstack/storefront/internal/observability"
	"github.com/orderstack/storefront/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	useCaseCheckout = "checkout"
	spanPrefix      = "UC."
	publishTimeout  = 300 * time.Millisecond

	// defaultOversoldRetries bounds how many times the whole checkout is
	// re-run after a decrement-time conflict before the error surfaces.
	defaultOversoldRetries = 1
)

var (
	ErrEmptyCart        = errors.New("checkout: cart is empty")
	ErrOversold         = errors.New("checkout: stock exhausted between validation and decrement")
	ErrStoreUnavailable = errors.New("checkout: store unavailable")
)

// UseCase turns a user's cart into a committed order. The validation pass over
// every line fully precedes any mutation; stock decrements go through the
// catalog's atomic conditional write; a decrement-time conflict rolls the
// attempt back and re-runs the whole flow once against fresh stock.
type UseCase struct {
	carts       domcart.Repository
	catalog     domcatalog.Repository
	orders      domorder.Repository
	idGenerator id.Generator
	publisher   domoutbox.Publisher
	tel         observability.Observability
	retries     int

	log             observability.Logger
	reqCounter      observability.Counter
	durHistogram    observability.Histogram
	oversoldCounter observability.Counter
}

// Option adjusts use case construction.
type Option func(*UseCase)

// WithOversoldRetries overrides the retry bound for decrement-time stock
// conflicts. Zero disables the retry; negative values are ignored.
func WithOversoldRetries(n int) Option {
	return func(uc *UseCase) {
		if n >= 0 {
			uc.retries = n
		}
	}
}

func New(
	carts domcart.Repository,
	catalog domcatalog.Repository,
	orders domorder.Repository,
	idGen id.Generator,
	publisher domoutbox.Publisher,
	tel observability.Observability,
	opts ...Option,
) *UseCase {
	if tel == nil {
		tel = observability.Nop()
	}
	metrics := tel.Metrics()
	uc := &UseCase{
		carts:           carts,
		catalog:         catalog,
		orders:          orders,
		idGenerator:     idGen,
		publisher:       publisher,
		tel:             tel,
		retries:         defaultOversoldRetries,
		log:             tel.Logger().With(observability.F("use_case", useCaseCheckout)),
		reqCounter:      metrics.Counter(observability.MUsecaseRequests),
		durHistogram:    metrics.Histogram(observability.MUsecaseDuration),
		oversoldCounter: metrics.Counter(observability.MCheckoutOversold),
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

type Input struct {
	UserID          string
	ShippingAddress string
	PaymentMethod   string
	Note            string
}

// Execute runs the checkout and returns the committed order.
func (uc *UseCase) Execute(ctx context.Context, cmd Input) (_ *domorder.Order, err error) {
	logger := logctx.FromOr(ctx, uc.log).With(observability.F("use_case", useCaseCheckout))

	ctx, span := uc.tel.Tracer().Start(ctx, spanPrefix+"Checkout",
		attribute.String("use_case", useCaseCheckout),
		attribute.String("cart.user_id", cmd.UserID),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"

	defer func() {
		lat := time.Since(start).Seconds()

		if span != nil {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, statusText)
			} else {
				span.SetStatus(codes.Ok, statusText)
			}
			span.End()
		}

		uc.reqCounter.Add(1,
			observability.L("use_case", useCaseCheckout),
			observability.L("outcome", outcome),
		)
		uc.durHistogram.Observe(lat, observability.L("use_case", useCaseCheckout))

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", statusText),
			observability.F("latency_seconds", lat),
		}
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			fields = append(fields,
				observability.F("trace_id", sc.TraceID().String()),
				observability.F("span_id", sc.SpanID().String()),
			)
		}
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
		}
		logger.Info("use_case_done", fields...)
	}()

	if cmd.UserID == "" {
		outcome, statusText = "error", "USER_ID_REQUIRED"
		return nil, errors.New("checkout: user id is required")
	}

	var placed *domorder.Order
	for attempt := 0; ; attempt++ {
		placed, err = uc.attempt(ctx, cmd)
		if err == nil {
			break
		}
		if errors.Is(err, ErrOversold) {
			uc.oversoldCounter.Add(1)
			span.AddEvent("checkout.oversold_conflict",
				trace.WithAttributes(attribute.Int("attempt", attempt+1)),
			)
			if attempt < uc.retries {
				logger.Warn("checkout_oversold_retry",
					observability.F("user_id", cmd.UserID),
					observability.F("attempt", attempt+1),
				)
				continue
			}
			outcome, statusText = "error", "OVERSOLD_CONFLICT"
			return nil, err
		}
		outcome, statusText = "error", classify(err)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("order.id", placed.ID),
		attribute.Int64("order.total_amount", placed.TotalAmount),
	)
	span.AddEvent("order.placed", trace.WithAttributes(attribute.String("order.id", placed.ID)))

	uc.publish(ctx, domorder.NewPlacedEvent(placed))
	return placed, nil
}

// attempt runs one full pass: load cart, validate every line read-only while
// capturing the snapshot, persist the order, then apply the decrements. No
// mutation happens before every line has passed validation.
func (uc *UseCase) attempt(ctx context.Context, cmd Input) (*domorder.Order, error) {
	c, err := uc.carts.Get(ctx, cmd.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: load cart: %w", ErrStoreUnavailable, err)
	}
	if c.IsEmpty() {
		return nil, ErrEmptyCart
	}

	items := make([]domorder.Item, 0, len(c.Lines))
	for _, line := range c.Lines {
		p, err := uc.catalog.Get(ctx, line.ProductID)
		if err != nil {
			if errors.Is(err, domcatalog.ErrNotFound) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: read product %s: %w", ErrStoreUnavailable, line.ProductID, err)
		}
		if p.Stock < line.Quantity {
			return nil, &domcatalog.InsufficientStockError{
				ProductID: line.ProductID,
				Requested: line.Quantity,
				Available: p.Stock,
			}
		}
		items = append(items, domorder.Item{
			ProductID:   p.ID,
			ProductName: p.Name,
			UnitPrice:   p.UnitPrice,
			Quantity:    line.Quantity,
			Images:      p.Images,
		})
	}

	entity, err := domorder.New(uc.idGenerator.NewID(), cmd.UserID, items,
		cmd.ShippingAddress, cmd.PaymentMethod, cmd.Note)
	if err != nil {
		return nil, err
	}
	if err := uc.orders.Insert(ctx, entity); err != nil {
		return nil, fmt.Errorf("%w: insert order: %w", ErrStoreUnavailable, err)
	}

	for i, line := range c.Lines {
		if _, err := uc.catalog.AdjustStock(ctx, line.ProductID, -line.Quantity); err != nil {
			uc.rollback(ctx, entity, c.Lines[:i])
			if errors.Is(err, domcatalog.ErrInsufficientStock) {
				return nil, fmt.Errorf("%w: product %s: %w", ErrOversold, line.ProductID, err)
			}
			return nil, fmt.Errorf("%w: decrement product %s: %w", ErrStoreUnavailable, line.ProductID, err)
		}
	}

	if err := uc.carts.Clear(ctx, cmd.UserID); err != nil {
		// The order and its decrements are committed; a stale cart is
		// recoverable (the next checkout re-validates), so this is not a
		// failure of the checkout itself.
		logctx.FromOr(ctx, uc.log).Error("cart_clear_failed",
			observability.F("user_id", cmd.UserID),
			observability.F("order_id", entity.ID),
			observability.F("error", err.Error()),
		)
	}

	return entity, nil
}

// rollback undoes the decrements already applied for this attempt and voids
// the order record, restoring "as if the checkout had not started".
func (uc *UseCase) rollback(ctx context.Context, entity *domorder.Order, applied []domcart.Line) {
	logger := logctx.FromOr(ctx, uc.log).With(observability.F("order_id", entity.ID))

	for _, line := range applied {
		if _, err := uc.catalog.AdjustStock(ctx, line.ProductID, line.Quantity); err != nil {
			// Restock of a compensating increment cannot hit the stock
			// guard; a failure here means the store itself is down.
			logger.Error("checkout_rollback_restock_failed",
				observability.F("product_id", line.ProductID),
				observability.F("quantity", line.Quantity),
				observability.F("error", err.Error()),
			)
		}
	}

	if err := uc.orders.CompareAndSetStatus(ctx, entity.ID, domorder.StatusPending, domorder.StatusCancelled); err != nil {
		logger.Error("checkout_rollback_void_failed",
			observability.F("error", err.Error()),
		)
	}
}

func (uc *UseCase) publish(ctx context.Context, e domoutbox.Event) {
	if uc.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := uc.publisher.Publish(pubCtx, e); err != nil {
		uc.tel.Metrics().Counter(observability.MEventPublishFailed).Add(1,
			observability.L("event", e.EventName()),
		)
		logctx.FromOr(ctx, uc.log).Warn("event_publish_failed",
			observability.F("event", e.EventName()),
			observability.F("error", err.Error()),
		)
	}
}

func classify(err error) string {
	switch {
	case errors.Is(err, ErrEmptyCart):
		return "EMPTY_CART"
	case errors.Is(err, domcatalog.ErrNotFound):
		return "PRODUCT_NOT_FOUND"
	case errors.Is(err, domcatalog.ErrInsufficientStock):
		return "INSUFFICIENT_STOCK"
	case errors.Is(err, ErrStoreUnavailable):
		return "STORE_UNAVAILABLE"
	default:
		return "CHECKOUT_FAILED"
	}
}
