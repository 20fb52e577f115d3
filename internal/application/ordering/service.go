package ordering

import (
	"context"
	"errors"
	"fmt"
	"time"

	domcatalog "github.com/orderstack/storefront/internal/domain/catalog"
	domorder "github.com/orderstack/storefront/internal/domain/order"
	domoutbox "github.com/orderstack/storefront/internal/domain/outbox"
	"github.com/orderstack/storefront/internal/observability"
	"github.com/orderstack/storefront/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	useCaseCancel  = "order.cancel"
	spanPrefix     = "UC."
	publishTimeout = 300 * time.Millisecond
)

var ErrStoreUnavailable = errors.New("ordering: store unavailable")

// Service owns the order-side operations exposed past checkout: user
// cancellation (the compensating transaction), admin status advance, payment
// settlement, and the read paths.
type Service struct {
	orders    domorder.Repository
	catalog   domcatalog.Repository
	publisher domoutbox.Publisher
	tel       observability.Observability

	log          observability.Logger
	reqCounter   observability.Counter
	durHistogram observability.Histogram
}

func NewService(
	orders domorder.Repository,
	catalog domcatalog.Repository,
	publisher domoutbox.Publisher,
	tel observability.Observability,
) *Service {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Service{
		orders:       orders,
		catalog:      catalog,
		publisher:    publisher,
		tel:          tel,
		log:          tel.Logger().With(observability.F("component", "ordering_service")),
		reqCounter:   tel.Metrics().Counter(observability.MUsecaseRequests),
		durHistogram: tel.Metrics().Histogram(observability.MUsecaseDuration),
	}
}

// Cancel reverses a pending order exactly once. The requester must own the
// order; the pending-status compare-and-set is the guard against double
// compensation, so an already-cancelled order fails with ErrInvalidTransition
// instead of restocking twice.
func (s *Service) Cancel(ctx context.Context, orderID, requesterID string) (err error) {
	logger := logctx.FromOr(ctx, s.log).With(observability.F("use_case", useCaseCancel))

	ctx, span := s.tel.Tracer().Start(ctx, spanPrefix+"CancelOrder",
		attribute.String("use_case", useCaseCancel),
		attribute.String("order.id", orderID),
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
		s.reqCounter.Add(1,
			observability.L("use_case", useCaseCancel),
			observability.L("outcome", outcome),
		)
		s.durHistogram.Observe(lat, observability.L("use_case", useCaseCancel))

		fields := []observability.Field{
			observability.F("order_id", orderID),
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

	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, domorder.ErrNotFound) {
			outcome, statusText = "error", "ORDER_NOT_FOUND"
			return err
		}
		outcome, statusText = "error", "STORE_UNAVAILABLE"
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if o.UserID != requesterID {
		outcome, statusText = "error", "OWNERSHIP_VIOLATION"
		return domorder.ErrNotOwned
	}
	if !domorder.CanCancel(o.Status) {
		outcome, statusText = "error", "INVALID_TRANSITION"
		return fmt.Errorf("%w: cannot cancel order in status %s", domorder.ErrInvalidTransition, o.Status)
	}

	err = s.orders.CompareAndSetStatus(ctx, orderID, domorder.StatusPending, domorder.StatusCancelled)
	if errors.Is(err, domorder.ErrConflict) {
		// Someone else moved the order first; no stock was touched.
		outcome, statusText = "error", "INVALID_TRANSITION"
		return fmt.Errorf("%w: order %s is no longer pending", domorder.ErrInvalidTransition, orderID)
	}
	if err != nil {
		outcome, statusText = "error", "STORE_UNAVAILABLE"
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	// Restore every snapshot line. The CAS above already fenced this path;
	// a failure here means the store itself is failing mid-restock, which the
	// caller must treat as an unknown outcome and re-query.
	var restockErr error
	for _, it := range o.Items {
		if _, err := s.catalog.AdjustStock(ctx, it.ProductID, it.Quantity); err != nil {
			logger.Error("cancel_restock_failed",
				observability.F("order_id", orderID),
				observability.F("product_id", it.ProductID),
				observability.F("quantity", it.Quantity),
				observability.F("error", err.Error()),
			)
			if restockErr == nil {
				restockErr = err
			}
		}
	}
	if restockErr != nil {
		outcome, statusText = "error", "RESTOCK_INCOMPLETE"
		return fmt.Errorf("%w: restock: %w", ErrStoreUnavailable, restockErr)
	}

	span.AddEvent("order.cancelled")
	s.publish(ctx, domorder.NewCancelledEvent(o))
	return nil
}

// AdvanceStatus moves an order along the admin edge set
// (pending→confirmed→preparing→ready→completed), one step at a time.
func (s *Service) AdvanceStatus(ctx context.Context, orderID string, next domorder.Status) error {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, domorder.ErrNotFound) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if !domorder.CanAdvance(o.Status, next) {
		return fmt.Errorf("%w: %s -> %s", domorder.ErrInvalidTransition, o.Status, next)
	}

	err = s.orders.CompareAndSetStatus(ctx, orderID, o.Status, next)
	if errors.Is(err, domorder.ErrConflict) {
		return fmt.Errorf("%w: order %s changed concurrently", domorder.ErrInvalidTransition, orderID)
	}
	if err != nil && !errors.Is(err, domorder.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return err
}

// SettlePayment applies the external settlement signal to the passive
// payment-status field. It only ever resolves a pending payment; order status
// is deliberately not consulted.
func (s *Service) SettlePayment(ctx context.Context, orderID string, status domorder.PaymentStatus) error {
	if !domorder.CanSettlePayment(domorder.PaymentPending, status) {
		return domorder.ErrInvalidStatus
	}

	err := s.orders.CompareAndSetPaymentStatus(ctx, orderID, domorder.PaymentPending, status)
	if errors.Is(err, domorder.ErrConflict) {
		return fmt.Errorf("%w: payment for order %s already settled", domorder.ErrInvalidTransition, orderID)
	}
	if err != nil && !errors.Is(err, domorder.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return err
}

// GetForUser returns the order after checking the requester owns it.
func (s *Service) GetForUser(ctx context.Context, orderID, requesterID string) (*domorder.Order, error) {
	o, err := s.get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != requesterID {
		return nil, domorder.ErrNotOwned
	}
	return o, nil
}

// Get returns the order without an ownership check; admin read path.
func (s *Service) Get(ctx context.Context, orderID string) (*domorder.Order, error) {
	return s.get(ctx, orderID)
}

func (s *Service) get(ctx context.Context, orderID string) (*domorder.Order, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, domorder.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return o, nil
}

func (s *Service) ListByUser(ctx context.Context, userID string, page, pageSize int) (*domorder.Page, error) {
	p, err := s.orders.ListByUser(ctx, userID, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return p, nil
}

func (s *Service) ListAll(ctx context.Context, filter domorder.ListFilter, page, pageSize int) (*domorder.Page, error) {
	p, err := s.orders.ListAll(ctx, filter, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return p, nil
}

func (s *Service) publish(ctx context.Context, e domoutbox.Event) {
	if s.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(pubCtx, e); err != nil {
		s.tel.Metrics().Counter(observability.MEventPublishFailed).Add(1,
			observability.L("event", e.EventName()),
		)
		logctx.FromOr(ctx, s.log).Warn("event_publish_failed",
			observability.F("event", e.EventName()),
			observability.F("error", err.Error()),
		)
	}
}
