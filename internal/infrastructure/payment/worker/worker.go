package worker

import (
	"context"
	"errors"

	"github.com/orderstack/storefront/internal/application/ordering"
	domorder "github.com/orderstack/storefront/internal/domain/order"
	domoutbox "github.com/orderstack/storefront/internal/domain/outbox"
	"github.com/orderstack/storefront/internal/observability"
	"github.com/orderstack/storefront/internal/observability/logctx"
)

// Worker applies external payment settlement signals to orders. The payment
// field is passive: whatever the gateway webhook reports is recorded, guarded
// only by the settle-once compare-and-set.
type Worker struct {
	subscriber domoutbox.Subscriber
	service    *ordering.Service
	log        observability.Logger
}

func New(subscriber domoutbox.Subscriber, service *ordering.Service, logger observability.Logger) *Worker {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Worker{
		subscriber: subscriber,
		service:    service,
		log:        logger.With(observability.F("component", "payment_worker")),
	}
}

func (w *Worker) Start() {
	w.subscriber.Subscribe(domorder.PaymentSettledEvent{}.EventName(), w.handleSettled)
}

func (w *Worker) handleSettled(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domorder.PaymentSettledEvent)
	if !ok {
		return nil
	}
	logger := logctx.FromOr(ctx, w.log).With(
		observability.F("order_id", evt.OrderID),
		observability.F("payment_status", string(evt.Status)),
	)

	err := w.service.SettlePayment(ctx, evt.OrderID, evt.Status)
	switch {
	case err == nil:
		logger.Info("payment_settled")
		return nil
	case errors.Is(err, domorder.ErrInvalidTransition):
		// Duplicate webhook delivery; the first settlement won.
		logger.Warn("payment_settle_duplicate")
		return nil
	case errors.Is(err, domorder.ErrNotFound):
		logger.Warn("payment_settle_unknown_order")
		return nil
	default:
		logger.Error("payment_settle_failed", observability.F("error", err.Error()))
		return err
	}
}
