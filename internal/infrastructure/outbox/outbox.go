package outbox

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"

	domoutbox "github.com/orderstack/storefront/internal/domain/outbox"
	"github.com/orderstack/storefront/internal/observability"
	"github.com/orderstack/storefront/internal/observability/logctx"
)

const componentOutbox = "outbox"

// ErrClosed is returned by Publish once Stop has begun.
var ErrClosed = errors.New("outbox: bus closed")

// Bus is an in-process event bus: a buffered queue drained by one dispatch
// goroutine that fans each event out to its subscribers. It is not durable;
// orchestrators never depend on delivery for correctness.
type Bus struct {
	mu        sync.RWMutex
	subs      map[string][]domoutbox.Handler
	queue     chan domoutbox.Event
	closed    bool
	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
	log       observability.Logger
}

func NewBus(logger observability.Logger) *Bus {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Bus{
		subs:  make(map[string][]domoutbox.Handler),
		queue: make(chan domoutbox.Event, 1024),
		done:  make(chan struct{}),
		log:   logger.With(observability.F("component", componentOutbox)),
	}
}

func (b *Bus) Subscribe(eventName string, h domoutbox.Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[eventName] = append(b.subs[eventName], h)
}

func (b *Bus) Start(ctx context.Context) {
	b.startOnce.Do(func() {
		bg, cancel := context.WithCancel(context.WithoutCancel(ctx))
		b.cancel = cancel
		go b.dispatchLoop(bg)
		b.log.Info("event_bus_started")
	})
}

func (b *Bus) Stop(ctx context.Context) {
	b.stopOnce.Do(func() {
		// Publishers hold the read lock while sending, so once the write lock
		// is released no send can race the close below.
		b.mu.Lock()
		b.closed = true
		b.mu.Unlock()
		close(b.queue)
		select {
		case <-b.done:
		case <-ctx.Done():
		}
		if b.cancel != nil {
			b.cancel()
		}
		b.log.Info("event_bus_stopped")
	})
}

func (b *Bus) Publish(ctx context.Context, e domoutbox.Event) error {
	if e == nil {
		return nil
	}
	logger := logctx.FromOr(ctx, b.log).With(observability.F("event", e.EventName()))

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		logger.Warn("event_enqueue_after_stop")
		return ErrClosed
	}
	select {
	case b.queue <- e:
		logger.Debug("event_enqueued")
		return nil
	case <-ctx.Done():
		logger.Warn("event_enqueue_aborted", observability.F("error", ctx.Err().Error()))
		return ctx.Err()
	}
}

func (b *Bus) dispatchLoop(ctx context.Context) {
	defer close(b.done)
	for e := range b.queue {
		b.dispatch(ctx, e)
	}
}

func (b *Bus) dispatch(ctx context.Context, e domoutbox.Event) {
	b.mu.RLock()
	handlers := append([]domoutbox.Handler(nil), b.subs[e.EventName()]...)
	b.mu.RUnlock()

	for _, h := range handlers {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					b.log.Error("event_handler_panic",
						observability.F("event", e.EventName()),
						observability.F("panic", rec),
						observability.F("stack", string(debug.Stack())),
					)
				}
			}()
			if err := h(ctx, e); err != nil {
				b.log.Warn("event_handler_failed",
					observability.F("event", e.EventName()),
					observability.F("error", err.Error()),
				)
			}
		}()
	}
}
