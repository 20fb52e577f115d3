package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	domoutbox "github.com/orderstack/storefront/internal/domain/outbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEvent struct{ name string }

func (e testEvent) EventName() string { return e.name }

func TestBusDeliversToAllSubscribers(t *testing.T) {
	ctx := context.Background()
	bus := NewBus(nil)

	var mu sync.Mutex
	var got []string
	handler := func(tag string) domoutbox.Handler {
		return func(ctx context.Context, e domoutbox.Event) error {
			mu.Lock()
			got = append(got, tag+":"+e.EventName())
			mu.Unlock()
			return nil
		}
	}
	bus.Subscribe("order.placed", handler("a"))
	bus.Subscribe("order.placed", handler("b"))
	bus.Subscribe("order.cancelled", handler("c"))

	bus.Start(ctx)
	require.NoError(t, bus.Publish(ctx, testEvent{name: "order.placed"}))
	require.NoError(t, bus.Publish(ctx, testEvent{name: "order.cancelled"}))

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	bus.Stop(stopCtx)

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"a:order.placed", "b:order.placed", "c:order.cancelled"}, got)
}

func TestBusDrainsQueueOnStop(t *testing.T) {
	ctx := context.Background()
	bus := NewBus(nil)

	var mu sync.Mutex
	n := 0
	bus.Subscribe("e", func(ctx context.Context, e domoutbox.Event) error {
		mu.Lock()
		n++
		mu.Unlock()
		return nil
	})

	bus.Start(ctx)
	for i := 0; i < 50; i++ {
		require.NoError(t, bus.Publish(ctx, testEvent{name: "e"}))
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	bus.Stop(stopCtx)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 50, n, "events already enqueued are delivered before shutdown")
}

func TestBusSurvivesHandlerPanicAndError(t *testing.T) {
	ctx := context.Background()
	bus := NewBus(nil)

	var mu sync.Mutex
	delivered := 0
	bus.Subscribe("e", func(ctx context.Context, e domoutbox.Event) error {
		panic("handler bug")
	})
	bus.Subscribe("e", func(ctx context.Context, e domoutbox.Event) error {
		return errors.New("handler failure")
	})
	bus.Subscribe("e", func(ctx context.Context, e domoutbox.Event) error {
		mu.Lock()
		delivered++
		mu.Unlock()
		return nil
	})

	bus.Start(ctx)
	require.NoError(t, bus.Publish(ctx, testEvent{name: "e"}))
	require.NoError(t, bus.Publish(ctx, testEvent{name: "e"}))

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	bus.Stop(stopCtx)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, delivered, "a panicking or failing handler must not block the rest")
}

func TestPublishNilEventIsNoop(t *testing.T) {
	bus := NewBus(nil)
	require.NoError(t, bus.Publish(context.Background(), nil))
}

func TestPublishAfterStopFailsWithoutPanic(t *testing.T) {
	ctx := context.Background()
	bus := NewBus(nil)
	bus.Start(ctx)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	bus.Stop(stopCtx)

	err := bus.Publish(ctx, testEvent{name: "e"})
	require.ErrorIs(t, err, ErrClosed)
}
