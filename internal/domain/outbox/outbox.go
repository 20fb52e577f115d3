package outbox

import "context"

// Event is a named domain event.
type Event interface {
	EventName() string
}

// Handler processes one delivered event.
type Handler func(ctx context.Context, e Event) error

// Publisher fans an event out to interested subscribers. Delivery is
// best-effort; orchestrator correctness never depends on it.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Subscriber registers a handler for an event name.
type Subscriber interface {
	Subscribe(eventName string, h Handler)
}
