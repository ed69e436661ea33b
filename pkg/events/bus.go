package events

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event is a lightweight domain event.
type Event struct {
	Type       string
	Key        string
	Payload    interface{}
	OccurredAt time.Time
}

// Handler reacts to an event. Handlers must not block; long work belongs on a queue.
type Handler func(Event)

// Bus provides in-process publish/subscribe keyed by event type.
// The wildcard type "*" receives every event.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]Handler
	logger      *zap.Logger
}

// Wildcard subscribes to all event types.
const Wildcard = "*"

// NewBus constructs an empty bus.
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{subscribers: make(map[string][]Handler), logger: logger}
}

// Subscribe registers a handler for a given event type.
func (b *Bus) Subscribe(eventType string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish delivers the event to subscribers synchronously. A panicking
// subscriber is logged and does not affect the publisher or other subscribers.
func (b *Bus) Publish(event Event) {
	if b == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	b.mu.RLock()
	handlers := append([]Handler(nil), b.subscribers[event.Type]...)
	handlers = append(handlers, b.subscribers[Wildcard]...)
	b.mu.RUnlock()

	for _, handler := range handlers {
		b.dispatch(handler, event)
	}
}

func (b *Bus) dispatch(handler Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event subscriber panicked",
				zap.String("type", event.Type),
				zap.String("key", event.Key),
				zap.String("panic", fmt.Sprint(r)))
		}
	}()
	handler(event)
}
