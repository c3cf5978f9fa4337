package events

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// EventHandler reacts to one published ticket event.
type EventHandler func(context.Context, Event) error

// Dispatcher fans ticket events out to subscribed handlers.
type Dispatcher interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType EventType, handler EventHandler)
}

// memoryDispatcher delivers events synchronously, in subscription order.
// One failing subscriber never blocks delivery to the others.
type memoryDispatcher struct {
	mu       sync.RWMutex
	handlers map[EventType][]EventHandler
	logger   *zap.Logger
}

// NewInMemoryDispatcher creates a synchronous in-process dispatcher.
func NewInMemoryDispatcher(logger *zap.Logger) Dispatcher {
	return &memoryDispatcher{
		handlers: make(map[EventType][]EventHandler),
		logger:   logger,
	}
}

// Publish invokes every handler subscribed to the event's type. Handler
// failures are logged and delivery continues.
func (d *memoryDispatcher) Publish(ctx context.Context, event Event) error {
	d.mu.RLock()
	handlers := append([]EventHandler(nil), d.handlers[event.Type]...)
	d.mu.RUnlock()

	for _, handle := range handlers {
		if err := handle(ctx, event); err != nil {
			d.logger.Error("event handler failed",
				zap.String("event_type", string(event.Type)),
				zap.String("event_id", event.ID),
				zap.String("ticket_id", event.TicketID),
				zap.Error(err))
		}
	}
	return nil
}

// Subscribe registers a handler for the given event type.
func (d *memoryDispatcher) Subscribe(eventType EventType, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = append(d.handlers[eventType], handler)
}
