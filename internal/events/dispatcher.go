package events

import (
	"context"
	"sync"
)

// EventHandler handles a published event.
type EventHandler func(context.Context, Event) error

// Registration identifies a subscribed handler so it can be removed.
type Registration struct {
	eventType EventType
	id        uint64
}

// Dispatcher interface allows event publication/subscription.
type Dispatcher interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType EventType, handler EventHandler) Registration
	Unsubscribe(reg Registration)
}

// inMemoryDispatcher is a simple synchronous dispatcher.
type inMemoryDispatcher struct {
	mu        sync.RWMutex
	nextID    uint64
	listeners map[EventType]map[uint64]EventHandler
}

// NewInMemoryDispatcher creates a dispatcher instance.
func NewInMemoryDispatcher() Dispatcher {
	return &inMemoryDispatcher{
		listeners: make(map[EventType]map[uint64]EventHandler),
	}
}

// Publish synchronously invokes handlers for the given event.
func (d *inMemoryDispatcher) Publish(ctx context.Context, event Event) error {
	d.mu.RLock()
	handlers := make([]EventHandler, 0, len(d.listeners[event.Type]))
	for _, handler := range d.listeners[event.Type] {
		handlers = append(handlers, handler)
	}
	d.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			// continue processing other handlers despite errors
		}
	}
	return nil
}

// Subscribe registers a handler and returns its registration token.
func (d *inMemoryDispatcher) Subscribe(eventType EventType, handler EventHandler) Registration {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	if d.listeners[eventType] == nil {
		d.listeners[eventType] = make(map[uint64]EventHandler)
	}
	d.listeners[eventType][d.nextID] = handler
	return Registration{eventType: eventType, id: d.nextID}
}

// Unsubscribe removes a handler. Removing an unknown or already removed
// registration is a no-op.
func (d *inMemoryDispatcher) Unsubscribe(reg Registration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.listeners[reg.eventType], reg.id)
}
