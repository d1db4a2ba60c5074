// Package events provides in-process pub/sub for derived state changes.
package events

import (
	"sync"
	"time"
)

// Event types published by the synchronization controller.
const (
	TypeSlotsUpdated      = "slots.updated"
	TypeLogsUpdated       = "logs.updated"
	TypeConnectionChanged = "connection.changed"
)

// Event is a lightweight change notification. Observers re-read the
// published snapshots rather than carrying state in the event itself.
type Event struct {
	Type string
	At   time.Time
}

// Handler reacts to an event.
type Handler func(event Event)

// Bus provides in-process pub/sub for events.
type Bus struct {
	subscribers map[string][]Handler
	mu          sync.RWMutex
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[string][]Handler)}
}

// Subscribe registers a handler for a given event type.
func (b *Bus) Subscribe(eventType string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *Bus) Publish(eventType string) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.subscribers[eventType]...)
	b.mu.RUnlock()

	event := Event{Type: eventType, At: time.Now()}
	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		handler(event)
	}
}
