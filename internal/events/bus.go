// Package events provides the in-process pub/sub bus that carries job and
// optimization lifecycle events to interested subscribers (logging, the
// WebSocket stream).
package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Event is one published occurrence. Data carries the type-specific payload.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Module    string    `json:"module"`
	Data      EventData `json:"data,omitempty"`
}

// Handler receives published events. Handlers run synchronously on the
// publisher's goroutine and must not block.
type Handler func(event *Event)

// Bus is a minimal synchronous pub/sub dispatcher. Subscriptions are
// per-event-type; a panicking handler is logged and skipped rather than
// taking down the publisher.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	log      zerolog.Logger
}

func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
		log:      log.With().Str("component", "event_bus").Logger(),
	}
}

// Subscribe registers a handler for one event type.
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Publish builds an event around the payload and dispatches it to the
// type's subscribers.
func (b *Bus) Publish(module string, data EventData) {
	if data == nil {
		return
	}
	event := &Event{
		Type:      data.EventType(),
		Timestamp: time.Now().UTC(),
		Module:    module,
		Data:      data,
	}

	b.mu.RLock()
	subscribers := make([]Handler, len(b.handlers[event.Type]))
	copy(subscribers, b.handlers[event.Type])
	b.mu.RUnlock()

	b.log.Debug().
		Str("event_type", string(event.Type)).
		Str("module", module).
		Int("subscribers", len(subscribers)).
		Msg("publishing event")

	for _, handler := range subscribers {
		b.dispatch(event, handler)
	}
}

func (b *Bus) dispatch(event *Event, handler Handler) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().
				Interface("panic", r).
				Str("event_type", string(event.Type)).
				Msg("event handler panicked")
		}
	}()
	handler(event)
}
