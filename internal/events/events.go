// Package events carries reservation lifecycle notifications between
// components of one process.
package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Reservation lifecycle event types. The payload is the reservation as
// stored after the change.
const (
	ReservationCreated = "reservation.created"
	ReservationUpdated = "reservation.updated"
	ReservationDeleted = "reservation.deleted"
)

// Event is one published notification.
type Event struct {
	ID         string
	Type       string
	Payload    json.RawMessage
	OccurredAt time.Time
}

// Decode unmarshals the payload into out.
func (e Event) Decode(out interface{}) error {
	return json.Unmarshal(e.Payload, out)
}

// EventHandler reacts to an event.
type EventHandler func(event Event) error

// ErrorHandler is told about failing or panicking handlers.
type ErrorHandler func(event Event, err error)

type subscription struct {
	id      uint64
	handler EventHandler
}

// EventBus delivers events synchronously, in subscription order, to every
// handler of the event type.
type EventBus struct {
	mu      sync.RWMutex
	nextID  uint64
	subs    map[string][]subscription
	onError ErrorHandler
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[string][]subscription)}
}

// OnError sets the callback for failing handlers.
func (b *EventBus) OnError(h ErrorHandler) {
	b.mu.Lock()
	b.onError = h
	b.mu.Unlock()
}

// Subscribe registers handler for eventType. The returned func removes it.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs[eventType] = append(b.subs[eventType], subscription{id: id, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[eventType]
		for i, s := range list {
			if s.id == id {
				b.subs[eventType] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

// Publish runs every handler of the event type. A failing handler does not
// stop the others.
func (b *EventBus) Publish(event Event) {
	b.mu.RLock()
	subs := append([]subscription(nil), b.subs[event.Type]...)
	onError := b.onError
	b.mu.RUnlock()

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	for _, s := range subs {
		if err := deliver(s.handler, event); err != nil && onError != nil {
			onError(event, err)
		}
	}
}

// PublishJSON marshals payload and publishes it under eventType.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	b.Publish(Event{Type: eventType, Payload: data})
	return nil
}

func deliver(handler EventHandler, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked on %s: %v", event.Type, r)
		}
	}()
	return handler(event)
}
