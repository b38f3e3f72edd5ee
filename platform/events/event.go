// Package events carries in-process notifications between desk modules.
// Workflow, clients and auth publish after their transactions commit;
// the notification module subscribes and fans events out to browsers.
package events

import (
	"context"
	"time"
)

// Event is anything published on the bus. The name selects subscribers.
type Event interface {
	EventName() string
	OccurredAt() time.Time
}

// BaseEvent stamps an event with the moment it was raised.
type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// NewBaseEvent stamps an event in UTC so every module reports the same clock.
func NewBaseEvent() BaseEvent {
	return BaseEvent{Timestamp: time.Now().UTC()}
}

// Handler reacts to a published event. Returned errors are logged by the bus
// and never reach the publisher.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc lets a plain function subscribe.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Publisher is the side services write to. Publishing never blocks on
// subscribers and never fails the operation that raised the event.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// Bus adds subscription, used when modules are wired at startup.
type Bus interface {
	Publisher
	Subscribe(eventName string, handler Handler)
}
