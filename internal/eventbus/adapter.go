package eventbus

import "github.com/resonantfield/tapedeck/internal/errors"

// EventPublisherAdapter satisfies errors.EventPublisher by forwarding to an
// EventBus, letting the errors package publish events without importing
// this package.
type EventPublisherAdapter struct {
	eventBus *EventBus
}

// NewEventPublisherAdapter wraps eventBus as an errors.EventPublisher.
func NewEventPublisherAdapter(eventBus *EventBus) *EventPublisherAdapter {
	return &EventPublisherAdapter{eventBus: eventBus}
}

// TryPublish type-asserts event to ErrorEvent and forwards it to the bus.
func (a *EventPublisherAdapter) TryPublish(event any) bool {
	if !HasActiveConsumers() || a.eventBus == nil {
		return false
	}
	errorEvent, ok := event.(ErrorEvent)
	if !ok {
		return false
	}
	return a.eventBus.TryPublish(errorEvent)
}

// InitializeErrorsIntegration wires the global event bus into the errors
// package's publisher hook. Callers normally pass errors.SetEventPublisher.
func InitializeErrorsIntegration(setPublisher func(errors.EventPublisher)) error {
	eb := GetEventBus()
	if eb == nil {
		return nil
	}
	setPublisher(NewEventPublisherAdapter(eb))
	return nil
}
