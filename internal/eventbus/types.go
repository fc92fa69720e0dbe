// Package eventbus provides an asynchronous event bus that decouples error
// reporting from notification and telemetry consumers, so neither a slow
// MQTT broker nor a stalled webhook can block the audio engine's own error
// path.
package eventbus

import (
	"time"
)

// ErrorEvent mirrors the shape errors.EnhancedError already exposes, so the
// errors package can hand events to this bus without importing it.
type ErrorEvent interface {
	GetComponent() string
	GetCategory() string
	GetContext() map[string]any
	GetTimestamp() time.Time
	GetError() error
	GetMessage() string
	IsReported() bool
	MarkReported()
}

// EventConsumer processes error events delivered by the bus.
type EventConsumer interface {
	Name() string
	ProcessEvent(event ErrorEvent) error
	ProcessBatch(events []ErrorEvent) error
	SupportsBatching() bool
}

// EventBusStats reports cumulative bus throughput for diagnostics.
type EventBusStats struct {
	EventsReceived   uint64
	EventsSuppressed uint64
	EventsProcessed  uint64
	EventsDropped    uint64
	ConsumerErrors   uint64
}
