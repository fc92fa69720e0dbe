package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
)

// MockTransport is a sentry.Transport that stores events in memory instead
// of sending them, so tests can assert on what would have been reported
// without a live Sentry project or network access.
type MockTransport struct {
	mu       sync.RWMutex
	events   []*sentry.Event
	disabled bool
	delay    time.Duration
}

// NewMockTransport returns an empty, enabled MockTransport.
func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

// Configure implements sentry.Transport; the mock needs no client options.
func (m *MockTransport) Configure(_ sentry.ClientOptions) {}

// SendEvent records event unless the transport has been disabled.
func (m *MockTransport) SendEvent(event *sentry.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disabled {
		return
	}
	m.events = append(m.events, event)
}

// Flush implements sentry.Transport.
func (m *MockTransport) Flush(timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return m.FlushWithContext(ctx)
}

// FlushWithContext reports success unless ctx is already done, simulating
// an instantaneous flush subject to the delay configured by SetDelay.
func (m *MockTransport) FlushWithContext(ctx context.Context) bool {
	m.mu.RLock()
	delay := m.delay
	m.mu.RUnlock()

	if delay == 0 {
		select {
		case <-ctx.Done():
			return false
		default:
			return true
		}
	}

	select {
	case <-ctx.Done():
		return false
	case <-time.After(delay):
		return true
	}
}

// SetDisabled toggles whether SendEvent records incoming events.
func (m *MockTransport) SetDisabled(disabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disabled = disabled
}

// SetDelay configures an artificial delay for FlushWithContext, for tests
// exercising cancellation behavior.
func (m *MockTransport) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// Clear discards every recorded event.
func (m *MockTransport) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
}

// GetEventCount returns the number of recorded events.
func (m *MockTransport) GetEventCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events)
}

// GetEvents returns a copy of every recorded event.
func (m *MockTransport) GetEvents() []*sentry.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*sentry.Event, len(m.events))
	copy(out, m.events)
	return out
}

// GetEventMessages returns the Message field of every recorded event, for
// compact failure output in test assertions.
func (m *MockTransport) GetEventMessages() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.events))
	for i, e := range m.events {
		out[i] = e.Message
	}
	return out
}

// GetLastEvent returns the most recently recorded event, or nil if none.
func (m *MockTransport) GetLastEvent() *sentry.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.events) == 0 {
		return nil
	}
	return m.events[len(m.events)-1]
}

// FindEventByMessage returns the first recorded event with the given exact
// message, or nil if none matches.
func (m *MockTransport) FindEventByMessage(message string) *sentry.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.events {
		if e.Message == message {
			return e
		}
	}
	return nil
}

// WaitForEventCount blocks until at least n events have been recorded or
// timeout elapses, returning whether the count was reached.
func (m *MockTransport) WaitForEventCount(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if m.GetEventCount() >= n {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
}

// EventSummary is a flattened, easy-to-assert-on view of a sentry.Event.
type EventSummary struct {
	Message string
	Level   string
	Tags    map[string]string
	Extra   map[string]interface{}
}

// GetEventSummaries returns a summary of every recorded event, in the order
// they were recorded.
func (m *MockTransport) GetEventSummaries() []EventSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]EventSummary, len(m.events))
	for i, e := range m.events {
		out[i] = EventSummary{
			Message: e.Message,
			Level:   string(e.Level),
			Tags:    e.Tags,
			Extra:   e.Extra,
		}
	}
	return out
}

