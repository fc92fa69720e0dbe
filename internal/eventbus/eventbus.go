package eventbus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/resonantfield/tapedeck/internal/logging"
)

// EventBus fans error events out to registered consumers (mqttpublish,
// notify, telemetry) from a fixed worker pool, dropping events rather than
// blocking the publisher when consumers fall behind.
type EventBus struct {
	eventChan chan ErrorEvent

	bufferSize int
	workers    int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	initialized atomic.Bool
	running     atomic.Bool

	mu        sync.Mutex
	consumers []EventConsumer

	dedup *ErrorDeduplicator
	stats EventBusStats

	logger *slog.Logger
}

var (
	globalEventBus     *EventBus
	globalMutex        sync.Mutex
	hasActiveConsumers atomic.Bool
)

// Config controls event bus sizing.
type Config struct {
	BufferSize int
	Workers    int
	Enabled    bool
	Dedup      *DeduplicationConfig // nil uses DefaultDeduplicationConfig
}

// DefaultConfig returns the bus settings used when no config is supplied.
func DefaultConfig() *Config {
	return &Config{
		BufferSize: 4096,
		Workers:    2,
		Enabled:    true,
	}
}

// Initialize creates or returns the global event bus instance. Calling it
// more than once is safe; the first call wins.
func Initialize(config *Config) (*EventBus, error) {
	globalMutex.Lock()
	defer globalMutex.Unlock()

	if globalEventBus != nil {
		return globalEventBus, nil
	}

	if config == nil {
		config = DefaultConfig()
	}
	if !config.Enabled {
		return nil, nil
	}

	ctx, cancel := context.WithCancel(context.Background())

	logger := logging.ForService("eventbus")
	eb := &EventBus{
		eventChan:  make(chan ErrorEvent, config.BufferSize),
		bufferSize: config.BufferSize,
		workers:    config.Workers,
		ctx:        ctx,
		cancel:     cancel,
		consumers:  make([]EventConsumer, 0),
		dedup:      NewErrorDeduplicator(config.Dedup, logger.With("component", "deduplicator")),
		logger:     logger,
	}
	eb.initialized.Store(true)
	globalEventBus = eb

	eb.logger.Info("event bus initialized", "buffer_size", config.BufferSize, "workers", config.Workers)
	return eb, nil
}

// GetEventBus returns the global event bus, or nil if never initialized.
func GetEventBus() *EventBus {
	globalMutex.Lock()
	defer globalMutex.Unlock()
	return globalEventBus
}

// IsInitialized reports whether the global bus has been created.
func IsInitialized() bool {
	globalMutex.Lock()
	defer globalMutex.Unlock()
	return globalEventBus != nil && globalEventBus.initialized.Load()
}

// HasActiveConsumers reports whether any consumer has ever registered,
// letting publishers skip event construction entirely when nobody is
// listening.
func HasActiveConsumers() bool {
	return hasActiveConsumers.Load()
}

// RegisterConsumer adds consumer to the fan-out list, starting the worker
// pool on the first registration.
func (eb *EventBus) RegisterConsumer(consumer EventConsumer) error {
	if eb == nil {
		return fmt.Errorf("event bus not initialized")
	}

	eb.mu.Lock()
	defer eb.mu.Unlock()

	for _, existing := range eb.consumers {
		if existing.Name() == consumer.Name() {
			return fmt.Errorf("consumer %s already registered", consumer.Name())
		}
	}

	eb.consumers = append(eb.consumers, consumer)
	hasActiveConsumers.Store(true)

	eb.logger.Info("registered event consumer",
		"consumer", consumer.Name(),
		"supports_batching", consumer.SupportsBatching(),
	)

	if len(eb.consumers) == 1 && !eb.running.Load() {
		eb.start()
	}
	return nil
}

// TryPublish attempts a non-blocking send of event, returning false if the
// buffer is full or the bus has no consumers.
func (eb *EventBus) TryPublish(event ErrorEvent) bool {
	if eb == nil || !eb.initialized.Load() || !eb.running.Load() {
		return false
	}

	eb.mu.Lock()
	hasConsumers := len(eb.consumers) > 0
	eb.mu.Unlock()
	if !hasConsumers {
		return false
	}

	if !eb.dedup.ShouldProcess(event) {
		atomic.AddUint64(&eb.stats.EventsSuppressed, 1)
		return false
	}

	select {
	case eb.eventChan <- event:
		atomic.AddUint64(&eb.stats.EventsReceived, 1)
		return true
	default:
		atomic.AddUint64(&eb.stats.EventsDropped, 1)
		if eb.logger != nil {
			eb.logger.Debug("event dropped due to full buffer",
				"component", event.GetComponent(), "category", event.GetCategory())
		}
		return false
	}
}

func (eb *EventBus) start() {
	if eb.running.Swap(true) {
		return
	}
	eb.logger.Info("starting event bus workers", "count", eb.workers)
	for i := 0; i < eb.workers; i++ {
		eb.wg.Add(1)
		go eb.worker(i)
	}
}

func (eb *EventBus) worker(id int) {
	defer eb.wg.Done()
	logger := eb.logger.With("worker_id", id)

	for {
		select {
		case <-eb.ctx.Done():
			return
		case event, ok := <-eb.eventChan:
			if !ok {
				return
			}
			eb.processEvent(event, logger)
		}
	}
}

func (eb *EventBus) processEvent(event ErrorEvent, logger *slog.Logger) {
	eb.mu.Lock()
	consumers := make([]EventConsumer, len(eb.consumers))
	copy(consumers, eb.consumers)
	eb.mu.Unlock()

	for _, consumer := range consumers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					atomic.AddUint64(&eb.stats.ConsumerErrors, 1)
					logger.Error("consumer panicked",
						"consumer", consumer.Name(), "panic", r,
						"component", event.GetComponent(), "category", event.GetCategory())
				}
			}()

			if err := consumer.ProcessEvent(event); err != nil {
				atomic.AddUint64(&eb.stats.ConsumerErrors, 1)
				logger.Error("consumer error",
					"consumer", consumer.Name(), "error", err,
					"component", event.GetComponent(), "category", event.GetCategory())
			} else {
				atomic.AddUint64(&eb.stats.EventsProcessed, 1)
			}
		}()
	}
}

// Shutdown stops accepting new events and waits up to timeout for in-flight
// ones to drain.
func (eb *EventBus) Shutdown(timeout time.Duration) error {
	if eb == nil || !eb.initialized.Load() {
		return nil
	}

	eb.logger.Info("shutting down event bus", "timeout", timeout)
	eb.running.Store(false)
	eb.cancel()
	eb.dedup.Shutdown()

	done := make(chan struct{})
	go func() {
		eb.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		eb.logger.Info("event bus shutdown complete")
		return nil
	case <-time.After(timeout):
		eb.logger.Warn("event bus shutdown timeout exceeded")
		return fmt.Errorf("shutdown timeout exceeded")
	}
}

// GetStats returns a snapshot of bus throughput counters.
func (eb *EventBus) GetStats() EventBusStats {
	if eb == nil {
		return EventBusStats{}
	}
	return EventBusStats{
		EventsReceived:   atomic.LoadUint64(&eb.stats.EventsReceived),
		EventsSuppressed: atomic.LoadUint64(&eb.stats.EventsSuppressed),
		EventsProcessed:  atomic.LoadUint64(&eb.stats.EventsProcessed),
		EventsDropped:    atomic.LoadUint64(&eb.stats.EventsDropped),
		ConsumerErrors:   atomic.LoadUint64(&eb.stats.ConsumerErrors),
	}
}
