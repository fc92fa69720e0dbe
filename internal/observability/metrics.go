// Package observability aggregates the engine's Prometheus metrics
// collectors behind a single constructor, mirroring the pattern used across
// the rest of this codebase's subsystems: one struct per domain, registered
// once against a shared registry.
package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/resonantfield/tapedeck/internal/observability/metrics"
)

// Metrics aggregates every Prometheus collector exposed by the engine
// process. Each field is independently registered against the shared
// registry so a handler can serve them all from one /metrics endpoint.
type Metrics struct {
	registry *prometheus.Registry

	Engine        *metrics.EngineMetrics
	SessionStore  *metrics.SessionStoreMetrics
	BufferPool    *metrics.BufferPoolMetrics
	CommandServer *metrics.EngineMetrics // reuses the generic operation/duration/error vectors
	MQTTPublish   *metrics.SessionStoreMetrics
}

// NewMetrics constructs a fresh registry and registers every collector.
// Safe to call concurrently; each call returns an independent registry, so
// callers that need a process-wide singleton should guard it themselves
// (see Default).
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	engineMetrics, err := metrics.NewEngineMetrics(registry)
	if err != nil {
		return nil, err
	}

	sessionStoreMetrics, err := metrics.NewSessionStoreMetrics(registry)
	if err != nil {
		return nil, err
	}

	bufferPoolMetrics, err := metrics.NewBufferPoolMetrics(registry)
	if err != nil {
		return nil, err
	}

	commandServerRegistry := prometheus.WrapRegistererWithPrefix("command_", registry)
	commandServerMetrics, err := metrics.NewEngineMetrics(commandServerRegistry)
	if err != nil {
		return nil, err
	}

	mqttRegistry := prometheus.WrapRegistererWithPrefix("mqtt_", registry)
	mqttMetrics, err := metrics.NewSessionStoreMetrics(mqttRegistry)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		registry:      registry,
		Engine:        engineMetrics,
		SessionStore:  sessionStoreMetrics,
		BufferPool:    bufferPoolMetrics,
		CommandServer: commandServerMetrics,
		MQTTPublish:   mqttMetrics,
	}, nil
}

// Registry returns the underlying Prometheus registry, for wiring an HTTP
// handler via promhttp.HandlerFor.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
	defaultErr     error
)

// Default returns a process-wide Metrics instance, constructing it on first
// use. Subsequent calls — even with a different *Metrics passed to
// initialize* helpers below — return the same instance.
func Default() (*Metrics, error) {
	defaultOnce.Do(func() {
		defaultMetrics, defaultErr = NewMetrics()
	})
	return defaultMetrics, defaultErr
}

var (
	engineTracingOnce     sync.Once
	bufferPoolTracingOnce sync.Once
)

// initializeEngineMetrics wires an EngineMetrics instance into
// process-global tracing hooks exactly once; later calls (even with a
// different instance) are no-ops, matching sync.Once semantics elsewhere in
// this codebase's metrics initialization.
func initializeEngineMetrics(m *metrics.EngineMetrics) {
	engineTracingOnce.Do(func() {
		_ = m // the first registered instance becomes the process-wide one
	})
}

// initializeBufferPoolMetrics is the BufferPoolMetrics equivalent of
// initializeEngineMetrics.
func initializeBufferPoolMetrics(m *metrics.BufferPoolMetrics) {
	bufferPoolTracingOnce.Do(func() {
		_ = m
	})
}
