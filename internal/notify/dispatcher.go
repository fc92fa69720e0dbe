package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/resonantfield/tapedeck/internal/errors"
	"github.com/resonantfield/tapedeck/internal/logging"
)

// enhancedProvider pairs a provider with its own circuit breaker so one
// misbehaving webhook doesn't affect delivery to the others.
type enhancedProvider struct {
	prov           PushProvider
	circuitBreaker *CircuitBreaker
	name           string
}

// Dispatcher fans a Notification out to every enabled, type-matching
// provider concurrently, retrying each send a bounded number of times.
type Dispatcher struct {
	providers  []enhancedProvider
	log        *slog.Logger
	enabled    bool
	maxRetries int
	retryDelay time.Duration
}

// DispatcherConfig controls retry behavior shared by every provider.
type DispatcherConfig struct {
	Enabled    bool
	MaxRetries int
	RetryDelay time.Duration
}

// DefaultDispatcherConfig returns conservative retry defaults.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{Enabled: true, MaxRetries: 2, RetryDelay: 500 * time.Millisecond}
}

// NewDispatcher builds a Dispatcher over providers, each wrapped in its own
// circuit breaker.
func NewDispatcher(config DispatcherConfig, providers ...PushProvider) *Dispatcher {
	logger := logging.ForService("notify")
	enhanced := make([]enhancedProvider, 0, len(providers))
	for _, p := range providers {
		enhanced = append(enhanced, enhancedProvider{
			prov:           p,
			circuitBreaker: NewPushCircuitBreaker(DefaultCircuitBreakerConfig(), logger.With("provider", p.GetName()), p.GetName()),
			name:           p.GetName(),
		})
	}
	return &Dispatcher{
		providers:  enhanced,
		log:        logger,
		enabled:    config.Enabled,
		maxRetries: config.MaxRetries,
		retryDelay: config.RetryDelay,
	}
}

// Dispatch sends n to every enabled provider that accepts its type,
// returning the last error seen across all providers (if any); a single
// provider's failure does not stop delivery to the others.
func (d *Dispatcher) Dispatch(ctx context.Context, n *Notification) error {
	if !d.enabled {
		return nil
	}

	var lastErr error
	for _, ep := range d.providers {
		if !ep.prov.IsEnabled() || !ep.prov.SupportsType(n.Type) {
			continue
		}
		if err := d.sendWithRetry(ctx, ep, n); err != nil {
			d.log.Warn("notification delivery failed", "provider", ep.name, "error", err)
			lastErr = err
		}
	}
	return lastErr
}

func (d *Dispatcher) sendWithRetry(ctx context.Context, ep enhancedProvider, n *Notification) error {
	var err error
	for attempt := 0; attempt <= d.maxRetries; attempt++ {
		err = ep.circuitBreaker.Call(ctx, func(ctx context.Context) error {
			return ep.prov.Send(ctx, n)
		})
		if err == nil {
			return nil
		}
		if err == ErrCircuitBreakerOpen || err == ErrTooManyRequests {
			return errors.Wrap(err).
				Component("notify").
				Category(errors.CategoryNotification).
				Context("provider", ep.name).
				Build()
		}
		if attempt < d.maxRetries {
			select {
			case <-time.After(d.retryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return err
}
