// Package telemetry forwards non-fatal EnhancedErrors to Sentry when the
// operator has opted in, scrubbing file paths and other identifying data
// from every event before it leaves the process.
package telemetry

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/resonantfield/tapedeck/internal/conf"
	"github.com/resonantfield/tapedeck/internal/errors"
	"github.com/resonantfield/tapedeck/internal/privacy"
)

// sentryDSN is the default project DSN baked into release builds. An
// operator-supplied conf.Settings.Telemetry.DSN always takes precedence.
const sentryDSN = "https://telemetry@o0.ingest.sentry.io/0"

var (
	sentryInitialized    atomic.Bool
	telemetryInitialized atomic.Bool
	testMode             int32
)

// Init configures Sentry from settings and wires this package as the
// errors package's telemetry reporter and privacy scrubber. Calling Init
// with settings.Telemetry.Enabled == false is a no-op beyond registering a
// disabled reporter, so downstream code can call errors.EnhancedError
// reporting unconditionally without checking a flag itself.
func Init(settings *conf.Settings) error {
	reporter := errors.NewSentryReporter(settings.Telemetry.Enabled)
	errors.SetTelemetryReporter(reporter)
	errors.SetPrivacyScrubber(ScrubMessage)

	if !settings.Telemetry.Enabled {
		return nil
	}

	dsn := settings.Telemetry.DSN
	if dsn == "" {
		dsn = sentryDSN
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		AttachStacktrace: true,
		SampleRate:       1.0,
		BeforeSend:       scrubEvent,
	})
	if err != nil {
		return fmt.Errorf("init sentry: %w", err)
	}

	sentryInitialized.Store(true)
	telemetryInitialized.Store(true)

	systemID := settings.SystemID
	sentry.ConfigureScope(func(scope *sentry.Scope) {
		if systemID != "" {
			scope.SetTag("system_id", systemID)
		}
	})

	return nil
}

// scrubEvent removes identifying data from an event's message and request
// URL before it is sent, as a last line of defense on top of the
// per-message ScrubMessage calls already applied by error reporting.
func scrubEvent(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	event.Message = ScrubMessage(event.Message)
	if event.Request.URL != "" {
		event.Request.URL = privacy.AnonymizeURL(event.Request.URL)
	}
	return event
}

// IsTelemetryEnabled reports whether telemetry capture is currently active,
// either because Init configured a real Sentry client or because test mode
// was enabled via EnableTestMode.
func IsTelemetryEnabled() bool {
	if atomic.LoadInt32(&testMode) == 1 {
		return true
	}
	return telemetryInitialized.Load()
}

// UpdateTelemetryEnabled recomputes the cached enabled state. Exists
// because test mode flips global state outside of Init.
func UpdateTelemetryEnabled() {
	if atomic.LoadInt32(&testMode) == 1 {
		telemetryInitialized.Store(true)
	}
}

// EnableTestMode marks telemetry as enabled without requiring a live Sentry
// client, for use in tests that assert on reporter/scrubber wiring.
func EnableTestMode() {
	atomic.StoreInt32(&testMode, 1)
	UpdateTelemetryEnabled()
}

// DisableTestMode reverts EnableTestMode.
func DisableTestMode() {
	atomic.StoreInt32(&testMode, 0)
	telemetryInitialized.Store(sentryInitialized.Load())
}

// ScrubMessage removes credentials, coordinates, and file paths from a
// message before it is attached to a telemetry event.
func ScrubMessage(message string) string {
	return privacy.ScrubMessage(message)
}

// flushWithContext flushes any buffered Sentry events, bounding the wait by
// ctx rather than a fixed duration so callers in a shutdown path can use
// whatever budget remains.
func flushWithContext(ctx context.Context, operation string) error {
	deadline, ok := ctx.Deadline()
	var timeout time.Duration
	if ok {
		timeout = time.Until(deadline)
	} else {
		timeout = 2 * time.Second
	}

	done := make(chan bool, 1)
	go func() {
		done <- sentry.Flush(timeout)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("flush %s: %w", operation, ctx.Err())
	case ok := <-done:
		if !ok {
			return fmt.Errorf("flush %s: timed out", operation)
		}
		return nil
	}
}

// Shutdown flushes pending events and should be called once, during process
// shutdown, after the last EnhancedError has had a chance to be reported.
func Shutdown(ctx context.Context) error {
	if !sentryInitialized.Load() {
		return nil
	}
	return flushWithContext(ctx, "shutdown")
}
