// Package serve implements the daemon subcommand: it brings up the audio
// engine, device I/O, recorder, event bus, notification fan-out, session
// index, and command surface, and runs until interrupted. Grounded on
// RealtimeAnalysis's top-level wiring (construct every subsystem once,
// then block until the context cancels).
package serve

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/resonantfield/tapedeck/internal/commandserver"
	"github.com/resonantfield/tapedeck/internal/conf"
	"github.com/resonantfield/tapedeck/internal/devaudio"
	"github.com/resonantfield/tapedeck/internal/engine"
	"github.com/resonantfield/tapedeck/internal/errors"
	"github.com/resonantfield/tapedeck/internal/eventbus"
	"github.com/resonantfield/tapedeck/internal/logging"
	"github.com/resonantfield/tapedeck/internal/mqttpublish"
	"github.com/resonantfield/tapedeck/internal/notify"
	"github.com/resonantfield/tapedeck/internal/recorder"
	"github.com/resonantfield/tapedeck/internal/sessionstore"
	"github.com/resonantfield/tapedeck/internal/sourcecache"
	"github.com/resonantfield/tapedeck/internal/telemetry"
)

// telemetryShutdownTimeout bounds how long shutdown waits for buffered
// Sentry events to flush before giving up.
const telemetryShutdownTimeout = 2 * time.Second

// Command builds the "serve" subcommand.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the audio engine as a long-lived process",
		Long:  "Starts the audio engine, device I/O, recorder, and command surface, and blocks until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), settings)
		},
	}
}

func run(ctx context.Context, settings *conf.Settings) error {
	log := logging.ForService("serve")

	if err := telemetry.Init(settings); err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
		defer cancel()
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			log.Warn("telemetry shutdown incomplete", "error", err)
		}
	}()

	eng := engine.New(settings.Engine.SampleRate, settings.Engine.BufferFrames, settings.Engine.Channels)
	runCtx := eng.Start(ctx)

	if err := setupEventBus(settings); err != nil {
		return err
	}

	devices, err := devaudio.New(settings.Engine.SampleRate, settings.Engine.Channels)
	if err != nil {
		return err
	}
	defer func() {
		if err := devices.Close(); err != nil {
			log.Error("error closing audio devices", "error", err)
		}
	}()

	if err := devices.OpenPlayback(settings.Engine.Device.Output, settings.Engine.BufferFrames, eng.RenderBlock); err != nil {
		return err
	}
	defer devices.ClosePlayback()

	cache := sourcecache.New(4)
	rec, err := recorder.New(eng, cache, settings.Paths.RecordingsDir, settings.Engine.SampleRate, settings.Engine.Channels)
	if err != nil {
		return err
	}

	var store *sessionstore.Store
	if settings.SessionStore.Driver != "" {
		store, err = sessionstore.Open(settings)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	srv := commandserver.New(&settings.API, eng, rec, store)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(runCtx)
	}()

	log.Info("engine serving", "listen", settings.API.Listen)

	select {
	case <-runCtx.Done():
		eng.Stop()
		return nil
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("command surface exited: %w", err)
		}
		return nil
	}
}

func setupEventBus(settings *conf.Settings) error {
	eb, err := eventbus.Initialize(eventbus.DefaultConfig())
	if err != nil {
		return err
	}

	if err := eventbus.InitializeErrorsIntegration(errors.SetEventPublisher); err != nil {
		return err
	}

	if settings.MQTT.Enabled {
		client := mqttpublish.NewClient(settings)
		if err := client.Connect(context.Background()); err != nil {
			return err
		}
		if err := eb.RegisterConsumer(mqttpublish.NewConsumer(client)); err != nil {
			return err
		}
	}

	if settings.Notification.Enabled && len(settings.Notification.URLs) > 0 {
		provider, err := notify.NewShoutrrrProvider("default", settings.Notification.URLs, notify.TypeError, notify.TypeWarning)
		if err != nil {
			return err
		}
		dispatcher := notify.NewDispatcher(notify.DefaultDispatcherConfig(), provider)
		if err := eb.RegisterConsumer(notify.NewConsumer(dispatcher)); err != nil {
			return err
		}
	}

	return nil
}
