package engine

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/klauspost/cpuid/v2"

	"github.com/resonantfield/tapedeck/internal/logging"
	"github.com/resonantfield/tapedeck/internal/project"
)

// Engine owns every realtime-safe piece of the audio graph: the swappable
// Graph snapshot, the mixer, transport, meter bus, command bus, and the
// background job queue, plus the control-thread project/history pair that
// feeds them. It is the thing a device callback and the command surface
// both hold a reference to. Grounded on RealtimeAnalysis's top-level
// wiring in the teacher (datastore + processor + buffer manager +
// everything else constructed once and threaded through the rest of the
// run), generalized from "bird detection pipeline" to "audio graph".
type Engine struct {
	Project *project.Project
	History *project.History

	Graph      *GraphHolder
	Mixer      *Mixer
	Transport  *Transport
	Meters     *MeterBus
	Commands   *CommandBus
	Pool       *BufferPool
	Jobs       *JobQueue
	SampleRate int

	logger *slog.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New constructs an Engine for a fresh project at the given sample rate and
// block size. The returned Engine's Graph holds an empty snapshot until
// RebuildGraph is called after the project gains tracks.
func New(sampleRate, blockSize, channels int) *Engine {
	logger := logging.ForService("engine")
	if logger == nil {
		logger = slog.Default()
	}

	p := project.New(sampleRate)
	pool := NewBufferPool(channels, blockSize)
	meters := NewMeterBus()

	logger.Info("engine starting",
		"sample_rate", sampleRate, "block_size", blockSize, "channels", channels,
		"cpu", cpuid.CPU.BrandName, "logical_cores", cpuid.CPU.LogicalCores,
		"avx2", cpuid.CPU.Has(cpuid.AVX2), "neon", cpuid.CPU.Has(cpuid.ASIMD))

	return &Engine{
		Project:    p,
		History:    project.NewHistory(),
		Graph:      NewGraphHolder(sampleRate),
		Mixer:      NewMixer(pool, meters),
		Transport:  NewTransport(sampleRate),
		Meters:     meters,
		Commands:   NewCommandBus(),
		Pool:       pool,
		Jobs:       NewJobQueue(),
		SampleRate: sampleRate,
		logger:     logger.With("component", "bootstrap"),
	}
}

// RebuildGraph recomputes the Graph snapshot from the current project state
// and publishes it. Call after any structural command (add/remove track,
// add/remove clip, change EQ/compressor shape) drains off the command bus.
func (e *Engine) RebuildGraph() error {
	g, err := BuildGraph(e.Project, e.SampleRate)
	if err != nil {
		return err
	}
	e.Graph.Store(g)
	e.Transport.SetEndFrame(uint64(e.Project.MaxEndTime() * float64(e.SampleRate)))
	return nil
}

// RenderBlock drains pending commands, rebuilds the graph if any structural
// command applied, advances the transport, and renders one block into out.
// This is the single entry point a device callback or the offline renderer
// calls once per block; it never blocks and never allocates once the
// engine is warmed up (the command drain only allocates if commands were
// actually pending).
func (e *Engine) RenderBlock(out []float32) error {
	applied, err := e.Commands.DrainInto(e.History, e.Project)
	if err != nil {
		e.logger.Warn("command apply failed", "error", err)
	}
	if len(applied) > 0 {
		if err := e.RebuildGraph(); err != nil {
			return err
		}
	}

	g := e.Graph.Load()
	if e.Transport.State() == Playing || e.Transport.State() == Recording {
		e.Mixer.Render(g, e.Transport.Position(), e.SampleRate, out)
		e.Transport.Advance(uint64(len(out) / 2))
	} else {
		for i := range out {
			out[i] = 0
		}
	}
	return nil
}

// Start launches the engine's background job queue and installs a SIGINT
// handler that calls stop, mirroring the teacher's monitorCtrlC goroutine
// but driven by context cancellation rather than a raw close(quitChan), in
// keeping with this codebase's stdlib-context convention for lifecycle
// signaling.
func (e *Engine) Start(ctx context.Context) context.Context {
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.Jobs.Start(runCtx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		select {
		case <-sigCh:
			e.logger.Info("received shutdown signal")
			cancel()
		case <-runCtx.Done():
		}
	}()

	return runCtx
}

// Stop cancels the engine's context, stops the job queue, and waits for the
// signal-watcher goroutine to exit.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	e.Jobs.Stop()
	e.wg.Wait()
}
