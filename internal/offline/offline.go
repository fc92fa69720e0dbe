// Package offline renders a project to a WAV file as fast as the machine
// allows, rather than in real time through a device callback. Grounded on
// the teacher's analysis/file.go, which reuses the realtime detection
// pipeline for file-mode analysis via a producer/worker/collector channel
// pipeline (chunkChan/resultChan/errorChan/doneChan) plus a ticker-driven
// progress monitor; this package keeps that concurrency shape and swaps
// "decode file, analyze chunk, collect notes" for "render engine block,
// write samples, track progress".
package offline

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/resonantfield/tapedeck/internal/engine"
	"github.com/resonantfield/tapedeck/internal/errors"
	"github.com/resonantfield/tapedeck/internal/logging"
)

const bitDepth = 16

// Progress reports offline render progress, delivered at most once per
// tick rather than once per block, mirroring monitorProgress's throttled
// logging of chunk counts in the teacher.
type Progress struct {
	FramesRendered uint64
	TotalFrames    uint64
	Elapsed        time.Duration
}

// block is one rendered unit of audio on its way to the writer goroutine,
// the render-side analog of the teacher's audioChunk.
type block struct {
	samples []float32
}

// Options configures a Render call.
type Options struct {
	BlockFrames    int
	ProgressEvery  time.Duration
	OnProgress     func(Progress)
}

// Render drives eng.RenderBlock from startFrame to endFrame (exclusive),
// streaming the rendered audio to a 16-bit WAV file at outputPath. It
// returns early with a partial file if ctx is cancelled or an error
// occurs, mirroring FileAnalysis's "write partial results on error"
// behavior adapted to "keep whatever was rendered so far".
func Render(ctx context.Context, eng *engine.Engine, outputPath string, startFrame, endFrame uint64, channels int, opts Options) error {
	if endFrame <= startFrame {
		return errors.New(errors.NewStd("render range must have endFrame > startFrame")).
			Component("offline").
			Category(errors.CategoryValidation).
			Build()
	}
	if opts.BlockFrames <= 0 {
		opts.BlockFrames = 2048
	}
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = time.Second
	}

	logger := logging.ForService("offline")
	if logger == nil {
		logger = slog.Default()
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return errors.Wrap(err).
			Component("offline").
			Category(errors.CategoryFileIO).
			Context("path", outputPath).
			Build()
	}
	defer file.Close()

	encoder := wav.NewEncoder(file, eng.SampleRate, bitDepth, channels, 1)

	blockChan := make(chan block, 4)
	errChan := make(chan error, 1)
	doneChan := make(chan struct{})
	var closeOnce sync.Once
	shutdown := func() { closeOnce.Do(func() { close(doneChan) }) }
	defer shutdown()

	totalFrames := endFrame - startFrame
	var framesRendered atomic.Uint64

	eng.Transport.Seek(int64(startFrame))
	if err := eng.Transport.Play(); err != nil {
		return errors.Wrap(err).
			Component("offline").
			Category(errors.CategoryTransport).
			Build()
	}

	go renderProducer(ctx, eng, startFrame, endFrame, opts.BlockFrames, channels, blockChan, errChan)
	go monitorProgress(ctx, doneChan, opts.ProgressEvery, totalFrames, &framesRendered, opts.OnProgress)

	startTime := time.Now()
	for {
		select {
		case <-ctx.Done():
			shutdown()
			_ = encoder.Close()
			return errors.Wrap(ctx.Err()).
				Component("offline").
				Category(errors.CategoryCancellation).
				Build()
		case err := <-errChan:
			shutdown()
			_ = encoder.Close()
			return errors.Wrap(err).
				Component("offline").
				Category(errors.CategoryProcessing).
				Build()
		case b, ok := <-blockChan:
			if !ok {
				shutdown()
				if ctx.Err() != nil {
					_ = encoder.Close()
					return errors.Wrap(ctx.Err()).
						Component("offline").
						Category(errors.CategoryCancellation).
						Build()
				}
				if err := encoder.Close(); err != nil {
					return errors.Wrap(err).
						Component("offline").
						Category(errors.CategoryFileIO).
						Build()
				}
				logger.Info("offline render complete",
					"output", outputPath, "frames", framesRendered.Load(), "elapsed", time.Since(startTime))
				return nil
			}
			if err := writeBlock(encoder, b.samples, channels); err != nil {
				shutdown()
				_ = encoder.Close()
				return err
			}
			framesRendered.Add(uint64(len(b.samples) / channels))
		}
	}
}

func renderProducer(ctx context.Context, eng *engine.Engine, startFrame, endFrame uint64, blockFrames, channels int, blockChan chan<- block, errChan chan<- error) {
	defer close(blockChan)

	scratch := make([]float32, blockFrames*channels)
	remaining := endFrame - startFrame
	for remaining > 0 {
		select {
		case <-ctx.Done():
			return
		default:
		}

		frames := uint64(blockFrames)
		if frames > remaining {
			frames = remaining
		}
		out := scratch[:int(frames)*channels]
		if err := eng.RenderBlock(out); err != nil {
			select {
			case errChan <- err:
			case <-ctx.Done():
			}
			return
		}

		copied := make([]float32, len(out))
		copy(copied, out)

		select {
		case blockChan <- block{samples: copied}:
		case <-ctx.Done():
			return
		}
		remaining -= frames
	}
}

func monitorProgress(ctx context.Context, doneChan chan struct{}, every time.Duration, totalFrames uint64, framesRendered *atomic.Uint64, onProgress func(Progress)) {
	if onProgress == nil {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-doneChan:
			return
		case <-ticker.C:
			onProgress(Progress{
				FramesRendered: framesRendered.Load(),
				TotalFrames:    totalFrames,
				Elapsed:        time.Since(start),
			})
		}
	}
}

func writeBlock(encoder *wav.Encoder, samples []float32, channels int) error {
	ints := make([]int, len(samples))
	for i, v := range samples {
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		ints[i] = int(v * 32767)
	}
	buf := &audio.IntBuffer{
		Data:   ints,
		Format: &audio.Format{NumChannels: channels, SampleRate: encoder.SampleRate},
	}
	if err := encoder.Write(buf); err != nil {
		return errors.Wrap(err).
			Component("offline").
			Category(errors.CategoryFileIO).
			Context("operation", "write_wav_block").
			Build()
	}
	return nil
}
