package recorder

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/resonantfield/tapedeck/internal/engine"
	"github.com/resonantfield/tapedeck/internal/errors"
	"github.com/resonantfield/tapedeck/internal/logging"
	"github.com/resonantfield/tapedeck/internal/project"
	"github.com/resonantfield/tapedeck/internal/sourcecache"
)

// Takes are held live in a window this long before being finalized; a
// recording session longer than this still finalizes correctly, since the
// window only bounds memory use of the circular buffer, not the take.
const defaultWindow = 30 * time.Minute

const defaultPreRollSeconds = 0.25

// Recorder owns the capture-side buffers and turns an armed Transport
// recording session into a finalized WAV file plus a Source/Clip pair
// appended to the project via the engine's command bus. Grounded on the
// teacher's audiocore/capture.CaptureManager (per-source circular buffer
// lifecycle) generalized from per-detection-source to per-track, since
// this engine records one input device into one record-armed track at a
// time rather than many simultaneous analysis streams.
type Recorder struct {
	eng        *engine.Engine
	cache      *sourcecache.Cache
	outputDir  string
	sampleRate int
	channels   int

	logger *slog.Logger

	mu        sync.Mutex
	buffer    *CircularBuffer
	preRoll   *PreRoll
	recording bool
	trackID   uint64
	startedAt time.Time
}

// New constructs a Recorder writing finalized takes under outputDir.
func New(eng *engine.Engine, cache *sourcecache.Cache, outputDir string, sampleRate, channels int) (*Recorder, error) {
	buf, err := NewCircularBuffer(defaultWindow, sampleRate, channels)
	if err != nil {
		return nil, err
	}
	logger := logging.ForService("recorder")
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		eng:        eng,
		cache:      cache,
		outputDir:  outputDir,
		sampleRate: sampleRate,
		channels:   channels,
		logger:     logger.With("component", "recorder"),
		buffer:     buf,
		preRoll:    NewPreRoll(defaultPreRollSeconds, sampleRate, channels),
	}, nil
}

// Feed is the device manager's capture callback: every captured block is
// always pushed into the pre-roll window, and additionally into the
// take buffer once a take is armed.
func (r *Recorder) Feed(samples []float32) {
	r.preRoll.Write(samples)

	r.mu.Lock()
	recording := r.recording
	r.mu.Unlock()
	if recording {
		r.buffer.Write(samples)
	}
}

// Arm starts a take on the given track, draining the pre-roll window into
// the take buffer so the take begins slightly before the transport's
// recording state actually flipped.
func (r *Recorder) Arm(trackID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.recording {
		return errors.New(errors.NewStd("a take is already recording")).
			Component("recorder").
			Category(errors.CategoryState).
			Build()
	}

	r.buffer.Reset()
	r.recording = true
	r.trackID = trackID
	r.startedAt = time.Now()
	r.buffer.Write(r.preRoll.Drain())
	return nil
}

// Finish stops the active take, writes it to a WAV file, loads it back as
// a project.Source via the shared cache, and submits an AddClip command so
// it lands on the timeline at the position the take started.
func (r *Recorder) Finish(ctx context.Context) error {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return errors.New(errors.NewStd("no take in progress")).
			Component("recorder").
			Category(errors.CategoryState).
			Build()
	}
	trackID := r.trackID
	startedAt := r.startedAt
	endedAt := time.Now()
	r.recording = false
	r.mu.Unlock()

	// The buffer's own start time reflects when audio actually began
	// flowing in after Arm's Reset, which may be fractionally later than
	// Arm itself if the pre-roll window was empty.
	readStart := startedAt
	if bufStart := r.buffer.StartTime(); bufStart.After(readStart) {
		readStart = bufStart
	}

	samples, err := r.buffer.ReadSegment(readStart, endedAt)
	if err != nil {
		return err
	}

	name := TakeFileName(trackName(r.eng.Project, trackID), endedAt)
	path := filepath.Join(r.outputDir, name)
	if err := WriteWAV(path, samples, r.sampleRate, r.channels); err != nil {
		return err
	}

	source, err := r.cache.GetOrLoad(ctx, path)
	if err != nil {
		return err
	}

	startTime := 0.0
	if track := r.eng.Project.TrackAt(trackID); track != nil {
		startTime = trackEndTime(track)
	}

	r.eng.Commands.Submit(&project.AddClip{
		TrackID:   trackID,
		Source:    source,
		StartTime: startTime,
		Offset:    0,
		Duration:  source.TotalDuration(),
	})

	r.logger.Info("take finalized", "track_id", trackID, "path", path, "duration_s", source.TotalDuration())
	return nil
}

func trackName(p *project.Project, trackID uint64) string {
	if t := p.TrackAt(trackID); t != nil {
		return t.Name
	}
	return "track"
}

func trackEndTime(t *project.Track) float64 {
	end := 0.0
	for _, clip := range t.Clips {
		if e := clip.EndTime(); e > end {
			end = e
		}
	}
	return end
}
