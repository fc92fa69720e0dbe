package engine

import (
	"sync/atomic"
	"time"

	"github.com/resonantfield/tapedeck/internal/errors"
)

// TransportState identifies the transport's current playback mode.
type TransportState int32

const (
	// Stopped is the transport's idle state: position holds steady, no
	// audio is rendered.
	Stopped TransportState = iota
	Playing
	// Paused holds the current position but, unlike Stopped, resumes from
	// it rather than from zero on the next Play.
	Paused
	Recording
)

func (s TransportState) String() string {
	switch s {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Recording:
		return "recording"
	default:
		return "stopped"
	}
}

// Transport tracks playback position and state with plain atomics so the
// audio thread can read/advance position without a mutex and the control
// thread can issue play/pause/stop/seek from a command without racing it.
type Transport struct {
	state          atomic.Int32
	positionFrames atomic.Uint64
	loopEnabled    atomic.Bool
	loopStartFr    atomic.Uint64
	loopEndFr      atomic.Uint64
	endFrame       atomic.Uint64 // 0 means no end-of-project configured
	sampleRate     int
}

// replayRewindWindow is how close to end-of-project the transport must be
// for the next Play to rewind to zero instead of resuming in place, per
// spec.md §4.5.
const replayRewindWindow = 100 * time.Millisecond

// NewTransport returns a stopped transport at position zero.
func NewTransport(sampleRate int) *Transport {
	t := &Transport{sampleRate: sampleRate}
	t.state.Store(int32(Stopped))
	return t
}

// State returns the transport's current state.
func (t *Transport) State() TransportState {
	return TransportState(t.state.Load())
}

// Position returns the current playback position in frames.
func (t *Transport) Position() uint64 {
	return t.positionFrames.Load()
}

// PositionSeconds returns the current playback position in seconds.
func (t *Transport) PositionSeconds() float64 {
	if t.sampleRate == 0 {
		return 0
	}
	return float64(t.Position()) / float64(t.sampleRate)
}

// Play transitions Stopped/Paused -> Playing. A no-op (not an error) if
// already playing, so repeated play commands from a flaky client are
// harmless. If the transport sits within replayRewindWindow of
// end-of-project, it rewinds to zero before resuming playback rather than
// replaying from the end it just stopped at.
func (t *Transport) Play() error {
	switch t.State() {
	case Stopped, Paused, Playing:
		if end := t.endFrame.Load(); end > 0 {
			window := uint64(float64(t.sampleRate) * replayRewindWindow.Seconds())
			if pos := t.positionFrames.Load(); pos+window >= end {
				t.positionFrames.Store(0)
			}
		}
		t.state.Store(int32(Playing))
		return nil
	default:
		return invalidTransition(t.State(), Playing)
	}
}

// Pause transitions Playing -> Paused, holding position.
func (t *Transport) Pause() error {
	switch t.State() {
	case Playing, Paused:
		t.state.Store(int32(Paused))
		return nil
	default:
		return invalidTransition(t.State(), Paused)
	}
}

// Stop transitions to Stopped and resets position to zero.
func (t *Transport) Stop() error {
	t.state.Store(int32(Stopped))
	t.positionFrames.Store(0)
	return nil
}

// StartRecording transitions Stopped -> Recording; recording can only begin
// from a stopped transport so punch-in mid-playback is out of scope here.
func (t *Transport) StartRecording() error {
	if t.State() != Stopped {
		return invalidTransition(t.State(), Recording)
	}
	t.state.Store(int32(Recording))
	return nil
}

// Seek moves the playback position to frame, clamped to zero.
func (t *Transport) Seek(frame int64) {
	if frame < 0 {
		frame = 0
	}
	t.positionFrames.Store(uint64(frame))
}

// SetLoop configures or disables loop playback between [startFrame, endFrame).
func (t *Transport) SetLoop(enabled bool, startFrame, endFrame uint64) {
	t.loopEnabled.Store(enabled)
	t.loopStartFr.Store(startFrame)
	t.loopEndFr.Store(endFrame)
}

// SetEndFrame configures the end-of-project position Advance stays at and
// Play rewinds from, in frames. Call with the project's current
// MaxEndTime() (converted to frames) whenever the project's structure
// changes. Pass 0 to disable end-of-project handling, e.g. an empty
// project with nothing to play.
func (t *Transport) SetEndFrame(endFrame uint64) {
	t.endFrame.Store(endFrame)
}

// Advance moves the transport's position forward by frames, wrapping to the
// loop start if looping is enabled and the new position reaches the loop
// end, or else holding at end-of-project and pausing once the position
// reaches it (spec.md §4.5). Called once per render block from the audio
// thread; the only transport method that must never allocate or block.
func (t *Transport) Advance(frames uint64) {
	if t.State() != Playing && t.State() != Recording {
		return
	}
	next := t.positionFrames.Add(frames)
	if t.loopEnabled.Load() {
		end := t.loopEndFr.Load()
		if end > 0 && next >= end {
			start := t.loopStartFr.Load()
			t.positionFrames.Store(start)
			return
		}
	}
	if t.State() == Playing {
		if end := t.endFrame.Load(); end > 0 && next >= end {
			t.positionFrames.Store(end)
			t.state.Store(int32(Paused))
		}
	}
}

func invalidTransition(from, to TransportState) error {
	return errors.New(errors.NewStd("invalid transport transition")).
		Category(errors.CategoryTransport).
		Component("engine").
		Context("from", from.String()).
		Context("to", to.String()).
		Build()
}
