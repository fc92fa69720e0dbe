// Package project holds the control-thread's authoritative project tree:
// Project, Track, Clip, Source, and the undo-able Command history that
// mutates them. Nothing in this package touches the audio thread directly;
// the engine package snapshots this tree into a realtime-safe Graph.
package project

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/resonantfield/tapedeck/internal/dsp"
	"github.com/resonantfield/tapedeck/internal/errors"
)

// WaveformBin is one min/max pair of a precomputed waveform summary.
type WaveformBin struct {
	Min float32
	Max float32
}

// Source is immutable decoded PCM for one file, shared among any number of
// clips. Lifetime is managed by the sourcecache package; refCount tracks
// live clips plus undo records holding a reference.
type Source struct {
	Key             string // canonicalized absolute path
	SampleRate      int
	Channels        int
	TotalFrames     int64
	Samples         []float32 // interleaved
	WaveformSummary []WaveformBin
	BinsPerSecond   int

	mu       sync.Mutex
	refCount int
}

// TotalDuration returns the source's length in seconds.
func (s *Source) TotalDuration() float64 {
	if s.SampleRate == 0 {
		return 0
	}
	return float64(s.TotalFrames) / float64(s.SampleRate)
}

// Retain increments the reference count. Called by the cache when a clip
// or undo record starts holding this source.
func (s *Source) Retain() {
	s.mu.Lock()
	s.refCount++
	s.mu.Unlock()
}

// Release decrements the reference count and returns the count after
// decrementing, so the caller (the cache) can evict at zero.
func (s *Source) Release() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refCount--
	return s.refCount
}

// RefCount returns the current reference count.
func (s *Source) RefCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refCount
}

// EQBand is one band of a track's fixed four-band EQ chain.
type EQBand struct {
	Type      dsp.FilterType
	Frequency float64 // 20..20000 Hz
	Q         float64 // 0.1..10
	GainDB    float64 // -15..+15, used by Peaking/Shelf types
	Active    bool
}

// CompressorParams holds one track's compressor settings.
type CompressorParams struct {
	Active       bool
	ThresholdDB  float64 // -60..0 dBFS
	Ratio        float64 // 1..20
	AttackMs     float64 // 1..200
	ReleaseMs    float64 // 10..1000
	MakeupGainDB float64 // 0..24
}

// Meter is a snapshot of peak/RMS levels for a track or the master bus.
type Meter struct {
	PeakL, PeakR     float64
	RMSL, RMSR       float64
	HoldPeakL        float64
	HoldPeakR        float64
	HoldUpdatedAt    time.Time
}

// Clip references a slice of a Source placed on a track's timeline.
type Clip struct {
	ID        uuid.UUID
	Source    *Source
	StartTime float64 // timeline seconds
	Offset    float64 // seconds into source
	Duration  float64 // seconds of source to play
}

// EndTime returns the clip's timeline end position in seconds.
func (c *Clip) EndTime() float64 {
	return c.StartTime + c.Duration
}

// Validate checks the clip invariants from the data model: 0 <= offset,
// offset+duration <= source.TotalDuration, duration > 0.
func (c *Clip) Validate() error {
	if c.Duration <= 0 {
		return errors.New(errors.NewStd("clip duration must be > 0")).
			Category(errors.CategoryInvalidArgument).
			Component("project").
			Context("duration", c.Duration).
			Build()
	}
	if c.Offset < 0 {
		return errors.New(errors.NewStd("clip offset must be >= 0")).
			Category(errors.CategoryInvalidArgument).
			Component("project").
			Context("offset", c.Offset).
			Build()
	}
	if c.Source != nil && c.Offset+c.Duration > c.Source.TotalDuration()+1e-6 {
		return errors.New(errors.NewStd("clip extent exceeds source duration")).
			Category(errors.CategoryInvalidArgument).
			Component("project").
			Context("offset", c.Offset).
			Context("duration", c.Duration).
			Context("source_duration", c.Source.TotalDuration()).
			Build()
	}
	return nil
}

// Track holds an ordered sequence of clips, mixer parameters, and a fixed
// DSP chain (four-band EQ then compressor). Track IDs are monotonically
// assigned by the owning Project and stable across undo.
type Track struct {
	ID    uint64
	Name  string
	Color string

	Clips []*Clip

	Gain          float64 // linear, 0..2
	Pan           float64 // -1..+1
	Muted         bool
	Solo          bool
	RecordArmed   bool
	InputMonitor  bool

	EQ         [4]EQBand
	Compressor CompressorParams
}

// ClipAt returns the clip with the given ID, or nil if not found.
func (t *Track) ClipAt(id uuid.UUID) *Clip {
	for _, c := range t.Clips {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// Project is the root container: ordered tracks, tempo metadata, master
// gain, and transport position. Mutation only ever happens through the
// Command/History pair in this package; nothing else should reach into
// Tracks/Clips directly once a project is live.
type Project struct {
	mu sync.Mutex

	Tracks         []*Track
	BPM            float64 // positive rational, default 120
	TimeSigNum     int
	TimeSigDenom   int
	MasterGain     float64 // linear, 0..~2
	PositionFrames uint64
	SampleRate     int

	nextTrackID uint64
}

// New creates an empty Project at the given engine sample rate.
func New(sampleRate int) *Project {
	return &Project{
		BPM:          120,
		TimeSigNum:   4,
		TimeSigDenom: 4,
		MasterGain:   1.0,
		SampleRate:   sampleRate,
	}
}

// Lock/Unlock expose the project's mutex to Command implementations in
// this package; callers outside the package go through History.Do.
func (p *Project) lock()   { p.mu.Lock() }
func (p *Project) unlock() { p.mu.Unlock() }

// TrackAt returns the track with the given ID, or nil if not found.
func (p *Project) TrackAt(id uint64) *Track {
	for _, t := range p.Tracks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// trackIndex returns the slice index of the track with the given ID, or -1.
func (p *Project) trackIndex(id uint64) int {
	for i, t := range p.Tracks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// AnySolo reports whether any track in the project is soloed, computed
// once per mixer callback per §4.4.
func (p *Project) AnySolo() bool {
	for _, t := range p.Tracks {
		if t.Solo {
			return true
		}
	}
	return false
}

// MaxEndTime returns the timeline end of the last clip in the project,
// used by the offline renderer and end-of-project transport logic.
func (p *Project) MaxEndTime() float64 {
	var max float64
	for _, t := range p.Tracks {
		for _, c := range t.Clips {
			if end := c.EndTime(); end > max {
				max = end
			}
		}
	}
	return max
}
