package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/resonantfield/tapedeck/internal/project"
)

// meterSlot holds one track's (or the master's) latest level snapshot
// behind an atomic.Pointer: the audio thread is the single writer, any
// number of readers (the command surface's SSE stream, the UI poll
// endpoint) load without ever blocking the callback. This replaces the
// teacher's unbounded audioLevelChan/soundLevelChan with a single-writer,
// many-reader published-value idiom, since a meter reader only ever wants
// the latest value, never a backlog.
type meterSlot struct {
	value atomic.Pointer[project.Meter]
}

// MeterBus fans out peak/RMS levels for every track plus the master bus.
// Track slots are created lazily as the graph grows and never removed
// (track IDs are never reused within a project's lifetime), so readers can
// hold a stale *meterSlot across a graph rebuild without a lookup race.
type MeterBus struct {
	mu     sync.RWMutex
	tracks map[uint64]*meterSlot
	master meterSlot
}

// NewMeterBus returns an empty meter bus.
func NewMeterBus() *MeterBus {
	return &MeterBus{tracks: make(map[uint64]*meterSlot)}
}

func (mb *MeterBus) slotFor(trackID uint64) *meterSlot {
	mb.mu.RLock()
	s, ok := mb.tracks[trackID]
	mb.mu.RUnlock()
	if ok {
		return s
	}

	mb.mu.Lock()
	defer mb.mu.Unlock()
	if s, ok := mb.tracks[trackID]; ok {
		return s
	}
	s = &meterSlot{}
	mb.tracks[trackID] = s
	return s
}

// PublishTrack stores a new level snapshot for trackID. Called once per
// mixer callback per active track, from the audio thread.
func (mb *MeterBus) PublishTrack(trackID uint64, m project.Meter) {
	mb.slotFor(trackID).value.Store(&m)
}

// PublishMaster stores a new level snapshot for the master bus.
func (mb *MeterBus) PublishMaster(m project.Meter) {
	mb.master.value.Store(&m)
}

// Track returns the last published meter for trackID, or the zero value
// with ok=false if nothing has been published yet.
func (mb *MeterBus) Track(trackID uint64) (project.Meter, bool) {
	mb.mu.RLock()
	s, ok := mb.tracks[trackID]
	mb.mu.RUnlock()
	if !ok {
		return project.Meter{}, false
	}
	v := s.value.Load()
	if v == nil {
		return project.Meter{}, false
	}
	return *v, true
}

// Master returns the last published master-bus meter.
func (mb *MeterBus) Master() (project.Meter, bool) {
	v := mb.master.value.Load()
	if v == nil {
		return project.Meter{}, false
	}
	return *v, true
}

// HoldPeak folds a new absolute peak into m's existing hold peak, resetting
// the hold if it is older than holdDuration. This is the only stateful part
// of meter publication and is computed on the audio thread right before
// PublishTrack/PublishMaster.
func HoldPeak(prev project.Meter, peakL, peakR float64, now time.Time, holdDuration time.Duration) project.Meter {
	m := project.Meter{PeakL: peakL, PeakR: peakR, HoldPeakL: prev.HoldPeakL, HoldPeakR: prev.HoldPeakR, HoldUpdatedAt: prev.HoldUpdatedAt}
	if now.Sub(prev.HoldUpdatedAt) > holdDuration || peakL > prev.HoldPeakL {
		m.HoldPeakL = peakL
		m.HoldUpdatedAt = now
	}
	if now.Sub(prev.HoldUpdatedAt) > holdDuration || peakR > prev.HoldPeakR {
		m.HoldPeakR = peakR
		if m.HoldUpdatedAt.IsZero() {
			m.HoldUpdatedAt = now
		}
	}
	return m
}
