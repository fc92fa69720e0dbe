package project

import (
	"math"

	"github.com/google/uuid"
	"github.com/resonantfield/tapedeck/internal/errors"
)

// Command is one project mutation, matching the teacher's processor.Action
// shape (internal/analysis/processor/actions_types.go: Execute/GetDescription)
// generalized from "detection post-processing action" to "project mutation
// with an inverse". Apply mutates p in place and must, on success, leave the
// command able to produce its own Inverse from state captured during Apply.
type Command interface {
	Apply(p *Project) error
	Inverse() Command
	Description() string
}

// SetTrackGain sets a track's linear mixer gain.
type SetTrackGain struct {
	TrackID uint64
	Gain    float64

	prevGain float64
}

func (c *SetTrackGain) Apply(p *Project) error {
	t := p.TrackAt(c.TrackID)
	if t == nil {
		return trackNotFound(c.TrackID)
	}
	c.prevGain = t.Gain
	t.Gain = c.Gain
	return nil
}

func (c *SetTrackGain) Inverse() Command {
	return &SetTrackGain{TrackID: c.TrackID, Gain: c.prevGain}
}

func (c *SetTrackGain) Description() string { return "set track gain" }

// SetTrackPan sets a track's pan position.
type SetTrackPan struct {
	TrackID uint64
	Pan     float64

	prevPan float64
}

func (c *SetTrackPan) Apply(p *Project) error {
	t := p.TrackAt(c.TrackID)
	if t == nil {
		return trackNotFound(c.TrackID)
	}
	c.prevPan = t.Pan
	t.Pan = c.Pan
	return nil
}

func (c *SetTrackPan) Inverse() Command {
	return &SetTrackPan{TrackID: c.TrackID, Pan: c.prevPan}
}

func (c *SetTrackPan) Description() string { return "set track pan" }

// ToggleMute flips a track's muted flag.
type ToggleMute struct {
	TrackID uint64
}

func (c *ToggleMute) Apply(p *Project) error {
	t := p.TrackAt(c.TrackID)
	if t == nil {
		return trackNotFound(c.TrackID)
	}
	t.Muted = !t.Muted
	return nil
}

func (c *ToggleMute) Inverse() Command       { return &ToggleMute{TrackID: c.TrackID} }
func (c *ToggleMute) Description() string { return "toggle track mute" }

// ToggleSolo flips a track's solo flag.
type ToggleSolo struct {
	TrackID uint64
}

func (c *ToggleSolo) Apply(p *Project) error {
	t := p.TrackAt(c.TrackID)
	if t == nil {
		return trackNotFound(c.TrackID)
	}
	t.Solo = !t.Solo
	return nil
}

func (c *ToggleSolo) Inverse() Command       { return &ToggleSolo{TrackID: c.TrackID} }
func (c *ToggleSolo) Description() string { return "toggle track solo" }

// SetMasterGain sets the project's master linear gain.
type SetMasterGain struct {
	Gain float64

	prevGain float64
}

func (c *SetMasterGain) Apply(p *Project) error {
	c.prevGain = p.MasterGain
	p.MasterGain = c.Gain
	return nil
}

func (c *SetMasterGain) Inverse() Command {
	return &SetMasterGain{Gain: c.prevGain}
}

func (c *SetMasterGain) Description() string { return "set master gain" }

// CreateTrack appends a new track with default mixer/DSP settings.
type CreateTrack struct {
	Name  string
	Color string

	createdID uint64
}

func (c *CreateTrack) Apply(p *Project) error {
	p.nextTrackID++
	id := p.nextTrackID
	c.createdID = id

	p.Tracks = append(p.Tracks, &Track{
		ID:    id,
		Name:  c.Name,
		Color: c.Color,
		Gain:  1.0,
		Pan:   0,
	})
	return nil
}

func (c *CreateTrack) Inverse() Command {
	return &DeleteTrack{TrackID: c.createdID}
}

func (c *CreateTrack) Description() string { return "create track" }

// DeleteTrack removes a track by ID. The inverse recreates it verbatim,
// including its clips, so undo does not need to re-decode any source.
type DeleteTrack struct {
	TrackID uint64

	removed *Track
	index   int
}

func (c *DeleteTrack) Apply(p *Project) error {
	idx := p.trackIndex(c.TrackID)
	if idx < 0 {
		return trackNotFound(c.TrackID)
	}
	c.removed = p.Tracks[idx]
	c.index = idx

	for _, clip := range c.removed.Clips {
		if clip.Source != nil {
			clip.Source.Retain() // hold for the undo record
		}
	}

	p.Tracks = append(p.Tracks[:idx], p.Tracks[idx+1:]...)
	return nil
}

func (c *DeleteTrack) Inverse() Command {
	return &restoreTrack{track: c.removed, index: c.index}
}

func (c *DeleteTrack) Description() string { return "delete track" }

// restoreTrack reinserts a previously deleted track at its original index.
// Not part of the public command vocabulary (§4.9 lists only CreateTrack/
// DeleteTrack); it exists purely as DeleteTrack's inverse.
type restoreTrack struct {
	track *Track
	index int
}

func (c *restoreTrack) Apply(p *Project) error {
	if c.index > len(p.Tracks) {
		c.index = len(p.Tracks)
	}
	p.Tracks = append(p.Tracks, nil)
	copy(p.Tracks[c.index+1:], p.Tracks[c.index:])
	p.Tracks[c.index] = c.track
	return nil
}

func (c *restoreTrack) Inverse() Command {
	return &DeleteTrack{TrackID: c.track.ID}
}

func (c *restoreTrack) Description() string { return "restore deleted track" }

// AddClip appends a clip to a track at the given start time.
type AddClip struct {
	TrackID   uint64
	Source    *Source
	StartTime float64
	Offset    float64
	Duration  float64

	addedID uuid.UUID
}

func (c *AddClip) Apply(p *Project) error {
	t := p.TrackAt(c.TrackID)
	if t == nil {
		return trackNotFound(c.TrackID)
	}

	clip := &Clip{
		ID:        uuid.New(),
		Source:    c.Source,
		StartTime: c.StartTime,
		Offset:    c.Offset,
		Duration:  c.Duration,
	}
	if err := clip.Validate(); err != nil {
		return err
	}
	if clip.Source != nil {
		clip.Source.Retain()
	}

	t.Clips = append(t.Clips, clip)
	c.addedID = clip.ID
	return nil
}

func (c *AddClip) Inverse() Command {
	return &DeleteClip{TrackID: c.TrackID, ClipID: c.addedID}
}

func (c *AddClip) Description() string { return "add clip" }

// DeleteClip removes a clip by ID. The inverse keeps the full clip
// metadata and a retained Source reference, so restoration is O(1).
type DeleteClip struct {
	TrackID uint64
	ClipID  uuid.UUID

	removed *Clip
	index   int
}

func (c *DeleteClip) Apply(p *Project) error {
	t := p.TrackAt(c.TrackID)
	if t == nil {
		return trackNotFound(c.TrackID)
	}
	idx := -1
	for i, clip := range t.Clips {
		if clip.ID == c.ClipID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return clipNotFound(c.ClipID)
	}

	c.removed = t.Clips[idx]
	c.index = idx
	// Retain on behalf of the undo record; the original clip reference is
	// released by the caller's cache bookkeeping once it drops from t.Clips.
	if c.removed.Source != nil {
		c.removed.Source.Retain()
	}

	t.Clips = append(t.Clips[:idx], t.Clips[idx+1:]...)
	return nil
}

func (c *DeleteClip) Inverse() Command {
	return &restoreClip{trackID: c.TrackID, clip: c.removed, index: c.index}
}

func (c *DeleteClip) Description() string { return "delete clip" }

// restoreClip reinserts a previously deleted clip. DeleteClip's inverse.
type restoreClip struct {
	trackID uint64
	clip    *Clip
	index   int
}

func (c *restoreClip) Apply(p *Project) error {
	t := p.TrackAt(c.trackID)
	if t == nil {
		return trackNotFound(c.trackID)
	}
	idx := c.index
	if idx > len(t.Clips) {
		idx = len(t.Clips)
	}
	t.Clips = append(t.Clips, nil)
	copy(t.Clips[idx+1:], t.Clips[idx:])
	t.Clips[idx] = c.clip
	return nil
}

func (c *restoreClip) Inverse() Command {
	return &DeleteClip{TrackID: c.trackID, ClipID: c.clip.ID}
}

func (c *restoreClip) Description() string { return "restore deleted clip" }

// MoveClip changes a clip's timeline start time.
type MoveClip struct {
	TrackID   uint64
	ClipID    uuid.UUID
	NewStart  float64

	prevStart float64
}

func (c *MoveClip) Apply(p *Project) error {
	t := p.TrackAt(c.TrackID)
	if t == nil {
		return trackNotFound(c.TrackID)
	}
	clip := t.ClipAt(c.ClipID)
	if clip == nil {
		return clipNotFound(c.ClipID)
	}
	c.prevStart = clip.StartTime
	clip.StartTime = c.NewStart
	return nil
}

func (c *MoveClip) Inverse() Command {
	return &MoveClip{TrackID: c.TrackID, ClipID: c.ClipID, NewStart: c.prevStart}
}

func (c *MoveClip) Description() string { return "move clip" }

// SplitClip splits a clip at timeline time t into two adjacent clips that
// together cover the original extent exactly.
type SplitClip struct {
	TrackID uint64
	ClipID  uuid.UUID
	At      float64 // timeline seconds

	original  *Clip
	leftID    uuid.UUID
	rightID   uuid.UUID
	origIndex int
}

func (c *SplitClip) Apply(p *Project) error {
	t := p.TrackAt(c.TrackID)
	if t == nil {
		return trackNotFound(c.TrackID)
	}
	idx := -1
	var clip *Clip
	for i, cl := range t.Clips {
		if cl.ID == c.ClipID {
			idx, clip = i, cl
			break
		}
	}
	if clip == nil {
		return clipNotFound(c.ClipID)
	}
	if c.At <= clip.StartTime || c.At >= clip.EndTime() {
		return errors.New(errors.NewStd("split point must lie strictly inside the clip")).
			Category(errors.CategoryInvalidArgument).
			Component("project").
			Context("clip_id", c.ClipID.String()).
			Context("at", c.At).
			Build()
	}

	if sr := p.SampleRate; sr > 0 {
		minDuration := 1.0 / float64(sr)
		leftDuration := c.At - clip.StartTime
		rightDuration := clip.EndTime() - c.At
		if leftDuration <= minDuration || rightDuration <= minDuration {
			return errors.New(errors.NewStd("split would produce a clip shorter than one sample")).
				Category(errors.CategoryInvalidArgument).
				Component("project").
				Context("clip_id", c.ClipID.String()).
				Context("at", c.At).
				Build()
		}
	}

	leftDuration := c.At - clip.StartTime
	left := &Clip{
		ID:        uuid.New(),
		Source:    clip.Source,
		StartTime: clip.StartTime,
		Offset:    clip.Offset,
		Duration:  leftDuration,
	}
	right := &Clip{
		ID:        uuid.New(),
		Source:    clip.Source,
		StartTime: c.At,
		Offset:    clip.Offset + leftDuration,
		Duration:  clip.Duration - leftDuration,
	}
	if clip.Source != nil {
		clip.Source.Retain() // right's new reference; left reuses the original's
	}

	c.original = clip
	c.origIndex = idx
	c.leftID = left.ID
	c.rightID = right.ID

	t.Clips = append(t.Clips[:idx], append([]*Clip{left, right}, t.Clips[idx+1:]...)...)
	return nil
}

func (c *SplitClip) Inverse() Command {
	return &MergeClipWithNext{
		TrackID:      c.TrackID,
		ClipID:       c.leftID,
		precomputed:  c.original,
		precomputeOK: true,
	}
}

func (c *SplitClip) Description() string { return "split clip" }

// MergeClipWithNext merges a clip with its immediate timeline successor.
// Requires the two clips to be adjacent on the timeline, refer to the same
// Source, and be contiguous in source, all within a 1ms tolerance.
type MergeClipWithNext struct {
	TrackID uint64
	ClipID  uuid.UUID

	// precomputed/precomputeOK let SplitClip's Inverse restore the exact
	// original clip instead of reconstructing one from the merge result.
	precomputed  *Clip
	precomputeOK bool

	left, right *Clip
	leftIndex   int
	merged      *Clip
}

const mergeToleranceSeconds = 0.001

func (c *MergeClipWithNext) Apply(p *Project) error {
	t := p.TrackAt(c.TrackID)
	if t == nil {
		return trackNotFound(c.TrackID)
	}

	if c.precomputeOK {
		idx := -1
		for i, cl := range t.Clips {
			if cl.ID == c.ClipID {
				idx = i
				break
			}
		}
		if idx < 0 || idx+1 >= len(t.Clips) {
			return clipNotFound(c.ClipID)
		}
		c.left, c.right = t.Clips[idx], t.Clips[idx+1]
		c.leftIndex = idx
		restored := c.precomputed
		if restored.Source != nil {
			restored.Source.Retain()
		}
		c.merged = restored
		t.Clips = append(t.Clips[:idx], append([]*Clip{restored}, t.Clips[idx+2:]...)...)
		return nil
	}

	idx := -1
	for i, cl := range t.Clips {
		if cl.ID == c.ClipID {
			idx = i
			break
		}
	}
	if idx < 0 || idx+1 >= len(t.Clips) {
		return clipNotFound(c.ClipID)
	}
	left, right := t.Clips[idx], t.Clips[idx+1]

	if math.Abs(right.StartTime-(left.StartTime+left.Duration)) > mergeToleranceSeconds {
		return mergeRejected("clips are not adjacent on the timeline")
	}
	if left.Source == nil || right.Source == nil || left.Source.Key != right.Source.Key {
		return mergeRejected("clips do not reference the same source")
	}
	if math.Abs(right.Offset-(left.Offset+left.Duration)) > mergeToleranceSeconds {
		return mergeRejected("clips are not contiguous in the source")
	}

	merged := &Clip{
		ID:        uuid.New(),
		Source:    left.Source,
		StartTime: left.StartTime,
		Offset:    left.Offset,
		Duration:  left.Duration + right.Duration,
	}
	if merged.Source != nil {
		merged.Source.Retain()
	}

	c.left, c.right = left, right
	c.leftIndex = idx
	c.merged = merged

	t.Clips = append(t.Clips[:idx], append([]*Clip{merged}, t.Clips[idx+2:]...)...)
	return nil
}

func (c *MergeClipWithNext) Inverse() Command {
	return &unmergeClip{trackID: c.TrackID, mergedID: c.merged.ID, left: c.left, right: c.right, index: c.leftIndex}
}

func (c *MergeClipWithNext) Description() string { return "merge clip with next" }

// unmergeClip restores the two clips that a MergeClipWithNext combined.
type unmergeClip struct {
	trackID  uint64
	mergedID uuid.UUID
	left     *Clip
	right    *Clip
	index    int
}

func (c *unmergeClip) Apply(p *Project) error {
	t := p.TrackAt(c.trackID)
	if t == nil {
		return trackNotFound(c.trackID)
	}
	idx := -1
	for i, cl := range t.Clips {
		if cl.ID == c.mergedID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return clipNotFound(c.mergedID)
	}
	t.Clips = append(t.Clips[:idx], append([]*Clip{c.left, c.right}, t.Clips[idx+1:]...)...)
	return nil
}

func (c *unmergeClip) Inverse() Command {
	return &MergeClipWithNext{TrackID: c.trackID, ClipID: c.left.ID, precomputed: &Clip{
		ID:        c.mergedID,
		Source:    c.left.Source,
		StartTime: c.left.StartTime,
		Offset:    c.left.Offset,
		Duration:  c.left.Duration + c.right.Duration,
	}, precomputeOK: true}
}

func (c *unmergeClip) Description() string { return "restore clips from merge" }

// UpdateEQBand replaces one of a track's four EQ bands wholesale.
type UpdateEQBand struct {
	TrackID uint64
	Band    int // 0..3
	New     EQBand

	prev EQBand
}

func (c *UpdateEQBand) Apply(p *Project) error {
	t := p.TrackAt(c.TrackID)
	if t == nil {
		return trackNotFound(c.TrackID)
	}
	if c.Band < 0 || c.Band > 3 {
		return errors.New(errors.NewStd("eq band index out of range")).
			Category(errors.CategoryInvalidArgument).
			Component("project").
			Context("band", c.Band).
			Build()
	}
	c.prev = t.EQ[c.Band]
	t.EQ[c.Band] = c.New
	return nil
}

func (c *UpdateEQBand) Inverse() Command {
	return &UpdateEQBand{TrackID: c.TrackID, Band: c.Band, New: c.prev}
}

func (c *UpdateEQBand) Description() string { return "update EQ band" }

// UpdateCompressor replaces a track's compressor settings wholesale.
type UpdateCompressor struct {
	TrackID uint64
	New     CompressorParams

	prev CompressorParams
}

func (c *UpdateCompressor) Apply(p *Project) error {
	t := p.TrackAt(c.TrackID)
	if t == nil {
		return trackNotFound(c.TrackID)
	}
	c.prev = t.Compressor
	t.Compressor = c.New
	return nil
}

func (c *UpdateCompressor) Inverse() Command {
	return &UpdateCompressor{TrackID: c.TrackID, New: c.prev}
}

func (c *UpdateCompressor) Description() string { return "update compressor" }

// SetBPM changes the project tempo.
type SetBPM struct {
	BPM float64

	prevBPM float64
}

func (c *SetBPM) Apply(p *Project) error {
	if c.BPM <= 0 {
		return errors.New(errors.NewStd("bpm must be > 0")).
			Category(errors.CategoryInvalidArgument).
			Component("project").
			Context("bpm", c.BPM).
			Build()
	}
	c.prevBPM = p.BPM
	p.BPM = c.BPM
	return nil
}

func (c *SetBPM) Inverse() Command { return &SetBPM{BPM: c.prevBPM} }
func (c *SetBPM) Description() string { return "set BPM" }

// SetTimeSignature changes the project's informational time signature.
type SetTimeSignature struct {
	Num, Denom int

	prevNum, prevDenom int
}

func (c *SetTimeSignature) Apply(p *Project) error {
	c.prevNum, c.prevDenom = p.TimeSigNum, p.TimeSigDenom
	p.TimeSigNum, p.TimeSigDenom = c.Num, c.Denom
	return nil
}

func (c *SetTimeSignature) Inverse() Command {
	return &SetTimeSignature{Num: c.prevNum, Denom: c.prevDenom}
}

func (c *SetTimeSignature) Description() string { return "set time signature" }

func trackNotFound(id uint64) error {
	return errors.New(errors.NewStd("track not found")).
		Category(errors.CategoryNotFound).
		Component("project").
		Context("track_id", id).
		Build()
}

func clipNotFound(id uuid.UUID) error {
	return errors.New(errors.NewStd("clip not found")).
		Category(errors.CategoryNotFound).
		Component("project").
		Context("clip_id", id.String()).
		Build()
}

func mergeRejected(reason string) error {
	return errors.New(errors.NewStd("merge rejected: "+reason)).
		Category(errors.CategoryInvalidArgument).
		Component("project").
		Context("reason", reason).
		Build()
}
