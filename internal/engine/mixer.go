package engine

import (
	"math"
	"time"

	"github.com/resonantfield/tapedeck/internal/dsp"
	"github.com/resonantfield/tapedeck/internal/project"
)

// sourceFrame returns source-sample frame, linearly interpolated between its
// two nearest source frames when srcTime falls between samples — most
// commonly because src.SampleRate differs from the engine's, the same
// interpolation dsp.Resampler performs on a whole buffer, applied here
// per-output-frame since clips are read at arbitrary, non-contiguous
// offsets rather than resampled as a contiguous stream.
func sourceFrame(src *project.Source, srcTime float64, srcChannels int) (l, r float32, ok bool) {
	srcPos := srcTime * float64(src.SampleRate)
	srcFrame := int64(math.Floor(srcPos))
	if srcFrame < 0 || srcFrame >= src.TotalFrames {
		return 0, 0, false
	}
	frac := srcPos - float64(srcFrame)

	nextFrame := srcFrame + 1
	if nextFrame >= src.TotalFrames {
		nextFrame = srcFrame
	}

	base := srcFrame * int64(srcChannels)
	nextBase := nextFrame * int64(srcChannels)

	if srcChannels == 1 {
		a := src.Samples[base]
		b := src.Samples[nextBase]
		l = a + float32(frac)*(b-a)
		r = l
		return l, r, true
	}

	al, ar := src.Samples[base], src.Samples[base+1]
	bl, br := src.Samples[nextBase], src.Samples[nextBase+1]
	l = al + float32(frac)*(bl-al)
	r = ar + float32(frac)*(br-ar)
	return l, r, true
}

// HoldDuration is how long a meter's peak-hold indicator stays latched
// before a new, lower peak is allowed to override it.
const HoldDuration = 1500 * time.Millisecond

// Mixer renders one block of audio per call to Render, reading the current
// Graph snapshot, summing every unmuted (or soloed) track's clips at the
// transport's position, running each track's DSP chain, and applying
// master gain with a soft-clip safety limiter. It holds no project state of
// its own; everything it needs comes from the Graph it's handed.
type Mixer struct {
	pool   *BufferPool
	meters *MeterBus

	// scratch is a per-track stereo scratch buffer reused across Render
	// calls so no allocation happens on the audio thread.
	scratch []float64
}

// NewMixer returns a Mixer drawing pooled buffers from pool and publishing
// levels to meters.
func NewMixer(pool *BufferPool, meters *MeterBus) *Mixer {
	return &Mixer{pool: pool, meters: meters}
}

// Render fills out (interleaved stereo, len(out)/2 frames) starting at
// positionFrames in the timeline, using the tracks and DSP chains in g.
// positionFrames advances by frames on a successful render; callers own
// advancing the transport's own position counter.
func (m *Mixer) Render(g *Graph, positionFrames uint64, sampleRate int, out []float32) {
	frames := len(out) / 2
	for i := range out {
		out[i] = 0
	}

	if cap(m.scratch) < len(out) {
		m.scratch = make([]float64, len(out))
	}
	scratch := m.scratch[:len(out)]

	for _, t := range g.Tracks {
		// Muted or solo-suppressed tracks still render, run their DSP
		// chain, and publish meters for visual feedback — only summing
		// into the master bus is skipped.
		skipSum := t.muted || (g.AnySolo && !t.solo)

		for i := range scratch {
			scratch[i] = 0
		}
		m.renderTrackClips(t, positionFrames, frames, sampleRate, scratch)

		if t.eq != nil {
			t.eq.ApplyBatch(scratch)
		}
		if t.compressor != nil {
			t.compressor.ApplyBatch(scratch)
		}
		if t.gainPan != nil {
			t.gainPan.ApplyBatch(scratch)
		}

		var peakL, peakR, sumSqL, sumSqR float64
		for i := 0; i < frames; i++ {
			l, r := scratch[2*i], scratch[2*i+1]
			if !skipSum {
				out[2*i] += float32(l)
				out[2*i+1] += float32(r)
			}
			if al := math.Abs(l); al > peakL {
				peakL = al
			}
			if ar := math.Abs(r); ar > peakR {
				peakR = ar
			}
			sumSqL += l * l
			sumSqR += r * r
		}

		if m.meters != nil && frames > 0 {
			prev, _ := m.meters.Track(t.id)
			mtr := HoldPeak(prev, peakL, peakR, time.Now(), HoldDuration)
			mtr.RMSL = math.Sqrt(sumSqL / float64(frames))
			mtr.RMSR = math.Sqrt(sumSqR / float64(frames))
			m.meters.PublishTrack(t.id, mtr)
		}
	}

	masterGain := g.MasterGain
	if masterGain <= 0 {
		masterGain = 1
	}

	for i := range scratch {
		scratch[i] = float64(out[i]) * masterGain
	}
	dsp.SoftClip(scratch)

	var peakL, peakR, sumSqL, sumSqR float64
	for i := 0; i < frames; i++ {
		l, r := scratch[2*i], scratch[2*i+1]
		out[2*i] = float32(l)
		out[2*i+1] = float32(r)

		if al := math.Abs(l); al > peakL {
			peakL = al
		}
		if ar := math.Abs(r); ar > peakR {
			peakR = ar
		}
		sumSqL += l * l
		sumSqR += r * r
	}

	if m.meters != nil && frames > 0 {
		prev, _ := m.meters.Master()
		mtr := HoldPeak(prev, peakL, peakR, time.Now(), HoldDuration)
		mtr.RMSL = math.Sqrt(sumSqL / float64(frames))
		mtr.RMSR = math.Sqrt(sumSqR / float64(frames))
		m.meters.PublishMaster(mtr)
	}
}

// renderTrackClips sums every clip on t that overlaps
// [positionFrames, positionFrames+frames) into scratch (interleaved stereo).
func (m *Mixer) renderTrackClips(t *trackNode, positionFrames uint64, frames, sampleRate int, scratch []float64) {
	blockStart := float64(positionFrames) / float64(sampleRate)
	blockEnd := float64(positionFrames+uint64(frames)) / float64(sampleRate)

	for _, clip := range t.clips {
		if clip.Source == nil || clip.EndTime() <= blockStart || clip.StartTime >= blockEnd {
			continue
		}
		renderClipInto(clip, positionFrames, frames, sampleRate, scratch)
	}
}

func renderClipInto(clip *project.Clip, positionFrames uint64, frames, sampleRate int, scratch []float64) {
	src := clip.Source
	srcChannels := src.Channels
	if srcChannels <= 0 {
		srcChannels = 1
	}

	for i := 0; i < frames; i++ {
		t := (float64(positionFrames+uint64(i)) / float64(sampleRate)) - clip.StartTime
		if t < 0 || t >= clip.Duration {
			continue
		}
		srcTime := t + clip.Offset
		l, r, ok := sourceFrame(src, srcTime, srcChannels)
		if !ok {
			continue
		}
		scratch[2*i] += float64(l)
		scratch[2*i+1] += float64(r)
	}
}
