package engine

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resonantfield/tapedeck/internal/project"
)

func constantSource(sampleRate, channels int, frames int64, value float32) *project.Source {
	samples := make([]float32, int(frames)*channels)
	for i := range samples {
		samples[i] = value
	}
	return &project.Source{
		Key:         "test",
		SampleRate:  sampleRate,
		Channels:    channels,
		TotalFrames: frames,
		Samples:     samples,
	}
}

func TestMixer_RenderSilentGraphProducesZeros(t *testing.T) {
	pool := NewBufferPool(2, 512)
	meters := NewMeterBus()
	mixer := NewMixer(pool, meters)

	g := &Graph{SampleRate: 44100, MasterGain: 1.0}
	out := make([]float32, 512*2)
	mixer.Render(g, 0, 44100, out)

	for _, v := range out {
		assert.Equal(t, float32(0), v)
	}
}

func TestMixer_RenderSingleClipProducesSignal(t *testing.T) {
	pool := NewBufferPool(2, 512)
	meters := NewMeterBus()
	mixer := NewMixer(pool, meters)

	src := constantSource(44100, 2, 1000, 0.5)
	clip := &project.Clip{ID: uuid.New(), Source: src, StartTime: 0, Offset: 0, Duration: src.TotalDuration()}

	node := &trackNode{id: 1, clips: []*project.Clip{clip}}
	g := &Graph{SampleRate: 44100, MasterGain: 1.0, Tracks: []*trackNode{node}}

	out := make([]float32, 512*2)
	mixer.Render(g, 0, 44100, out)

	nonZero := false
	for _, v := range out {
		if v != 0 {
			nonZero = true
			break
		}
	}
	assert.True(t, nonZero, "rendering a clip with signal should produce non-zero output")

	m, ok := meters.Track(1)
	require.True(t, ok)
	assert.Greater(t, m.PeakL, 0.0)
}

func TestMixer_MutedTrackProducesNoSignal(t *testing.T) {
	pool := NewBufferPool(2, 512)
	meters := NewMeterBus()
	mixer := NewMixer(pool, meters)

	src := constantSource(44100, 2, 1000, 0.9)
	clip := &project.Clip{ID: uuid.New(), Source: src, StartTime: 0, Duration: src.TotalDuration()}
	node := &trackNode{id: 1, muted: true, clips: []*project.Clip{clip}}
	g := &Graph{SampleRate: 44100, MasterGain: 1.0, Tracks: []*trackNode{node}}

	out := make([]float32, 512*2)
	mixer.Render(g, 0, 44100, out)
	for _, v := range out {
		assert.Equal(t, float32(0), v)
	}
}

func TestMixer_SoloSuppressesNonSoloedTracks(t *testing.T) {
	pool := NewBufferPool(2, 512)
	meters := NewMeterBus()
	mixer := NewMixer(pool, meters)

	src := constantSource(44100, 2, 1000, 0.9)
	soloed := &trackNode{id: 1, solo: true, clips: []*project.Clip{{Source: src, Duration: src.TotalDuration()}}}
	silent := &trackNode{id: 2, clips: []*project.Clip{{Source: src, Duration: src.TotalDuration()}}}
	g := &Graph{SampleRate: 44100, MasterGain: 1.0, AnySolo: true, Tracks: []*trackNode{soloed, silent}}

	out := make([]float32, 512*2)
	mixer.Render(g, 0, 44100, out)

	m, ok := meters.Track(2)
	require.True(t, ok, "non-soloed track should still render and publish a meter for visual feedback")
	assert.Greater(t, m.PeakL, 0.0, "non-soloed track's meter should reflect its clip's signal")

	// The non-soloed track's signal must not be summed into the master bus,
	// so the mix should equal the soloed track rendered in isolation.
	soloOnly := &Graph{SampleRate: 44100, MasterGain: 1.0, Tracks: []*trackNode{{id: 1, clips: []*project.Clip{{Source: src, Duration: src.TotalDuration()}}}}}
	reference := make([]float32, 512*2)
	NewMixer(pool, NewMeterBus()).Render(soloOnly, 0, 44100, reference)

	assert.Equal(t, reference, out, "mix should equal the soloed track alone, since the non-soloed track must not be summed into the master bus")
}

func TestMixer_RenderInterpolatesMismatchedSampleRate(t *testing.T) {
	pool := NewBufferPool(2, 512)
	mixer := NewMixer(pool, nil)

	// Source at half the engine's rate: samples rise 0, 1, 2, 3... so a
	// source frame falling exactly halfway between two source samples
	// should read back as their average under linear interpolation, not
	// snap to one or the other.
	const srcRate = 22050
	samples := make([]float32, 0, 8)
	for i := 0; i < 4; i++ {
		v := float32(i)
		samples = append(samples, v, v) // stereo, both channels equal
	}
	src := &project.Source{Key: "ramp", SampleRate: srcRate, Channels: 2, TotalFrames: 4, Samples: samples}

	clip := &project.Clip{Source: src, StartTime: 0, Duration: src.TotalDuration()}
	node := &trackNode{id: 1, clips: []*project.Clip{clip}}
	g := &Graph{SampleRate: 44100, MasterGain: 1.0, Tracks: []*trackNode{node}}

	out := make([]float32, 8*2)
	mixer.Render(g, 0, 44100, out)

	// At the engine's 44100Hz, output frame 1 lands at t=1/44100s, which in
	// the 22050Hz source is srcPos=0.5 — exactly halfway between source
	// frames 0 (value 0) and 1 (value 1), so it should read back as 0.5,
	// not truncate down to 0.
	assert.InDelta(t, 0.5, out[2], 1e-6, "sample between two source frames should be linearly interpolated")
	assert.InDelta(t, 0.5, out[3], 1e-6, "sample between two source frames should be linearly interpolated")
}
