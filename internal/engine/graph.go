package engine

import (
	"sync/atomic"

	"github.com/resonantfield/tapedeck/internal/dsp"
	"github.com/resonantfield/tapedeck/internal/project"
)

// trackNode is the audio thread's realtime-safe view of one project.Track:
// everything the mixer needs to render a block without touching project
// state directly (no mutex, no pointer chasing into types that might be
// concurrently mutated by a command).
type trackNode struct {
	id   uint64
	name string

	gain  float64
	pan   float64
	muted bool
	solo  bool

	eq         *dsp.FilterChain
	compressor *dsp.Compressor
	gainPan    *dsp.GainPan

	clips []*project.Clip
}

// Graph is an immutable snapshot of the project's mixer topology: track
// list, per-track DSP chains, and master gain. The control thread builds a
// new Graph whenever a structural command lands (add/remove track or clip,
// EQ/compressor change) and swaps it in with a single atomic store; the
// audio thread loads it once per callback. This is the generalization of
// the teacher's globalMetrics atomic.Pointer[MetricsCollector] idiom from a
// singleton metrics instance to a whole swappable topology.
type Graph struct {
	Tracks     []*trackNode
	MasterGain float64
	AnySolo    bool
	SampleRate int
}

// GraphHolder owns the atomic.Pointer that the audio thread reads from and
// the control thread writes to.
type GraphHolder struct {
	current atomic.Pointer[Graph]
}

// NewGraphHolder returns a holder seeded with an empty graph at the given
// sample rate, so the audio thread never observes a nil snapshot.
func NewGraphHolder(sampleRate int) *GraphHolder {
	h := &GraphHolder{}
	h.current.Store(&Graph{SampleRate: sampleRate, MasterGain: 1.0})
	return h
}

// Load returns the current graph snapshot. Safe to call from the audio
// thread; never blocks, never allocates.
func (h *GraphHolder) Load() *Graph {
	return h.current.Load()
}

// Store publishes a new graph snapshot. Called only from the control
// thread, after a structural command has rebuilt the DSP chains.
func (h *GraphHolder) Store(g *Graph) {
	h.current.Store(g)
}

// BuildGraph rebuilds a full Graph from the current project state,
// constructing fresh DSP chain instances for every track. Called by the
// control thread after any command that changes topology (not just gain/pan,
// which Rebuild-free commands can mutate in place on the live trackNode —
// see ApplyGainPan).
func BuildGraph(p *project.Project, sampleRate int) (*Graph, error) {
	g := &Graph{
		MasterGain: p.MasterGain,
		AnySolo:    p.AnySolo(),
		SampleRate: sampleRate,
	}

	for _, t := range p.Tracks {
		node, err := buildTrackNode(t, sampleRate)
		if err != nil {
			return nil, err
		}
		g.Tracks = append(g.Tracks, node)
	}
	return g, nil
}

func buildTrackNode(t *project.Track, sampleRate int) (*trackNode, error) {
	node := &trackNode{
		id:    t.ID,
		name:  t.Name,
		gain:  t.Gain,
		pan:   t.Pan,
		muted: t.Muted,
		solo:  t.Solo,
		clips: t.Clips,
	}

	chain := dsp.NewFilterChain()
	for _, band := range t.EQ {
		if !band.Active {
			continue
		}
		f, err := newBandFilter(band, sampleRate)
		if err != nil {
			return nil, err
		}
		if err := chain.AddFilter(f); err != nil {
			return nil, err
		}
	}
	node.eq = chain

	if t.Compressor.Active {
		comp, err := dsp.NewCompressor(float64(sampleRate),
			t.Compressor.ThresholdDB, t.Compressor.Ratio,
			t.Compressor.AttackMs, t.Compressor.ReleaseMs,
			t.Compressor.MakeupGainDB, 2)
		if err != nil {
			return nil, err
		}
		node.compressor = comp
	}

	gp, err := dsp.NewGainPan(t.Gain, t.Pan)
	if err != nil {
		return nil, err
	}
	node.gainPan = gp

	return node, nil
}

func newBandFilter(band project.EQBand, sampleRate int) (*dsp.Filter, error) {
	const passes = 1
	const channels = 2
	switch band.Type {
	case dsp.LowPass:
		return dsp.NewLowPass(float64(sampleRate), band.Frequency, band.Q, channels, passes)
	case dsp.HighPass:
		return dsp.NewHighPass(float64(sampleRate), band.Frequency, band.Q, channels, passes)
	case dsp.BandPass:
		return dsp.NewBandPass(float64(sampleRate), band.Frequency, band.Q, channels, passes)
	case dsp.Notch:
		return dsp.NewNotch(float64(sampleRate), band.Frequency, band.Q, channels, passes)
	case dsp.Peaking:
		return dsp.NewPeaking(float64(sampleRate), band.Frequency, band.Q, band.GainDB, channels, passes)
	case dsp.LowShelf:
		return dsp.NewLowShelf(float64(sampleRate), band.Frequency, band.Q, band.GainDB, channels, passes)
	default:
		return dsp.NewHighShelf(float64(sampleRate), band.Frequency, band.Q, band.GainDB, channels, passes)
	}
}
