// Package dsp implements the engine's per-sample signal processing blocks:
// biquad EQ filters, a feed-forward compressor, equal-power panning and
// master soft-clipping, and a linear-interpolation resampler.
package dsp

import (
	"math"

	"github.com/resonantfield/tapedeck/internal/errors"
)

// FilterType identifies one of the seven supported biquad filter shapes.
type FilterType int

const (
	LowPass FilterType = iota
	HighPass
	BandPass
	Notch
	Peaking
	LowShelf
	HighShelf
)

func (t FilterType) String() string {
	switch t {
	case LowPass:
		return "LowPass"
	case HighPass:
		return "HighPass"
	case BandPass:
		return "BandPass"
	case Notch:
		return "Notch"
	case Peaking:
		return "Peaking"
	case LowShelf:
		return "LowShelf"
	case HighShelf:
		return "HighShelf"
	default:
		return "Unknown"
	}
}

// Filter is a single cookbook biquad IIR filter with per-channel history.
// Coefficients are stored pre-divided by a0 (b0a0, b1a0, b2a0, a1a0, a2a0),
// and input/output history is held in channel-length slices so ApplyBatch
// can be called repeatedly on interleaved multi-channel buffers.
type Filter struct {
	name FilterType

	b0a0, b1a0, b2a0 float64
	a1a0, a2a0       float64

	channels int
	passes   int

	in1, in2   []float64
	out1, out2 []float64
}

// NewFilter builds a Filter from raw (already-normalized or not) biquad
// coefficients. a0 is the only coefficient that may legitimately be zero
// only for a zero-valued Filter{}; NewFilter always divides through by a0.
func NewFilter(name FilterType, a0, a1, a2, b0, b1, b2 float64, channels int) *Filter {
	return &Filter{
		name:     name,
		b0a0:     b0 / a0,
		b1a0:     b1 / a0,
		b2a0:     b2 / a0,
		a1a0:     a1 / a0,
		a2a0:     a2 / a0,
		channels: channels,
		passes:   1,
		in1:      make([]float64, channels),
		in2:      make([]float64, channels),
		out1:     make([]float64, channels),
		out2:     make([]float64, channels),
	}
}

// IsZero reports whether f is an uninitialized &Filter{} (as opposed to one
// built through NewFilter/New<Type>).
func (f *Filter) IsZero() bool {
	return f.channels == 0
}

// cookbookLowPass computes the RBJ Audio EQ Cookbook low-pass coefficients.
func cookbookLowPass(sampleRate, freq, q float64) (a0, a1, a2, b0, b1, b2 float64) {
	w0 := 2 * math.Pi * freq / sampleRate
	alpha := math.Sin(w0) / (2 * q)
	cosw0 := math.Cos(w0)

	b0 = (1 - cosw0) / 2
	b1 = 1 - cosw0
	b2 = (1 - cosw0) / 2
	a0 = 1 + alpha
	a1 = -2 * cosw0
	a2 = 1 - alpha
	return
}

func cookbookHighPass(sampleRate, freq, q float64) (a0, a1, a2, b0, b1, b2 float64) {
	w0 := 2 * math.Pi * freq / sampleRate
	alpha := math.Sin(w0) / (2 * q)
	cosw0 := math.Cos(w0)

	b0 = (1 + cosw0) / 2
	b1 = -(1 + cosw0)
	b2 = (1 + cosw0) / 2
	a0 = 1 + alpha
	a1 = -2 * cosw0
	a2 = 1 - alpha
	return
}

func cookbookBandPass(sampleRate, freq, q float64) (a0, a1, a2, b0, b1, b2 float64) {
	w0 := 2 * math.Pi * freq / sampleRate
	alpha := math.Sin(w0) / (2 * q)
	cosw0 := math.Cos(w0)

	b0 = alpha
	b1 = 0
	b2 = -alpha
	a0 = 1 + alpha
	a1 = -2 * cosw0
	a2 = 1 - alpha
	return
}

func cookbookNotch(sampleRate, freq, q float64) (a0, a1, a2, b0, b1, b2 float64) {
	w0 := 2 * math.Pi * freq / sampleRate
	alpha := math.Sin(w0) / (2 * q)
	cosw0 := math.Cos(w0)

	b0 = 1
	b1 = -2 * cosw0
	b2 = 1
	a0 = 1 + alpha
	a1 = -2 * cosw0
	a2 = 1 - alpha
	return
}

func cookbookPeaking(sampleRate, freq, q, gainDB float64) (a0, a1, a2, b0, b1, b2 float64) {
	w0 := 2 * math.Pi * freq / sampleRate
	alpha := math.Sin(w0) / (2 * q)
	cosw0 := math.Cos(w0)
	a := math.Pow(10, gainDB/40)

	b0 = 1 + alpha*a
	b1 = -2 * cosw0
	b2 = 1 - alpha*a
	a0 = 1 + alpha/a
	a1 = -2 * cosw0
	a2 = 1 - alpha/a
	return
}

func cookbookLowShelf(sampleRate, freq, q, gainDB float64) (a0, a1, a2, b0, b1, b2 float64) {
	w0 := 2 * math.Pi * freq / sampleRate
	a := math.Pow(10, gainDB/40)
	cosw0 := math.Cos(w0)
	sinw0 := math.Sin(w0)
	alpha := sinw0 / 2 * math.Sqrt((a+1/a)*(1/q-1)+2)
	twoSqrtAAlpha := 2 * math.Sqrt(a) * alpha

	b0 = a * ((a + 1) - (a-1)*cosw0 + twoSqrtAAlpha)
	b1 = 2 * a * ((a - 1) - (a+1)*cosw0)
	b2 = a * ((a + 1) - (a-1)*cosw0 - twoSqrtAAlpha)
	a0 = (a + 1) + (a-1)*cosw0 + twoSqrtAAlpha
	a1 = -2 * ((a - 1) + (a+1)*cosw0)
	a2 = (a + 1) + (a-1)*cosw0 - twoSqrtAAlpha
	return
}

func cookbookHighShelf(sampleRate, freq, q, gainDB float64) (a0, a1, a2, b0, b1, b2 float64) {
	w0 := 2 * math.Pi * freq / sampleRate
	a := math.Pow(10, gainDB/40)
	cosw0 := math.Cos(w0)
	sinw0 := math.Sin(w0)
	alpha := sinw0 / 2 * math.Sqrt((a+1/a)*(1/q-1)+2)
	twoSqrtAAlpha := 2 * math.Sqrt(a) * alpha

	b0 = a * ((a + 1) + (a-1)*cosw0 + twoSqrtAAlpha)
	b1 = -2 * a * ((a - 1) + (a+1)*cosw0)
	b2 = a * ((a + 1) + (a-1)*cosw0 - twoSqrtAAlpha)
	a0 = (a + 1) - (a-1)*cosw0 + twoSqrtAAlpha
	a1 = 2 * ((a - 1) - (a+1)*cosw0)
	a2 = (a + 1) - (a-1)*cosw0 - twoSqrtAAlpha
	return
}

func validatePasses(passes int) error {
	if passes < 1 {
		return errors.New(errors.NewStd("passes must be >= 1")).
			Category(errors.CategoryInvalidArgument).
			Component("dsp").
			Context("passes", passes).
			Build()
	}
	return nil
}

// NewLowPass builds a multi-pass low-pass Filter.
func NewLowPass(sampleRate, cutoffHz, q float64, channels, passes int) (*Filter, error) {
	if err := validatePasses(passes); err != nil {
		return nil, err
	}
	a0, a1, a2, b0, b1, b2 := cookbookLowPass(sampleRate, cutoffHz, q)
	f := NewFilter(LowPass, a0, a1, a2, b0, b1, b2, channels)
	f.passes = passes
	return f, nil
}

// NewHighPass builds a multi-pass high-pass Filter.
func NewHighPass(sampleRate, cutoffHz, q float64, channels, passes int) (*Filter, error) {
	if err := validatePasses(passes); err != nil {
		return nil, err
	}
	a0, a1, a2, b0, b1, b2 := cookbookHighPass(sampleRate, cutoffHz, q)
	f := NewFilter(HighPass, a0, a1, a2, b0, b1, b2, channels)
	f.passes = passes
	return f, nil
}

// NewBandPass builds a multi-pass band-pass Filter centered on freq.
func NewBandPass(sampleRate, freq, q float64, channels, passes int) (*Filter, error) {
	if err := validatePasses(passes); err != nil {
		return nil, err
	}
	a0, a1, a2, b0, b1, b2 := cookbookBandPass(sampleRate, freq, q)
	f := NewFilter(BandPass, a0, a1, a2, b0, b1, b2, channels)
	f.passes = passes
	return f, nil
}

// NewNotch builds a multi-pass notch (band-reject) Filter centered on freq.
func NewNotch(sampleRate, freq, q float64, channels, passes int) (*Filter, error) {
	if err := validatePasses(passes); err != nil {
		return nil, err
	}
	a0, a1, a2, b0, b1, b2 := cookbookNotch(sampleRate, freq, q)
	f := NewFilter(Notch, a0, a1, a2, b0, b1, b2, channels)
	f.passes = passes
	return f, nil
}

// NewPeaking builds a multi-pass parametric peaking Filter.
func NewPeaking(sampleRate, freq, q, gainDB float64, channels, passes int) (*Filter, error) {
	if err := validatePasses(passes); err != nil {
		return nil, err
	}
	a0, a1, a2, b0, b1, b2 := cookbookPeaking(sampleRate, freq, q, gainDB)
	f := NewFilter(Peaking, a0, a1, a2, b0, b1, b2, channels)
	f.passes = passes
	return f, nil
}

// NewLowShelf builds a multi-pass low-shelf Filter.
func NewLowShelf(sampleRate, freq, q, gainDB float64, channels, passes int) (*Filter, error) {
	if err := validatePasses(passes); err != nil {
		return nil, err
	}
	a0, a1, a2, b0, b1, b2 := cookbookLowShelf(sampleRate, freq, q, gainDB)
	f := NewFilter(LowShelf, a0, a1, a2, b0, b1, b2, channels)
	f.passes = passes
	return f, nil
}

// NewHighShelf builds a multi-pass high-shelf Filter.
func NewHighShelf(sampleRate, freq, q, gainDB float64, channels, passes int) (*Filter, error) {
	if err := validatePasses(passes); err != nil {
		return nil, err
	}
	a0, a1, a2, b0, b1, b2 := cookbookHighShelf(sampleRate, freq, q, gainDB)
	f := NewFilter(HighShelf, a0, a1, a2, b0, b1, b2, channels)
	f.passes = passes
	return f, nil
}

// ApplyBatch filters input in place. input is interleaved across f.channels
// channels; len(input) must be a multiple of f.channels. The filter is
// cascaded f.passes times to sharpen the rolloff.
func (f *Filter) ApplyBatch(input []float64) {
	if f.IsZero() || len(input) == 0 {
		return
	}
	for pass := 0; pass < f.passes; pass++ {
		for i := 0; i < len(input); i += f.channels {
			for ch := 0; ch < f.channels && i+ch < len(input); ch++ {
				x0 := input[i+ch]
				y0 := f.b0a0*x0 + f.b1a0*f.in1[ch] + f.b2a0*f.in2[ch] -
					f.a1a0*f.out1[ch] - f.a2a0*f.out2[ch]

				f.in2[ch] = f.in1[ch]
				f.in1[ch] = x0
				f.out2[ch] = f.out1[ch]
				f.out1[ch] = y0

				input[i+ch] = y0
			}
		}
	}
}

// FilterChain cascades zero or more Filters, applied in insertion order.
type FilterChain struct {
	filters []*Filter
}

// NewFilterChain returns an empty chain.
func NewFilterChain() *FilterChain {
	return &FilterChain{}
}

// AddFilter appends f to the chain. Returns an error for a nil or
// zero-valued filter.
func (fc *FilterChain) AddFilter(f *Filter) error {
	if f == nil || f.IsZero() {
		return errors.New(errors.NewStd("cannot add nil or uninitialized filter to chain")).
			Category(errors.CategoryInvalidArgument).
			Component("dsp").
			Build()
	}
	fc.filters = append(fc.filters, f)
	return nil
}

// Length returns the number of filters currently in the chain.
func (fc *FilterChain) Length() int {
	return len(fc.filters)
}

// ApplyBatch runs input through every filter in the chain, in order.
func (fc *FilterChain) ApplyBatch(input []float64) {
	for _, f := range fc.filters {
		f.ApplyBatch(input)
	}
}
