package dsp

import (
	"github.com/resonantfield/tapedeck/internal/errors"
)

// Resampler converts interleaved multi-channel PCM from one sample rate to
// another using linear interpolation. Open Question (a) in the source
// specification allows this as "good enough" quality; no polyphase
// resampler exists anywhere in the corpus to ground a higher-quality path
// on, so the simpler documented option is what's implemented here.
type Resampler struct {
	fromRate int
	toRate   int
	channels int
}

// NewResampler builds a Resampler. fromRate/toRate must both be positive;
// channels must be positive.
func NewResampler(fromRate, toRate, channels int) (*Resampler, error) {
	if fromRate <= 0 || toRate <= 0 {
		return nil, errors.New(errors.NewStd("resampler rates must be > 0")).
			Category(errors.CategoryInvalidArgument).
			Component("dsp").
			Context("fromRate", fromRate).
			Context("toRate", toRate).
			Build()
	}
	if channels <= 0 {
		return nil, errors.New(errors.NewStd("resampler channels must be > 0")).
			Category(errors.CategoryInvalidArgument).
			Component("dsp").
			Context("channels", channels).
			Build()
	}

	return &Resampler{fromRate: fromRate, toRate: toRate, channels: channels}, nil
}

// Process resamples an interleaved input buffer and returns a newly
// allocated interleaved output buffer at the target rate. If fromRate
// equals toRate, it returns a copy of the input unchanged.
func (r *Resampler) Process(input []float64) []float64 {
	if r.fromRate == r.toRate {
		out := make([]float64, len(input))
		copy(out, input)
		return out
	}

	inFrames := len(input) / r.channels
	if inFrames == 0 {
		return nil
	}

	ratio := float64(r.toRate) / float64(r.fromRate)
	outFrames := int(float64(inFrames) * ratio)
	out := make([]float64, outFrames*r.channels)

	for outFrame := 0; outFrame < outFrames; outFrame++ {
		srcPos := float64(outFrame) / ratio
		srcFrame := int(srcPos)
		frac := srcPos - float64(srcFrame)

		nextFrame := srcFrame + 1
		if nextFrame >= inFrames {
			nextFrame = inFrames - 1
		}
		if srcFrame >= inFrames {
			srcFrame = inFrames - 1
		}

		for ch := 0; ch < r.channels; ch++ {
			a := input[srcFrame*r.channels+ch]
			b := input[nextFrame*r.channels+ch]
			out[outFrame*r.channels+ch] = a + (b-a)*frac
		}
	}

	return out
}
