package dsp

import (
	"math"
	"sync/atomic"

	"github.com/resonantfield/tapedeck/internal/errors"
)

// GainPan applies stereo gain and equal-power panning to an interleaved
// stereo buffer. Gain and pan are stored in atomic.Value so the control
// thread can update them from a command without taking a lock the audio
// thread would ever have to wait on.
type GainPan struct {
	gain atomic.Value // float64, linear amplitude
	pan  atomic.Value // float64, -1 (left) .. +1 (right)
}

// NewGainPan builds a GainPan with the given initial linear gain and pan
// (-1..+1). gain must be >= 0; pan must be in [-1, 1].
func NewGainPan(initialGain, initialPan float64) (*GainPan, error) {
	if initialGain < 0 {
		return nil, errors.New(errors.NewStd("gain must be >= 0")).
			Category(errors.CategoryInvalidArgument).
			Component("dsp").
			Context("gain", initialGain).
			Build()
	}
	if initialPan < -1 || initialPan > 1 {
		return nil, errors.New(errors.NewStd("pan must be in [-1, 1]")).
			Category(errors.CategoryInvalidArgument).
			Component("dsp").
			Context("pan", initialPan).
			Build()
	}

	gp := &GainPan{}
	gp.gain.Store(initialGain)
	gp.pan.Store(initialPan)
	return gp, nil
}

// SetGain updates the linear gain. Safe to call from the control thread
// while the audio thread is concurrently calling ApplyBatch.
func (gp *GainPan) SetGain(gain float64) error {
	if gain < 0 {
		return errors.New(errors.NewStd("gain must be >= 0")).
			Category(errors.CategoryInvalidArgument).
			Component("dsp").
			Context("gain", gain).
			Build()
	}
	gp.gain.Store(gain)
	return nil
}

// SetPan updates the pan position. Safe to call concurrently with ApplyBatch.
func (gp *GainPan) SetPan(pan float64) error {
	if pan < -1 || pan > 1 {
		return errors.New(errors.NewStd("pan must be in [-1, 1]")).
			Category(errors.CategoryInvalidArgument).
			Component("dsp").
			Context("pan", pan).
			Build()
	}
	gp.pan.Store(pan)
	return nil
}

// Gain returns the current linear gain.
func (gp *GainPan) Gain() float64 {
	return gp.gain.Load().(float64)
}

// Pan returns the current pan position.
func (gp *GainPan) Pan() float64 {
	return gp.pan.Load().(float64)
}

// ApplyBatch applies gain and equal-power pan in place to an interleaved
// stereo (2-channel) buffer.
func (gp *GainPan) ApplyBatch(stereo []float64) {
	if gp == nil || len(stereo) == 0 {
		return
	}

	gain := gp.Gain()
	pan := gp.Pan()

	// Equal-power pan law: pan in [-1,1] maps to angle in [0, pi/2].
	angle := (pan + 1) * math.Pi / 4
	leftGain := gain * math.Cos(angle)
	rightGain := gain * math.Sin(angle)

	for i := 0; i+1 < len(stereo); i += 2 {
		stereo[i] *= leftGain
		stereo[i+1] *= rightGain
	}
}

// SoftClip applies a tanh soft-clipping curve in place, used on the master
// bus to avoid harsh digital clipping when summed tracks exceed full scale.
func SoftClip(buf []float64) {
	for i, x := range buf {
		buf[i] = math.Tanh(x)
	}
}
