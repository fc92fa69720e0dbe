package dsp

import (
	"math"

	"github.com/resonantfield/tapedeck/internal/errors"
)

// Compressor is a feed-forward peak-detecting dynamics processor with a
// log-domain one-pole envelope follower, following the same per-channel
// state-array convention as Filter so it can sit in the same per-track
// processing chain.
type Compressor struct {
	thresholdDB float64
	ratio       float64
	attackCoef  float64
	releaseCoef float64
	makeupGain  float64

	channels int
	envelope float64 // shared side-chain envelope, in dB
}

// NewCompressor builds a Compressor. attackMs/releaseMs are one-pole time
// constants in milliseconds; ratio must be >= 1 (1 disables gain reduction).
func NewCompressor(sampleRate, thresholdDB, ratio, attackMs, releaseMs, makeupGainDB float64, channels int) (*Compressor, error) {
	if ratio < 1 {
		return nil, errors.New(errors.NewStd("compressor ratio must be >= 1")).
			Category(errors.CategoryInvalidArgument).
			Component("dsp").
			Context("ratio", ratio).
			Build()
	}
	if attackMs <= 0 || releaseMs <= 0 {
		return nil, errors.New(errors.NewStd("compressor attack/release must be > 0ms")).
			Category(errors.CategoryInvalidArgument).
			Component("dsp").
			Context("attackMs", attackMs).
			Context("releaseMs", releaseMs).
			Build()
	}
	if channels <= 0 {
		return nil, errors.New(errors.NewStd("compressor channels must be > 0")).
			Category(errors.CategoryInvalidArgument).
			Component("dsp").
			Context("channels", channels).
			Build()
	}

	return &Compressor{
		thresholdDB: thresholdDB,
		ratio:       ratio,
		attackCoef:  timeConstantCoef(attackMs, sampleRate),
		releaseCoef: timeConstantCoef(releaseMs, sampleRate),
		makeupGain:  math.Pow(10, makeupGainDB/20),
		channels:    channels,
	}, nil
}

func timeConstantCoef(ms, sampleRate float64) float64 {
	return math.Exp(-1.0 / (ms * 0.001 * sampleRate))
}

// ApplyBatch runs the compressor in place over an interleaved buffer of
// `channels` per frame. The side-chain detector is max(|L|,|R|) across the
// frame's channels, and the resulting gain is applied uniformly to every
// channel so the stereo image is preserved.
func (c *Compressor) ApplyBatch(input []float64) {
	if c == nil || len(input) == 0 {
		return
	}

	for i := 0; i < len(input); i += c.channels {
		peak := 0.0
		for ch := 0; ch < c.channels && i+ch < len(input); ch++ {
			if a := math.Abs(input[i+ch]); a > peak {
				peak = a
			}
		}

		inputDB := amplitudeToDB(peak)
		coef := c.releaseCoef
		if inputDB > c.envelope {
			coef = c.attackCoef
		}
		c.envelope = coef*c.envelope + (1-coef)*inputDB

		gainReductionDB := 0.0
		if over := c.envelope - c.thresholdDB; over > 0 {
			gainReductionDB = over * (1 - 1/c.ratio)
		}

		gain := dbToAmplitude(-gainReductionDB) * c.makeupGain
		for ch := 0; ch < c.channels && i+ch < len(input); ch++ {
			input[i+ch] *= gain
		}
	}
}

func amplitudeToDB(amp float64) float64 {
	if amp <= 0 {
		return -144 // effective silence floor
	}
	return 20 * math.Log10(amp)
}

func dbToAmplitude(db float64) float64 {
	return math.Pow(10, db/20)
}
