package sourcecache

import (
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/resonantfield/tapedeck/internal/errors"
	"github.com/resonantfield/tapedeck/internal/project"
)

// decodeWAV reads a WAV file with go-audio/wav, matching the
// NewDecoder/ReadInfo/PCMBuffer idiom the teacher uses in its own
// readAudioData, generalized here from a fixed 48kHz mono model input to
// whatever sample rate/channel count/bit depth the file actually has.
func (c *Cache) decodeWAV(path string) (*project.Source, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err).
			Component("sourcecache").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return nil, errors.New(errors.NewStd("not a valid WAV file")).
			Component("sourcecache").
			Category(errors.CategoryDecode).
			Context("path", path).
			Build()
	}

	channels := int(decoder.NumChans)
	sampleRate := int(decoder.SampleRate)

	var divisor float32
	switch decoder.BitDepth {
	case 8:
		divisor = 128.0
	case 16:
		divisor = 32768.0
	case 24:
		divisor = 8388608.0
	case 32:
		divisor = 2147483648.0
	default:
		return nil, errors.New(errors.NewStd("unsupported WAV bit depth")).
			Component("sourcecache").
			Category(errors.CategoryDecode).
			Context("path", path).
			Context("bit_depth", decoder.BitDepth).
			Build()
	}

	const chunkFrames = 8192
	buf := &audio.IntBuffer{
		Data:   make([]int, chunkFrames*channels),
		Format: &audio.Format{SampleRate: sampleRate, NumChannels: channels},
	}

	var samples []float32
	for {
		n, err := decoder.PCMBuffer(buf)
		if err != nil {
			return nil, errors.Wrap(err).
				Component("sourcecache").
				Category(errors.CategoryDecode).
				Context("path", path).
				Build()
		}
		if n == 0 {
			break
		}
		for _, s := range buf.Data[:n] {
			samples = append(samples, float32(s)/divisor)
		}
	}

	return c.buildSource(path, sampleRate, channels, samples), nil
}
