package sourcecache

import (
	"io"

	"github.com/tphakala/flac"

	"github.com/resonantfield/tapedeck/internal/errors"
	"github.com/resonantfield/tapedeck/internal/project"
)

// decodeFLAC reads a FLAC file frame-by-frame with tphakala/flac (already a
// teacher dependency, previously unwired) and de-interleaves its per-channel
// int32 subframe samples into the engine's interleaved float32 format.
func (c *Cache) decodeFLAC(path string) (*project.Source, error) {
	stream, closer, err := flac.ParseFile(path)
	if err != nil {
		return nil, errors.Wrap(err).
			Component("sourcecache").
			Category(errors.CategoryDecode).
			Context("path", path).
			Build()
	}
	defer closer.Close()

	sampleRate := int(stream.Info.SampleRate)
	channels := int(stream.Info.NChannels)
	divisor := float32(int64(1) << (stream.Info.BitsPerSample - 1))

	var samples []float32
	for {
		frame, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err).
				Component("sourcecache").
				Category(errors.CategoryDecode).
				Context("path", path).
				Build()
		}

		nSamples := len(frame.Subframes[0].Samples)
		for i := 0; i < nSamples; i++ {
			for ch := 0; ch < channels; ch++ {
				samples = append(samples, float32(frame.Subframes[ch].Samples[i])/divisor)
			}
		}
	}

	return c.buildSource(path, sampleRate, channels, samples), nil
}
