package sourcecache

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/resonantfield/tapedeck/internal/errors"
	"github.com/resonantfield/tapedeck/internal/project"
)

// decode dispatches on file extension and produces a fully decoded Source,
// including its waveform summary, in one pass. Sample rate is preserved;
// no resampling happens at load time per the data model.
func (c *Cache) decode(ctx context.Context, path string) (*project.Source, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrap(err).
			Component("sourcecache").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".wav":
		return c.decodeWAV(path)
	case ".flac":
		return c.decodeFLAC(path)
	case ".mp3", ".ogg":
		return c.decodeViaFFmpeg(ctx, path)
	default:
		return nil, errors.New(errors.NewStd("unsupported audio file format")).
			Component("sourcecache").
			Category(errors.CategoryDecode).
			Context("path", path).
			Context("extension", ext).
			Build()
	}
}

// buildSource assembles a Source from raw interleaved float samples and
// computes its waveform summary in the same pass (Open Question (c)).
func (c *Cache) buildSource(key string, sampleRate, channels int, samples []float32) *project.Source {
	totalFrames := int64(len(samples) / channels)
	if channels == 0 {
		totalFrames = 0
	}

	return &project.Source{
		Key:             key,
		SampleRate:      sampleRate,
		Channels:        channels,
		TotalFrames:     totalFrames,
		Samples:         samples,
		WaveformSummary: computeWaveform(samples, channels, sampleRate, c.binsPerSecond),
		BinsPerSecond:   c.binsPerSecond,
	}
}

// computeWaveform produces a min/max-per-bin summary at binsPerSecond
// resolution, downmixing to mono first (summary is for visualization, not
// playback). Per Open Question (c), the stored bins-per-second is
// authoritative; this is the only place it's computed.
func computeWaveform(samples []float32, channels, sampleRate, binsPerSecond int) []project.WaveformBin {
	if channels <= 0 || sampleRate <= 0 || binsPerSecond <= 0 || len(samples) == 0 {
		return nil
	}

	frames := len(samples) / channels
	framesPerBin := sampleRate / binsPerSecond
	if framesPerBin <= 0 {
		framesPerBin = 1
	}
	numBins := (frames + framesPerBin - 1) / framesPerBin

	bins := make([]project.WaveformBin, 0, numBins)
	for bin := 0; bin < numBins; bin++ {
		start := bin * framesPerBin
		end := start + framesPerBin
		if end > frames {
			end = frames
		}

		var min, max float32
		first := true
		for f := start; f < end; f++ {
			var mono float32
			for ch := 0; ch < channels; ch++ {
				mono += samples[f*channels+ch]
			}
			mono /= float32(channels)

			if first {
				min, max = mono, mono
				first = false
				continue
			}
			if mono < min {
				min = mono
			}
			if mono > max {
				max = mono
			}
		}
		bins = append(bins, project.WaveformBin{Min: min, Max: max})
	}
	return bins
}
