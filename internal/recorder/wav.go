package recorder

import (
	"os"
	"path/filepath"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/resonantfield/tapedeck/internal/errors"
)

const bitDepth = 16

// WriteWAV finalizes interleaved float32 samples to a 16-bit PCM WAV file
// at path, creating parent directories as needed and writing through a
// temp file plus atomic rename so a crash mid-export never leaves a
// truncated take on disk. Grounded on export.WAVExporter's
// temp-file-then-rename discipline, but delegates the actual encoding to
// go-audio/wav/go-audio/audio (already a real dependency of this module)
// rather than the teacher's hand-rolled RIFF header writer — the same
// library already carries the decode half of this format elsewhere in the
// stack, so there is no reason to hand-roll the encode half too.
func WriteWAV(path string, samples []float32, sampleRate, channels int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err).
			Component("recorder").
			Category(errors.CategoryFileIO).
			Context("operation", "create_export_directory").
			Context("path", filepath.Dir(path)).
			Build()
	}

	tempPath := path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return errors.Wrap(err).
			Component("recorder").
			Category(errors.CategoryFileIO).
			Context("operation", "create_temp_file").
			Context("path", tempPath).
			Build()
	}

	success := false
	defer func() {
		_ = file.Close()
		if !success {
			_ = os.Remove(tempPath)
		}
	}()

	encoder := wav.NewEncoder(file, sampleRate, bitDepth, channels, 1)
	intBuf := &audio.IntBuffer{
		Data:           float32ToInt16(samples),
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		SourceBitDepth: bitDepth,
	}
	if err := encoder.Write(intBuf); err != nil {
		return errors.Wrap(err).
			Component("recorder").
			Category(errors.CategoryFileIO).
			Context("operation", "write_wav_samples").
			Build()
	}
	if err := encoder.Close(); err != nil {
		return errors.Wrap(err).
			Component("recorder").
			Category(errors.CategoryFileIO).
			Context("operation", "close_wav_encoder").
			Build()
	}
	if err := file.Close(); err != nil {
		return errors.Wrap(err).
			Component("recorder").
			Category(errors.CategoryFileIO).
			Context("operation", "close_temp_file").
			Build()
	}

	if err := os.Rename(tempPath, path); err != nil {
		return errors.Wrap(err).
			Component("recorder").
			Category(errors.CategoryFileIO).
			Context("operation", "rename_export_file").
			Context("from", tempPath).
			Context("to", path).
			Build()
	}
	success = true
	return nil
}

func float32ToInt16(samples []float32) []int {
	out := make([]int, len(samples))
	for i, v := range samples {
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		out[i] = int(v * 32767)
	}
	return out
}

// TakeFileName builds a deterministic, collision-resistant file name for a
// recorded take, grounded on export.GenerateFileName's template+timestamp
// pattern, simplified to the fixed pieces this engine actually needs.
func TakeFileName(trackName string, takenAt time.Time) string {
	safe := sanitizeForFilename(trackName)
	return safe + "_" + takenAt.Format("20060102_150405") + ".wav"
}

func sanitizeForFilename(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		case r == ' ':
			out = append(out, '_')
		}
	}
	if len(out) == 0 {
		return "take"
	}
	return string(out)
}
