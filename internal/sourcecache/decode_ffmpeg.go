package sourcecache

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/resonantfield/tapedeck/internal/errors"
	"github.com/resonantfield/tapedeck/internal/project"
)

// decodeViaFFmpeg decodes MP3/OGG sources by shelling out to ffmpeg,
// adapted from the subprocess-invocation idiom in the teacher's
// internal/audiocore/utils/ffmpeg package (exec.CommandContext, structured
// error wrapping) — simplified here from that package's long-running
// RTSP-transcode supervisor (health checks, watchdog, circuit breaker) down
// to a one-shot decode-to-WAV-then-read, since a file decode has no stream
// to supervise.
func (c *Cache) decodeViaFFmpeg(ctx context.Context, path string) (*project.Source, error) {
	tmpDir, err := os.MkdirTemp("", "tapedeck-decode-*")
	if err != nil {
		return nil, errors.Wrap(err).
			Component("sourcecache").
			Category(errors.CategoryFileIO).
			Build()
	}
	defer os.RemoveAll(tmpDir)

	wavPath := filepath.Join(tmpDir, "decoded.wav")

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-hide_banner", "-loglevel", "error",
		"-i", path,
		"-c:a", "pcm_f32le",
		wavPath,
	)

	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, errors.Wrap(err).
			Component("sourcecache").
			Category(errors.CategoryDecode).
			Context("path", path).
			Context("ffmpeg_output", string(out)).
			Build()
	}

	src, err := c.decodeWAV(wavPath)
	if err != nil {
		return nil, err
	}
	src.Key = path
	return src, nil
}
