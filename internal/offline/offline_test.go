package offline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/wav"

	"github.com/resonantfield/tapedeck/internal/engine"
	"github.com/resonantfield/tapedeck/internal/project"
)

func TestRender_RejectsEmptyRange(t *testing.T) {
	eng := engine.New(8000, 256, 2)
	err := Render(context.Background(), eng, filepath.Join(t.TempDir(), "out.wav"), 100, 100, 2, Options{})
	if err == nil {
		t.Fatal("expected error for empty frame range")
	}
}

func TestRender_ProducesPlayableWAVFile(t *testing.T) {
	const sampleRate = 8000
	const channels = 2

	eng := engine.New(sampleRate, 256, channels)
	eng.Commands.Submit(&project.CreateTrack{Name: "test"})
	out := make([]float32, 256*channels)
	if err := eng.RenderBlock(out); err != nil {
		t.Fatal(err)
	}

	outPath := filepath.Join(t.TempDir(), "render.wav")
	var lastProgress Progress
	err := Render(context.Background(), eng, outPath, 0, uint64(sampleRate), channels, Options{
		BlockFrames:   512,
		ProgressEvery: time.Millisecond,
		OnProgress:    func(p Progress) { lastProgress = p },
	})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	f, err := os.Open(outPath)
	if err != nil {
		t.Fatalf("output file missing: %v", err)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		t.Fatal("rendered file is not a valid WAV file")
	}
	if int(decoder.NumChans) != channels {
		t.Errorf("expected %d channels, got %d", channels, decoder.NumChans)
	}
	if int(decoder.SampleRate) != sampleRate {
		t.Errorf("expected sample rate %d, got %d", sampleRate, decoder.SampleRate)
	}
	_ = lastProgress
}

func TestRender_CancelledContextStopsEarly(t *testing.T) {
	eng := engine.New(8000, 256, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Render(ctx, eng, filepath.Join(t.TempDir(), "cancelled.wav"), 0, 8000, 2, Options{})
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}
