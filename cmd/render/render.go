// Package render implements the offline-render subcommand: load a
// project, render a frame range to a WAV file as fast as the machine
// allows, and exit. Grounded on the teacher's cmd/file (single-file
// analysis CLI), generalized from "analyze one file" to "render one
// project range".
package render

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/resonantfield/tapedeck/internal/conf"
	"github.com/resonantfield/tapedeck/internal/engine"
	"github.com/resonantfield/tapedeck/internal/offline"
)

type flags struct {
	output      string
	startFrame  uint64
	endFrame    uint64
	blockFrames int
}

// Command builds the "render" subcommand.
func Command(settings *conf.Settings) *cobra.Command {
	f := &flags{}

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render the current project offline to a WAV file",
		Long:  "Renders a frame range of the engine's current project graph to a WAV file faster than real time.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, settings, f)
		},
	}

	cmd.Flags().StringVar(&f.output, "output", viper.GetString("render.output"), "Output WAV file path")
	cmd.Flags().Uint64Var(&f.startFrame, "start", 0, "Start frame (inclusive)")
	cmd.Flags().Uint64Var(&f.endFrame, "end", 0, "End frame (exclusive)")
	cmd.Flags().IntVar(&f.blockFrames, "block-frames", 0, "Render block size in frames (defaults to engine.buffer_frames)")

	if err := cmd.MarkFlagRequired("output"); err != nil {
		panic(err)
	}
	if err := cmd.MarkFlagRequired("end"); err != nil {
		panic(err)
	}

	return cmd
}

func run(cmd *cobra.Command, settings *conf.Settings, f *flags) error {
	blockFrames := f.blockFrames
	if blockFrames <= 0 {
		blockFrames = settings.Engine.BufferFrames
	}

	eng := engine.New(settings.Engine.SampleRate, blockFrames, settings.Engine.Channels)

	opts := offline.Options{
		BlockFrames: blockFrames,
		OnProgress: func(p offline.Progress) {
			fmt.Fprintf(cmd.OutOrStdout(), "rendered %d/%d frames (%.1fs elapsed)\n",
				p.FramesRendered, p.TotalFrames, p.Elapsed.Seconds())
		},
	}

	return offline.Render(cmd.Context(), eng, f.output, f.startFrame, f.endFrame, settings.Engine.Channels, opts)
}
