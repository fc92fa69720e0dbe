// Command tapedeck is the CLI entry point: load configuration, build the
// root cobra command tree, and execute it. Grounded on cmd/root.go's
// RootCommand convention; the teacher's own main.go did not survive
// retrieval (only a standalone root-level tflite smoke-test program did),
// so this wiring is reconstructed from root.go's expected call shape.
package main

import (
	"fmt"
	"os"

	"github.com/resonantfield/tapedeck/cmd"
	"github.com/resonantfield/tapedeck/internal/conf"
)

func main() {
	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading configuration: %v\n", err)
		os.Exit(1)
	}

	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
