// root.go viper root command code
package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/resonantfield/tapedeck/cmd/authors"
	"github.com/resonantfield/tapedeck/cmd/backup"
	"github.com/resonantfield/tapedeck/cmd/license"
	"github.com/resonantfield/tapedeck/cmd/render"
	"github.com/resonantfield/tapedeck/cmd/restore"
	"github.com/resonantfield/tapedeck/cmd/serve"
	"github.com/resonantfield/tapedeck/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	// Create the root command
	rootCmd := &cobra.Command{
		Use:   "tapedeck",
		Short: "Tapedeck multitrack recording engine",
	}

	// Set up the global flags for the root command.
	err := setupFlags(rootCmd, settings)
	if err != nil {
		log.Printf("error setting up flags: %v\n", err)
	}

	// Add sub-commands to the root command.
	serveCmd := serve.Command(settings)
	renderCmd := render.Command(settings)
	authorsCmd := authors.Command()
	licenseCmd := license.Command()
	backupCmd := backup.Command(settings)
	restoreCmd := restore.Command(settings)

	subcommands := []*cobra.Command{
		serveCmd,
		renderCmd,
		authorsCmd,
		licenseCmd,
		backupCmd,
		restoreCmd,
	}

	rootCmd.AddCommand(subcommands...)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// Skip setup for authors and license commands
		if cmd.Name() != authorsCmd.Name() && cmd.Name() != licenseCmd.Name() {
			if err := initialize(); err != nil {
				return fmt.Errorf("error initializing: %w", err)
			}
		}

		return nil
	}

	return rootCmd
}

// initialize is called before any subcommands are run, but after the context is ready
// This function is responsible for setting up configurations, ensuring the environment is ready, etc.
func initialize() error {
	return nil
}

// defineGlobalFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&settings.API.Listen, "listen", viper.GetString("api.listen"), "Command surface listen address")
	rootCmd.PersistentFlags().StringVar(&settings.Paths.ProjectsDir, "projects-dir", viper.GetString("paths.projectsdir"), "Directory projects are saved/loaded from")

	// Bind flags to the viper settings
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}
