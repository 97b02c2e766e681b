// Package cli implements the drawbridge command-line interface using Cobra.
// It resolves per-feature credentials and runs subprocesses with them.
package cli

import (
	"path/filepath"

	"github.com/majorcontext/drawbridge/internal/config"
	"github.com/majorcontext/drawbridge/internal/log"
	"github.com/spf13/cobra"
)

const annotationInteractive = "interactive"

var (
	verbose bool
	jsonOut bool
)

var rootCmd = &cobra.Command{
	Use:   "drawbridge",
	Short: "Drawbridge - credential routing for background tasks",
	Long: `Drawbridge decides which account a background feature runs with
and launches it with the right environment.

In global mode every feature uses the active account. In per_feature mode
features are pinned to accounts and fall back automatically when the pinned
account is unusable.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		settings, err := config.Load(config.SettingsPath())
		if err != nil {
			cmd.PrintErrf("Warning: %v\n", err)
		}

		// Commands that hand the terminal to a subprocess keep stderr quiet.
		_, interactive := cmd.Annotations[annotationInteractive]

		if err := log.Init(log.Options{
			Verbose:       verbose,
			JSONFormat:    jsonOut,
			Interactive:   interactive,
			DebugDir:      filepath.Join(config.Dir(), "debug"),
			RetentionDays: settings.Debug.RetentionDays,
		}); err != nil {
			// Non-fatal: fall back to the default logger.
			cmd.PrintErrf("Warning: failed to initialize debug logging: %v\n", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		log.Close()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output in JSON format")
}
