// Package cmd assembles the CLI from its subcommands.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/diatomlab/diatom-annotator/cmd/ingest"
	"github.com/diatomlab/diatom-annotator/cmd/reconcile"
	"github.com/diatomlab/diatom-annotator/cmd/serve"
	"github.com/diatomlab/diatom-annotator/internal/conf"
)

// RootCommand creates and returns the root command.
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "diatom-annotator",
		Short: "Diatom species annotation service",
		Long: "diatom-annotator serves the diatom labeling API, reconciles polygon " +
			"segmentations against detection boxes, and ingests source papers.",
	}

	setupFlags(rootCmd, settings)

	rootCmd.AddCommand(
		serve.Command(settings),
		reconcile.Command(settings),
		ingest.Command(settings),
	)

	return rootCmd
}

// setupFlags configures the global flags shared by every subcommand.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) {
	cmd.PersistentFlags().BoolVarP(&settings.Main.Debug, "debug", "d", settings.Main.Debug, "Enable debug output")
	cmd.PersistentFlags().StringVar(&settings.Session.ID, "session", settings.Session.ID, "Labeling session identifier")
	cmd.PersistentFlags().StringVar(&settings.Storage.CredentialsFile, "credentials", settings.Storage.CredentialsFile, "Path to a service account key file")
}
