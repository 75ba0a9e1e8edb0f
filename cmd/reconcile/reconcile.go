// Package reconcile implements the reconcile subcommand, a one-shot run
// of segmentation reconciliation over the whole session.
package reconcile

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/diatomlab/diatom-annotator/internal/conf"
	"github.com/diatomlab/diatom-annotator/internal/logging"
	"github.com/diatomlab/diatom-annotator/internal/objectstore"
	"github.com/diatomlab/diatom-annotator/internal/session"
)

// Command creates the reconcile command.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Reconcile uploaded segmentations against detection boxes",
		Long: "Loads the session's papers document, re-runs segmentation " +
			"reconciliation for every image that has an uploaded segmentation " +
			"file, and saves the updated document.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), settings)
		},
	}
}

func run(ctx context.Context, settings *conf.Settings) error {
	logger := logging.ForService("reconcile")

	store, err := objectstore.NewGCS(ctx, settings.Storage.CredentialsFile)
	if err != nil {
		return err
	}
	defer store.Close()

	mgr := session.New(store, settings)
	if err := mgr.Load(ctx); err != nil {
		return err
	}

	touched, err := mgr.ReconcileAll(ctx)
	if err != nil {
		return err
	}
	logger.Info("reconciliation finished", "session", settings.Session.ID, "records", touched)
	if hr := logging.HumanReadable(); hr != nil {
		hr.Info("reconciliation finished", "session", settings.Session.ID, "records", touched)
	}
	return nil
}
