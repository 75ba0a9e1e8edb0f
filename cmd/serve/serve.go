// Package serve implements the serve subcommand, the long-running API
// server of the annotation service.
package serve

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/diatomlab/diatom-annotator/internal/api"
	"github.com/diatomlab/diatom-annotator/internal/conf"
	"github.com/diatomlab/diatom-annotator/internal/datastore"
	"github.com/diatomlab/diatom-annotator/internal/httpclient"
	"github.com/diatomlab/diatom-annotator/internal/logging"
	"github.com/diatomlab/diatom-annotator/internal/objectstore"
	"github.com/diatomlab/diatom-annotator/internal/pdfops"
	"github.com/diatomlab/diatom-annotator/internal/session"
	"github.com/diatomlab/diatom-annotator/internal/species"
)

const shutdownTimeout = 10 * time.Second

// Command creates the serve command.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the annotation API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), settings)
		},
	}
}

func run(ctx context.Context, settings *conf.Settings) error {
	logger := logging.ForService("serve")

	store, err := objectstore.NewGCS(ctx, settings.Storage.CredentialsFile)
	if err != nil {
		return err
	}
	defer store.Close()

	mgr := session.New(store, settings)
	if err := mgr.Load(ctx); err != nil {
		return err
	}

	processor := pdfops.New(httpclient.New(httpclient.Config{}), store, settings)

	var assistant api.SpeciesAssistant
	if settings.Species.Enabled {
		a, err := species.NewAssistant(ctx, settings)
		if err != nil {
			logger.Warn("species assistant unavailable", "error", err)
		} else {
			assistant = a
		}
	}

	var ds datastore.Interface
	if settings.Tracker.Enabled {
		sqlite := datastore.New(settings.Tracker.Path)
		if err := sqlite.Open(); err != nil {
			return err
		}
		defer sqlite.Close()
		ds = sqlite
	}

	controller := api.New(settings, mgr, processor, assistant, ds)

	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf("%s:%d", settings.Server.Host, settings.Server.Port)
		if err := controller.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("shutting down", "reason", ctx.Err())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return controller.Echo.Shutdown(shutdownCtx)
}
