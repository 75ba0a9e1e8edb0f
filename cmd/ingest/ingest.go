// Package ingest implements the ingest subcommand, which processes one or
// more source PDFs into the session's papers document.
package ingest

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/diatomlab/diatom-annotator/internal/conf"
	"github.com/diatomlab/diatom-annotator/internal/datastore"
	"github.com/diatomlab/diatom-annotator/internal/httpclient"
	"github.com/diatomlab/diatom-annotator/internal/logging"
	"github.com/diatomlab/diatom-annotator/internal/model"
	"github.com/diatomlab/diatom-annotator/internal/objectstore"
	"github.com/diatomlab/diatom-annotator/internal/pdfops"
	"github.com/diatomlab/diatom-annotator/internal/session"
	"github.com/diatomlab/diatom-annotator/internal/species"
)

// Command creates the ingest command.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <pdf-url>...",
		Short: "Process source PDFs into the session document",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), settings, args)
		},
	}
}

func run(ctx context.Context, settings *conf.Settings, pdfURLs []string) error {
	logger := logging.ForService("ingest")

	store, err := objectstore.NewGCS(ctx, settings.Storage.CredentialsFile)
	if err != nil {
		return err
	}
	defer store.Close()

	mgr := session.New(store, settings)
	if err := mgr.Load(ctx); err != nil {
		return err
	}

	client := httpclient.New(httpclient.Config{})
	processor := pdfops.New(client, store, settings)

	var assistant *species.Assistant
	if settings.Species.Enabled {
		assistant, err = species.NewAssistant(ctx, settings)
		if err != nil {
			logger.Warn("species assistant unavailable, ingesting without species", "error", err)
			assistant = nil
		}
	}

	var tracker *datastore.SQLiteStore
	if settings.Tracker.Enabled {
		tracker = datastore.New(settings.Tracker.Path)
		if err := tracker.Open(); err != nil {
			return err
		}
		defer tracker.Close()
	}

	for _, pdfURL := range pdfURLs {
		if ok, err := client.Head(ctx, pdfURL); err != nil || !ok {
			logger.Warn("pdf url is not reachable, skipping", "pdf_url", pdfURL, "error", err)
			continue
		}

		paper, err := processor.ProcessURL(ctx, pdfURL)
		if err != nil {
			return err
		}

		if assistant != nil && paper.PDFTextContent != "" {
			info, err := assistant.ExtractPaperInfo(ctx, paper.PDFTextContent)
			if err != nil {
				logger.Warn("species extraction failed", "pdf_url", pdfURL, "error", err)
			} else {
				paper.DiatomsData = species.BuildDiatomsData(info, paper.ExtractedImages.PaperImageURLs)
			}
			paper.Citation = assistant.ExtractCitation(ctx, paper.FirstTwoPagesText)
		} else {
			paper.Citation = species.DefaultCitation()
		}

		// The upload is recorded before the document merge and marked
		// processed after, so an interrupted run leaves an unprocessed row.
		uploadID := ""
		if tracker != nil {
			upload := &datastore.PaperUpload{
				PDFURL:      pdfURL,
				Filename:    pdfops.FilenameFromURL(pdfURL),
				FileHash:    paper.ExtractedImages.FileHash,
				TotalImages: paper.ExtractedImages.TotalImages,
			}
			if err := tracker.SaveUpload(upload); err != nil {
				logger.Warn("failed to record upload", "pdf_url", pdfURL, "error", err)
			} else {
				uploadID = upload.UploadID
			}
		}

		if err := mgr.IngestPapers(ctx, []model.Paper{*paper}); err != nil {
			return err
		}

		if uploadID != "" {
			if err := tracker.MarkProcessed(uploadID); err != nil {
				logger.Warn("failed to mark upload processed", "upload_id", uploadID, "error", err)
			}
		}

		logger.Info("ingested paper",
			"pdf_url", pdfURL,
			"hash", paper.ExtractedImages.FileHash,
			"images", paper.ExtractedImages.TotalImages,
			"species", len(paper.DiatomsData.Info))
	}
	return nil
}
