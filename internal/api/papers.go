// papers.go: paper ingest and upload history endpoints.
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/diatomlab/diatom-annotator/internal/datastore"
	"github.com/diatomlab/diatom-annotator/internal/model"
	"github.com/diatomlab/diatom-annotator/internal/pdfops"
	"github.com/diatomlab/diatom-annotator/internal/species"
)

// IngestRequest is the payload of POST /api/v1/papers/ingest.
type IngestRequest struct {
	PDFURL string `json:"pdf_url"`
}

// IngestResponse reports what the ingest produced.
type IngestResponse struct {
	Success     bool   `json:"success"`
	PDFURL      string `json:"pdf_url"`
	FileHash    string `json:"file_hash"`
	TotalImages int    `json:"total_images"`
	Species     int    `json:"species"`
	UploadID    string `json:"upload_id,omitempty"`
	Duplicate   bool   `json:"duplicate"`
}

// IngestPaper downloads a PDF, extracts its text and images, runs species
// extraction when the assistant is available, and merges the resulting
// paper into the session document.
func (c *Controller) IngestPaper(ctx echo.Context) error {
	var req IngestRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "invalid ingest payload", http.StatusBadRequest)
	}
	if req.PDFURL == "" {
		return c.HandleError(ctx, nil, "pdf_url is required", http.StatusBadRequest)
	}

	reqCtx := ctx.Request().Context()
	paper, err := c.Processor.ProcessURL(reqCtx, req.PDFURL)
	if err != nil {
		return c.HandleError(ctx, err, "failed to process pdf", http.StatusBadGateway)
	}
	hash := paper.ExtractedImages.FileHash

	duplicate := false
	if c.DS != nil {
		existing, err := c.DS.GetUploadByHash(hash)
		if err != nil {
			return c.HandleError(ctx, err, "upload tracker lookup failed", http.StatusInternalServerError)
		}
		duplicate = existing != nil
	}

	speciesCount := 0
	if c.Assistant != nil && paper.PDFTextContent != "" {
		info, err := c.Assistant.ExtractPaperInfo(reqCtx, paper.PDFTextContent)
		if err != nil {
			c.logger.Warn("species extraction failed, ingesting without species",
				"pdf_url", req.PDFURL, "error", err)
		} else {
			paper.DiatomsData = species.BuildDiatomsData(info, paper.ExtractedImages.PaperImageURLs)
			speciesCount = len(paper.DiatomsData.Info)
		}
		paper.Citation = c.Assistant.ExtractCitation(reqCtx, paper.FirstTwoPagesText)
	} else {
		paper.Citation = species.DefaultCitation()
	}

	// The upload is recorded before the document merge and marked processed
	// after, so a failed merge leaves an unprocessed row.
	uploadID := ""
	if c.DS != nil {
		upload := &datastore.PaperUpload{
			PDFURL:      req.PDFURL,
			Filename:    pdfops.FilenameFromURL(req.PDFURL),
			FileHash:    hash,
			TotalImages: paper.ExtractedImages.TotalImages,
		}
		if err := c.DS.SaveUpload(upload); err != nil {
			c.logger.Warn("failed to record upload", "pdf_url", req.PDFURL, "error", err)
		} else {
			uploadID = upload.UploadID
		}
	}

	if err := c.Session.IngestPapers(reqCtx, []model.Paper{*paper}); err != nil {
		return c.HandleError(ctx, err, "failed to save papers document", http.StatusInternalServerError)
	}

	if uploadID != "" {
		if err := c.DS.MarkProcessed(uploadID); err != nil {
			c.logger.Warn("failed to mark upload processed", "upload_id", uploadID, "error", err)
		}
	}

	return ctx.JSON(http.StatusOK, &IngestResponse{
		Success:     true,
		PDFURL:      req.PDFURL,
		FileHash:    hash,
		TotalImages: paper.ExtractedImages.TotalImages,
		Species:     speciesCount,
		UploadID:    uploadID,
		Duplicate:   duplicate,
	})
}

// GetUpload serves one tracked upload by its upload ID.
func (c *Controller) GetUpload(ctx echo.Context) error {
	if c.DS == nil {
		return c.HandleError(ctx, nil, "upload tracker is disabled", http.StatusServiceUnavailable)
	}
	upload, err := c.DS.GetUpload(ctx.Param("id"))
	if err != nil {
		return c.HandleError(ctx, err, "upload tracker lookup failed", http.StatusInternalServerError)
	}
	if upload == nil {
		return c.HandleError(ctx, nil, "upload not found", http.StatusNotFound)
	}
	return ctx.JSON(http.StatusOK, upload)
}

// ListUploads serves the tracked paper uploads, newest first.
func (c *Controller) ListUploads(ctx echo.Context) error {
	if c.DS == nil {
		return c.HandleError(ctx, nil, "upload tracker is disabled", http.StatusServiceUnavailable)
	}
	uploads, err := c.DS.ListUploads(100)
	if err != nil {
		return c.HandleError(ctx, err, "failed to list uploads", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"uploads": uploads,
		"total":   len(uploads),
	})
}
