// diatoms.go: the labeling endpoints. These carry the wire shapes the
// labeling UI was built against, including the clamped index behavior of
// the diatoms fetch.
package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/diatomlab/diatom-annotator/internal/model"
	"github.com/diatomlab/diatom-annotator/internal/objectstore"
)

// DiatomsResponse is the payload of GET /api/v1/diatoms.
type DiatomsResponse struct {
	CurrentIndex int                `json:"current_index"`
	TotalImages  int                `json:"total_images"`
	Data         *model.DiatomsData `json:"data"`
	Error        string             `json:"error,omitempty"`
}

// GetDiatoms serves one image record by index. An out-of-range index is
// clamped into the valid range rather than rejected, so the UI's
// next/previous buttons cannot run off either end.
func (c *Controller) GetDiatoms(ctx echo.Context) error {
	total := c.Session.Count()
	if total == 0 {
		return ctx.JSON(http.StatusOK, &DiatomsResponse{
			Data:  &model.DiatomsData{},
			Error: "No diatoms data available",
		})
	}

	index := 0
	if raw := ctx.QueryParam("index"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return c.HandleError(ctx, err, "invalid index parameter", http.StatusBadRequest)
		}
		index = parsed
	}
	index = min(max(0, index), total-1)

	record, err := c.Session.DiatomsData(index)
	if err != nil {
		return c.HandleError(ctx, err, "failed to load image record", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, &DiatomsResponse{
		CurrentIndex: index,
		TotalImages:  total,
		Data:         record,
	})
}

// SaveRequest is the payload of POST /api/v1/diatoms/save.
type SaveRequest struct {
	ImageIndex int               `json:"image_index"`
	Info       []model.Detection `json:"info"`
}

// SaveResponse acknowledges a successful save.
type SaveResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	Timestamp  string `json:"timestamp"`
	SavedIndex int    `json:"saved_index"`
	GCPURL     string `json:"gcp_url"`
}

// SaveDiatoms replaces the detection list of one image record and persists
// the papers document.
func (c *Controller) SaveDiatoms(ctx echo.Context) error {
	var req SaveRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "invalid save payload", http.StatusBadRequest)
	}

	if err := c.Session.SaveDetections(ctx.Request().Context(), req.ImageIndex, req.Info); err != nil {
		return c.HandleError(ctx, err, "failed to save labels", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, &SaveResponse{
		Success:    true,
		Message:    "Labels saved successfully",
		Timestamp:  time.Now().Format(time.RFC3339),
		SavedIndex: req.ImageIndex,
		GCPURL: objectstore.PublicURL(
			c.Settings.Storage.Buckets.JSONFiles, c.Settings.PapersDocumentObject()),
	})
}

// DownloadLabels serves the session's image records as a JSON attachment.
func (c *Controller) DownloadLabels(ctx echo.Context) error {
	records := c.Session.Records()

	ctx.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="diatom_labels_%s.json"`, c.Settings.Session.ID))
	return ctx.JSONPretty(http.StatusOK, records, "    ")
}

// AssistantResponse is the payload of GET /api/v1/diatoms/assistant.
type AssistantResponse struct {
	Labels          []string          `json:"labels"`
	PDFTextContent  string            `json:"pdf_text_content"`
	SpeciesData     []model.Detection `json:"species_data"`
	LabelsRetrieved []string          `json:"labels_retrieved"`
	Message         string            `json:"message"`
	DataSaved       bool              `json:"data_saved"`
}

// DiatomListAssistant asks the species assistant which species in the
// paper's text are missing from the current labels, appends any findings
// to the record, and persists the document.
func (c *Controller) DiatomListAssistant(ctx echo.Context) error {
	if c.Assistant == nil {
		return c.HandleError(ctx, nil, "species assistant is disabled", http.StatusServiceUnavailable)
	}

	index := 0
	if raw := ctx.QueryParam("index"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return c.HandleError(ctx, err, "invalid index parameter", http.StatusBadRequest)
		}
		index = parsed
	}

	record, err := c.Session.DiatomsData(index)
	if err != nil {
		return c.HandleError(ctx, err, "no data available or invalid index", http.StatusNotFound)
	}

	labels := make([]string, 0, len(record.Info))
	for i := range record.Info {
		if len(record.Info[i].Label) > 0 {
			labels = append(labels, record.Info[i].Label[0])
		}
	}

	pdfText, err := c.Session.PaperText(index)
	if err != nil {
		return c.HandleError(ctx, err, "failed to load paper text", http.StatusInternalServerError)
	}

	result, err := c.Assistant.FindMissingSpecies(ctx.Request().Context(), pdfText, labels)
	if err != nil {
		return c.HandleError(ctx, err, "species assistant request failed", http.StatusInternalServerError)
	}

	saved := false
	if len(result.SpeciesData) > 0 {
		if err := c.Session.AppendDetections(ctx.Request().Context(), index, result.SpeciesData); err != nil {
			return c.HandleError(ctx, err, "failed to save assistant results", http.StatusInternalServerError)
		}
		saved = true
	}

	return ctx.JSON(http.StatusOK, &AssistantResponse{
		Labels:          labels,
		PDFTextContent:  pdfText,
		SpeciesData:     result.SpeciesData,
		LabelsRetrieved: result.LabelsRetrieved,
		Message:         result.Message,
		DataSaved:       saved,
	})
}
