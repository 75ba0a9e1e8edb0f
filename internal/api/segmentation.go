// segmentation.go: the segmentation upload endpoint. A segmentation file
// is plain text, one polygon per line, uploaded for one image of the
// session.
package api

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/diatomlab/diatom-annotator/internal/model"
)

// maxSegmentationBytes bounds an uploaded segmentation file. Real files
// are a few kilobytes.
const maxSegmentationBytes = 4 << 20

// SegmentationResponse is the payload of POST /api/v1/segmentation/upload.
type SegmentationResponse struct {
	Success  bool               `json:"success"`
	ImageURL string             `json:"image_url"`
	Matched  int                `json:"matched"`
	Total    int                `json:"total"`
	Data     *model.DiatomsData `json:"data"`
}

// UploadSegmentation accepts a segmentation text file for an image,
// reconciles it against the image's detections, and returns the enriched
// record. The file arrives as a multipart "file" part or as the raw
// "segmentation" form value; the target image is named by "image_url" or
// by its position via "image_index".
func (c *Controller) UploadSegmentation(ctx echo.Context) error {
	imageURL, err := c.targetImageURL(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "invalid image reference", http.StatusBadRequest)
	}

	text, err := segmentationTextFromRequest(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "failed to read segmentation file", http.StatusBadRequest)
	}
	if strings.TrimSpace(text) == "" {
		return c.HandleError(ctx, nil, "segmentation file is empty", http.StatusBadRequest)
	}

	record, err := c.Session.ApplySegmentation(ctx.Request().Context(), imageURL, text)
	if err != nil {
		return c.HandleError(ctx, err, "failed to apply segmentation", http.StatusInternalServerError)
	}

	matched := 0
	for i := range record.Segmentations {
		if record.Segmentations[i].Species != "" {
			matched++
		}
	}
	return ctx.JSON(http.StatusOK, &SegmentationResponse{
		Success:  true,
		ImageURL: imageURL,
		Matched:  matched,
		Total:    len(record.Segmentations),
		Data:     record,
	})
}

// targetImageURL resolves the image a segmentation upload applies to,
// from the "image_url" form value or from a session "image_index".
func (c *Controller) targetImageURL(ctx echo.Context) (string, error) {
	if imageURL := ctx.FormValue("image_url"); imageURL != "" {
		return imageURL, nil
	}
	raw := ctx.FormValue("image_index")
	if raw == "" {
		return "", fmt.Errorf("image_url or image_index is required")
	}
	index, err := strconv.Atoi(raw)
	if err != nil {
		return "", fmt.Errorf("invalid image_index %q", raw)
	}
	record, err := c.Session.DiatomsData(index)
	if err != nil {
		return "", err
	}
	return record.ImageURL, nil
}

func segmentationTextFromRequest(ctx echo.Context) (string, error) {
	if file, err := ctx.FormFile("file"); err == nil {
		src, err := file.Open()
		if err != nil {
			return "", err
		}
		defer src.Close()
		data, err := io.ReadAll(io.LimitReader(src, maxSegmentationBytes))
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	return ctx.FormValue("segmentation"), nil
}
