// model.go: typed records for the per-paper JSON documents stored in GCS.
// The wire format predates this service and must round-trip unchanged, so
// several numeric fields are carried as strings exactly as the documents
// store them.
package model

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Default pixel dimensions used when a record does not carry its image size.
const (
	DefaultImageWidth  = 1024.0
	DefaultImageHeight = 768.0
)

// Paper is one entry of the per-session papers document. Everything except
// DiatomsData is populated once at ingest time and passed through untouched
// by the labeling flow.
type Paper struct {
	PDFFileURL        string          `json:"pdf_file_url"`
	PDFTextContent    string          `json:"pdf_text_content,omitempty"`
	FirstTwoPagesText string          `json:"first_two_pages_text_content,omitempty"`
	Citation          *Citation       `json:"citation,omitempty"`
	PaperInfo         json.RawMessage `json:"paper_info,omitempty"`
	ExtractedImages   *ExtractedPDF   `json:"extracted_images_file_metadata,omitempty"`
	DiatomsData       DiatomsData     `json:"diatoms_data"`
}

// Citation holds bibliographic information for a source paper.
type Citation struct {
	Authors           []string `json:"authors"`
	Year              string   `json:"year"`
	Title             string   `json:"title"`
	Type              string   `json:"type"`
	JournalName       string   `json:"journal_name"`
	JournalVolume     string   `json:"journal_volume"`
	JournalIssue      string   `json:"journal_issue"`
	JournalPages      string   `json:"journal_pages"`
	OrgName           string   `json:"org_name"`
	OrgReportNumber   string   `json:"org_report_number"`
	DigitalDOI        string   `json:"digital_doi"`
	DigitalURL        string   `json:"digital_url"`
	FormattedCitation string   `json:"formatted_citation"`
}

// DiatomsData is the unified image record: one plate image, its detector
// bounding boxes (Info) and its polygon segmentations, joined by the
// reconciler. Image dimensions are wire strings and may be empty.
type DiatomsData struct {
	ImageURL      string              `json:"image_url"`
	ImageWidth    string              `json:"image_width"`
	ImageHeight   string              `json:"image_height"`
	Info          []Detection         `json:"info"`
	Segmentations []SegmentationEntry `json:"segmentation_indices_array,omitempty"`
}

// diatomsDataAlias avoids UnmarshalJSON recursion.
type diatomsDataAlias DiatomsData

// UnmarshalJSON accepts both the object form and the legacy form where the
// whole record was double-encoded as a JSON string.
func (d *DiatomsData) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "\"") {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return err
		}
		if inner == "" {
			*d = DiatomsData{}
			return nil
		}
		data = []byte(inner)
	}
	var alias diatomsDataAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	*d = DiatomsData(alias)
	return nil
}

// PixelSizeOr returns the record's dimensions in pixels, substituting the
// given fallbacks when either dimension is absent or unparseable. Records
// produced by the extraction pipeline often predate dimension capture, so
// the fallback is deliberate rather than a silent zero.
func (d *DiatomsData) PixelSizeOr(fallbackWidth, fallbackHeight float64) (width, height float64) {
	width = parseDimension(d.ImageWidth, fallbackWidth)
	height = parseDimension(d.ImageHeight, fallbackHeight)
	return width, height
}

func parseDimension(s string, fallback float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

// SegmentationByIndex returns a pointer to the segmentation entry with the
// given index, or nil if the record does not define it. Indices are unique
// within one record.
func (d *DiatomsData) SegmentationByIndex(index int) *SegmentationEntry {
	for i := range d.Segmentations {
		if d.Segmentations[i].Index == index {
			return &d.Segmentations[i]
		}
	}
	return nil
}

// Detection is a bounding-box-labeled candidate object produced by a prior
// detection or manual labeling pass. Segmentation and Embeddings are opaque
// passthrough fields owned by other pipeline stages.
type Detection struct {
	Label           []string        `json:"label"`
	Index           int             `json:"index"`
	Species         string          `json:"species"`
	BBox            string          `json:"bbox"`
	YOLOBBox        string          `json:"yolo_bbox"`
	Segmentation    string          `json:"segmentation"`
	Embeddings      string          `json:"embeddings"`
	FullSpeciesInfo json.RawMessage `json:"full_species_info,omitempty"`
}

// SegmentationEntry is a freehand polygon outline produced by a separate
// annotation pass. The computed fields are zeroed on every reconciliation
// run and filled only when a detection box qualifies as a match.
type SegmentationEntry struct {
	Index       int    `json:"index"`
	Label       int    `json:"label"`
	Points      string `json:"segmentation_points"`
	PointsCount int    `json:"points_count"`

	// Computed by the reconciler.
	DenormalizedPoints string  `json:"denormalized_segmentation_points"`
	DenormPointsBBox   string  `json:"denorm_points_bbox"`
	BBox               string  `json:"bbox"`
	YOLOBBox           string  `json:"yolo_bbox"`
	Species            string  `json:"species"`
	OverlapRatio       float64 `json:"overlap_ratio"`
}

// ExtractedPDF describes the images pulled out of one PDF.
type ExtractedPDF struct {
	FileHash       string       `json:"file_256_hash"`
	ImagesInDoc    []PageInfo   `json:"images_in_doc"`
	PaperImageURLs []string     `json:"paper_image_urls"`
	TotalImages    int          `json:"total_images"`
	PageDetails    []PageImages `json:"page_details"`
}

// PageInfo records per-page image counts for a processed PDF.
type PageInfo struct {
	PageIndex  int      `json:"page_index"`
	TotalPages int      `json:"total_pages"`
	HasImages  bool     `json:"has_images"`
	NumImages  int      `json:"num_images"`
	ImageURLs  []string `json:"image_urls"`
}

// PageImages lists the uploaded image URLs for a page that had any.
type PageImages struct {
	PageIndex int      `json:"page_index"`
	NumImages int      `json:"num_images"`
	ImageURLs []string `json:"image_urls"`
}

// ReformatLabelsToSpaces converts underscore-formatted display labels
// ("14 Lyrella_spectabilis") to their space-separated form for prompting.
func ReformatLabelsToSpaces(labels []string) []string {
	out := make([]string, len(labels))
	for i, label := range labels {
		out[i] = strings.ReplaceAll(label, "_", " ")
	}
	return out
}
