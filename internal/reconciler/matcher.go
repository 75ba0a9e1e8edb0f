// matcher.go: the reconciliation engine. Aligns freehand polygon
// segmentations with detector bounding boxes for the same image using the
// asymmetric intersection-over-polygon-box-area ratio, and enriches the
// record's segmentation entries with the winning detection's identity.
package reconciler

import (
	"math"
	"strconv"
	"strings"

	"github.com/diatomlab/diatom-annotator/internal/model"
)

// MatchThreshold is the minimum overlap ratio for a detection box to claim
// a polygon. A ratio of exactly 0.5 qualifies.
const MatchThreshold = 0.5

// Reconciler aligns segmentation polygons with detection boxes.
type Reconciler struct {
	threshold      float64
	fallbackWidth  float64
	fallbackHeight float64
}

// Config holds overrides for NewWithConfig. Zero values take the package
// defaults.
type Config struct {
	Threshold           float64
	FallbackImageWidth  float64 // used when a record carries no dimensions
	FallbackImageHeight float64
}

// New returns a Reconciler with the default match threshold and fallback
// image dimensions.
func New() *Reconciler {
	return NewWithConfig(Config{})
}

// NewWithConfig returns a Reconciler with the given overrides applied.
func NewWithConfig(cfg Config) *Reconciler {
	if cfg.Threshold <= 0 {
		cfg.Threshold = MatchThreshold
	}
	if cfg.FallbackImageWidth <= 0 {
		cfg.FallbackImageWidth = model.DefaultImageWidth
	}
	if cfg.FallbackImageHeight <= 0 {
		cfg.FallbackImageHeight = model.DefaultImageHeight
	}
	return &Reconciler{
		threshold:      cfg.Threshold,
		fallbackWidth:  cfg.FallbackImageWidth,
		fallbackHeight: cfg.FallbackImageHeight,
	}
}

// Reconcile processes a raw segmentation file against the image record and
// returns the record with each segmentation entry either enriched by its
// best-matching detection or left unmatched with zeroed computed fields.
//
// The record defines which segmentation indices exist; the file only
// supplies their geometry. Lines whose index has no entry in the record are
// skipped. The call never fails on malformed data: a bad line or bad bbox
// contributes an unmatched entry and processing continues. The record is
// mutated in place and also returned for call chaining.
func (r *Reconciler) Reconcile(record *model.DiatomsData, segmentationText string) *model.DiatomsData {
	if record == nil || segmentationText == "" || len(record.Segmentations) == 0 {
		return record
	}

	imageWidth, imageHeight := record.PixelSizeOr(r.fallbackWidth, r.fallbackHeight)

	for _, parsed := range ParseFile(segmentationText) {
		seg := record.SegmentationByIndex(parsed.Index)
		if seg == nil {
			continue
		}

		seg.Points = parsed.Points
		seg.PointsCount = parsed.PointsCount

		// Unmatched until a detection clears the threshold.
		seg.DenormalizedPoints = ""
		seg.DenormPointsBBox = ""
		seg.BBox = ""
		seg.YOLOBBox = ""
		seg.Species = ""
		seg.OverlapRatio = 0.0

		coords, err := parsePoints(parsed.Points)
		if err != nil || len(coords) == 0 {
			logger.Warn("segmentation entry has unparseable points, leaving unmatched",
				"index", parsed.Index, "error", err)
			continue
		}

		seg.DenormalizedPoints = denormalizePoints(coords, imageWidth, imageHeight)
		polygonBox, ok := pointsBBox(seg.DenormalizedPoints)
		if !ok {
			continue
		}
		seg.DenormPointsBBox = polygonBox.String()

		best, bestRatio := r.bestMatch(polygonBox, record.Info)
		if best == nil {
			continue
		}

		seg.BBox = best.BBox
		seg.YOLOBBox = best.YOLOBBox
		seg.Species = best.Species
		seg.OverlapRatio = bestRatio
		logger.Info("matched segmentation to detection box",
			"index", parsed.Index, "species", best.Species, "overlap_ratio", bestRatio)
	}

	return record
}

// bestMatch returns the detection with the strictly largest overlap ratio
// at or above the threshold, or nil when none qualifies. Strict comparison
// makes the first-encountered detection win ties, keeping matching
// deterministic in the detections' original order.
func (r *Reconciler) bestMatch(polygonBox model.BBox, detections []model.Detection) (*model.Detection, float64) {
	var best *model.Detection
	bestRatio := 0.0
	for i := range detections {
		if detections[i].BBox == "" {
			continue
		}
		ratio := OverlapRatio(polygonBox, detections[i].BBox)
		if ratio >= r.threshold && ratio > bestRatio {
			best = &detections[i]
			bestRatio = ratio
		}
	}
	return best, bestRatio
}

// OverlapRatio computes the intersection area of the polygon-derived box
// and a detection box, divided by the polygon box's own area. This is
// deliberately not IoU: segmentation polygons are usually tighter than the
// detector's box, so the containment question is "how much of the polygon
// box lies inside the detection box". Returns 0 for disjoint boxes, a
// zero-area polygon box, or a malformed detection bbox string.
func OverlapRatio(polygonBox model.BBox, detectionBBox string) float64 {
	detBox, err := model.ParseBBox(detectionBBox)
	if err != nil {
		logger.Warn("detection has malformed bbox, treating as no overlap",
			"bbox", detectionBBox, "error", err)
		return 0.0
	}
	intersection, ok := polygonBox.Intersection(detBox)
	if !ok {
		return 0.0
	}
	polygonArea := polygonBox.Area()
	if polygonArea <= 0 {
		return 0.0
	}
	return intersection.Area() / polygonArea
}

// denormalizePoints converts normalized coordinate pairs to a pixel-space
// points string, rounding to whole pixels as the labeling UI expects.
func denormalizePoints(coords []float64, imageWidth, imageHeight float64) string {
	out := make([]string, 0, len(coords))
	for i := 0; i+1 < len(coords); i += 2 {
		x, y := Denormalize(coords[i], coords[i+1], imageWidth, imageHeight)
		out = append(out,
			strconv.FormatFloat(math.Round(x), 'f', -1, 64),
			strconv.FormatFloat(math.Round(y), 'f', -1, 64))
	}
	return strings.Join(out, " ")
}

// pointsBBox derives the axis-aligned bounding box of a pixel-space points
// string: x1=min(xs), y1=min(ys), x2=max(xs), y2=max(ys).
func pointsBBox(points string) (model.BBox, bool) {
	coords, err := parsePoints(points)
	if err != nil || len(coords) < 2 {
		return model.BBox{}, false
	}
	box := model.BBox{
		X1: coords[0], Y1: coords[1],
		X2: coords[0], Y2: coords[1],
	}
	for i := 2; i+1 < len(coords); i += 2 {
		box.X1 = min(box.X1, coords[i])
		box.Y1 = min(box.Y1, coords[i+1])
		box.X2 = max(box.X2, coords[i])
		box.Y2 = max(box.Y2, coords[i+1])
	}
	return box, true
}
