// parser.go: line-oriented segmentation file parsing. One polygon per line:
// "<int label> <x1> <y1> ... <xn> <yn>", coordinates normalized to [0,1].
package reconciler

import (
	"strconv"
	"strings"

	"github.com/diatomlab/diatom-annotator/internal/model"
)

// ParseLine splits a segmentation line into its integer class label and the
// rejoined points string. A line with fewer than 3 tokens or a non-integer
// first token is invalid: ok is false and the caller skips it.
func ParseLine(line string) (label int, points string, ok bool) {
	parts := strings.Fields(line)
	if len(parts) < 3 {
		return 0, "", false
	}
	label, err := strconv.Atoi(parts[0])
	if err != nil {
		logger.Warn("segmentation line has non-integer label, skipping", "token", parts[0])
		return 0, "", false
	}
	return label, strings.Join(parts[1:], " "), true
}

// ParseFile parses a whole segmentation file into structured entries.
// Indices are assigned densely over the valid lines in their original
// top-to-bottom order: blank or malformed lines are dropped and do not
// consume an index slot.
func ParseFile(content string) []model.SegmentationEntry {
	var entries []model.SegmentationEntry
	for _, line := range strings.Split(strings.TrimSpace(content), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		label, points, ok := ParseLine(line)
		if !ok {
			continue
		}
		entries = append(entries, model.SegmentationEntry{
			Index:       len(entries),
			Label:       label,
			Points:      points,
			PointsCount: len(strings.Fields(points)) / 2,
		})
	}
	return entries
}

// parsePoints converts a space-separated points string into float pairs,
// dropping a trailing unpaired token. An unparseable token is an error; the
// caller treats the whole line as unmatched.
func parsePoints(points string) ([]float64, error) {
	tokens := strings.Fields(points)
	coords := make([]float64, 0, len(tokens))
	for _, tok := range tokens {
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, err
		}
		coords = append(coords, v)
	}
	if len(coords)%2 != 0 {
		coords = coords[:len(coords)-1]
	}
	return coords, nil
}
