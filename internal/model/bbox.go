// bbox.go: pixel-space bounding box serialization. Boxes travel on the wire
// as "x1,y1,x2,y2" strings with top-left and bottom-right corners.
package model

import (
	"fmt"
	"strconv"
	"strings"
)

// BBox is an axis-aligned pixel-space box. Nothing here enforces x1<x2 or
// y1<y2; a degenerate box simply has zero or negative area.
type BBox struct {
	X1, Y1, X2, Y2 float64
}

// ParseBBox decodes the "x1,y1,x2,y2" wire form. An empty string or
// anything that is not four comma-separated floats is an error; callers in
// the reconciliation path treat that as "no box" rather than failing.
func ParseBBox(s string) (BBox, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 4 {
		return BBox{}, fmt.Errorf("bbox %q: expected 4 comma-separated values, got %d", s, len(parts))
	}
	var vals [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return BBox{}, fmt.Errorf("bbox %q: %w", s, err)
		}
		vals[i] = v
	}
	return BBox{X1: vals[0], Y1: vals[1], X2: vals[2], Y2: vals[3]}, nil
}

// String encodes the box in wire form.
func (b BBox) String() string {
	return strings.Join([]string{
		formatCoord(b.X1),
		formatCoord(b.Y1),
		formatCoord(b.X2),
		formatCoord(b.Y2),
	}, ",")
}

// Area returns the box area, negative when the corners are inverted.
func (b BBox) Area() float64 {
	return (b.X2 - b.X1) * (b.Y2 - b.Y1)
}

// Intersection returns the overlapping region of two boxes and whether any
// overlap exists.
func (b BBox) Intersection(other BBox) (BBox, bool) {
	left := max(b.X1, other.X1)
	top := max(b.Y1, other.Y1)
	right := min(b.X2, other.X2)
	bottom := min(b.Y2, other.Y2)
	if right < left || bottom < top {
		return BBox{}, false
	}
	return BBox{X1: left, Y1: top, X2: right, Y2: bottom}, true
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
