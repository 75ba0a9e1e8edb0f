// coords.go: conversion between normalized [0,1] image-relative coordinates
// and absolute pixel coordinates.
package reconciler

import (
	"github.com/diatomlab/diatom-annotator/internal/logging"
)

var logger = logging.ForService("reconciler")

// Normalize converts pixel coordinates to the normalized [0,1] range.
// Non-positive dimensions yield (0, 0) with a warning; malformed upstream
// data must never abort the reconciliation pipeline.
func Normalize(x, y, imageWidth, imageHeight float64) (nx, ny float64) {
	if imageWidth <= 0 || imageHeight <= 0 {
		logger.Warn("cannot normalize coordinates, invalid image dimensions",
			"width", imageWidth, "height", imageHeight)
		return 0.0, 0.0
	}
	return x / imageWidth, y / imageHeight
}

// Denormalize converts normalized coordinates back to pixel space. Same
// failure contract as Normalize.
func Denormalize(nx, ny, imageWidth, imageHeight float64) (x, y float64) {
	if imageWidth <= 0 || imageHeight <= 0 {
		logger.Warn("cannot denormalize coordinates, invalid image dimensions",
			"width", imageWidth, "height", imageHeight)
		return 0.0, 0.0
	}
	return nx * imageWidth, ny * imageHeight
}
