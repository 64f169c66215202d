// Package faceengine is the boundary to the external face-analysis engine.
//
// The engine runs as a separate InsightFace embedding server. This package turns its
// responses into DetectedFace records and owns the process-wide engine handle.
package faceengine

import (
	"context"
	"image"
)

// DetectedFace is one face reported by the engine. Coordinates are pixels in the
// source image, y pointing down.
type DetectedFace struct {
	BBox      [4]float64   // x1, y1, x2, y2
	Landmarks [][2]float64 // 106 points for the 2d106 landmark model
	Embedding []float32
	DetScore  float64
}

// Rect returns the bounding box truncated to integer pixels. Corners are kept as
// reported, so an inverted box stays empty instead of being swapped.
func (f DetectedFace) Rect() image.Rectangle {
	return image.Rectangle{
		Min: image.Point{X: int(f.BBox[0]), Y: int(f.BBox[1])},
		Max: image.Point{X: int(f.BBox[2]), Y: int(f.BBox[3])},
	}
}

// Analyzer detects faces in raw image bytes. Implementations return an empty slice,
// not an error, for images the engine cannot decode.
type Analyzer interface {
	Analyze(ctx context.Context, imageData []byte) ([]DetectedFace, error)
}
