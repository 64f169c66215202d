package facematch

import (
	"fmt"
	"image"

	"github.com/kozaktomas/agent-faceid/internal/constants"
	"github.com/kozaktomas/agent-faceid/internal/faceengine"
	"golang.org/x/image/draw"
)

// AnnotationStatus tells how much of the overlay made it onto a crop.
type AnnotationStatus int

const (
	// AnnotationComplete means every polyline was drawn.
	AnnotationComplete AnnotationStatus = iota
	// AnnotationPartial means drawing stopped after at least one polyline.
	AnnotationPartial
	// AnnotationFailed means the crop is clean because the first polyline failed.
	AnnotationFailed
	// AnnotationSkipped means the crop was degenerate and the full image was returned.
	AnnotationSkipped
)

func (s AnnotationStatus) String() string {
	switch s {
	case AnnotationComplete:
		return "complete"
	case AnnotationPartial:
		return "partial"
	case AnnotationFailed:
		return "failed"
	case AnnotationSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("AnnotationStatus(%d)", int(s))
	}
}

// Annotation is the outcome of drawing the overlay. Err is set for partial and failed.
type Annotation struct {
	Status AnnotationStatus
	Drawn  int
	Err    error
}

// Annotated reports whether any overlay was drawn.
func (a Annotation) Annotated() bool {
	return a.Status == AnnotationComplete || a.Status == AnnotationPartial
}

// Masker crops a detected face out of its image and draws the landmark overlay.
type Masker struct {
	overlay Overlay
	minSide int
}

// NewMasker creates a masker drawing the given overlay.
func NewMasker(overlay Overlay) *Masker {
	return &Masker{overlay: overlay, minSide: constants.MinCropSide}
}

// Mask returns the annotated crop for face. The source image is never modified.
// When the clamped box is narrower or shorter than the minimum side, the source image
// itself is returned with AnnotationSkipped.
func (m *Masker) Mask(img image.Image, face faceengine.DetectedFace) (image.Image, Annotation) {
	box := ClampBox(face.Rect(), img.Bounds())
	if box.Dx() < m.minSide || box.Dy() < m.minSide {
		return img, Annotation{Status: AnnotationSkipped}
	}

	w, h := box.Dx(), box.Dy()
	crop := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Copy(crop, image.Point{}, img, box, draw.Src, nil)

	points := TranslateLandmarks(face.Landmarks, box.Min, w, h)

	dc := newCanvas(crop, m.overlay.Thickness)
	drawn := 0
	for _, pl := range m.overlay.Polylines {
		if err := drawPolyline(dc, points, pl, m.overlay.Thickness); err != nil {
			status := AnnotationPartial
			if drawn == 0 {
				status = AnnotationFailed
			}
			return crop, Annotation{Status: status, Drawn: drawn, Err: fmt.Errorf("drawing %s: %w", pl.Name, err)}
		}
		drawn++
	}
	return crop, Annotation{Status: AnnotationComplete, Drawn: drawn}
}
