package facematch

import (
	"errors"
	"fmt"
	"image"

	"github.com/fogleman/gg"
)

var errLandmarksShort = errors.New("not enough landmarks")

// newCanvas wraps dst in a drawing context. Strokes are written straight into dst.
func newCanvas(dst *image.RGBA, thickness int) *gg.Context {
	dc := gg.NewContextForRGBA(dst)
	dc.SetLineWidth(float64(thickness))
	dc.SetLineCapRound()
	dc.SetLineJoinRound()
	return dc
}

// drawPolyline strokes one overlay group through points[pl.Start:pl.End].
// Landmarks are pixel indices, so the path runs through pixel centers.
func drawPolyline(dc *gg.Context, points []image.Point, pl Polyline, thickness int) error {
	if pl.End > len(points) {
		return fmt.Errorf("%w: need %d, have %d", errLandmarksShort, pl.End, len(points))
	}

	pts := points[pl.Start:pl.End]
	dc.SetColor(pl.RGBA())

	if len(pts) == 1 {
		x, y := center(pts[0])
		dc.DrawCircle(x, y, max(float64(thickness)/2, 0.5))
		dc.Fill()
		return nil
	}

	dc.MoveTo(center(pts[0]))
	for _, p := range pts[1:] {
		dc.LineTo(center(p))
	}
	if pl.Closed && len(pts) > 2 {
		dc.ClosePath()
	}
	dc.Stroke()
	return nil
}

func center(p image.Point) (float64, float64) {
	return float64(p.X) + 0.5, float64(p.Y) + 0.5
}
