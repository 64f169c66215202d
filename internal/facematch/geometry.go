package facematch

import "image"

// ClampBox clamps a face box to the image bounds. The result is not canonicalized:
// a box lying outside the image comes back with a zero or negative width.
func ClampBox(box, bounds image.Rectangle) image.Rectangle {
	return image.Rectangle{
		Min: image.Point{X: max(bounds.Min.X, box.Min.X), Y: max(bounds.Min.Y, box.Min.Y)},
		Max: image.Point{X: min(bounds.Max.X, box.Max.X), Y: min(bounds.Max.Y, box.Max.Y)},
	}
}

// TranslateLandmarks moves landmarks into crop-local space and clamps every point to
// [0, width-1] x [0, height-1]. Coordinates are truncated to integers first.
func TranslateLandmarks(points [][2]float64, origin image.Point, width, height int) []image.Point {
	out := make([]image.Point, len(points))
	for i, p := range points {
		x := int(p[0]) - origin.X
		y := int(p[1]) - origin.Y
		out[i] = image.Point{
			X: clampInt(x, 0, width-1),
			Y: clampInt(y, 0, height-1),
		}
	}
	return out
}

func clampInt(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	return min(max(v, lo), hi)
}
