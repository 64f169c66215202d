package facematch

import (
	_ "embed"
	"errors"
	"fmt"
	"image/color"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed overlay.yaml
var defaultOverlayYAML []byte

// Polyline is one landmark group drawn over a crop.
type Polyline struct {
	Name   string `yaml:"name"`
	Start  int    `yaml:"start"`
	End    int    `yaml:"end"`
	Closed bool   `yaml:"closed"`
	Color  []int  `yaml:"color"` // RGB

	rgba color.RGBA
}

// Overlay is the ordered polyline table used by the masker.
type Overlay struct {
	Thickness int        `yaml:"thickness"`
	Polylines []Polyline `yaml:"polylines"`
}

// DefaultOverlay returns the embedded jaw/eyes/eyebrows/mouth table.
func DefaultOverlay() Overlay {
	o, err := ParseOverlay(defaultOverlayYAML)
	if err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to parse embedded overlay.yaml: " + err.Error())
	}
	return o
}

// LoadOverlay reads an overlay table from a YAML file.
func LoadOverlay(path string) (Overlay, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is from trusted config
	if err != nil {
		return Overlay{}, fmt.Errorf("reading overlay %s: %w", path, err)
	}
	return ParseOverlay(data)
}

// ParseOverlay decodes and validates an overlay table.
func ParseOverlay(data []byte) (Overlay, error) {
	var o Overlay
	if err := yaml.Unmarshal(data, &o); err != nil {
		return Overlay{}, fmt.Errorf("parsing overlay: %w", err)
	}
	if o.Thickness <= 0 {
		o.Thickness = 1
	}
	if len(o.Polylines) == 0 {
		return Overlay{}, errors.New("overlay has no polylines")
	}

	for i := range o.Polylines {
		pl := &o.Polylines[i]
		if pl.Start < 0 || pl.End <= pl.Start {
			return Overlay{}, fmt.Errorf("polyline %q: invalid range [%d, %d)", pl.Name, pl.Start, pl.End)
		}
		if len(pl.Color) != 3 {
			return Overlay{}, fmt.Errorf("polyline %q: color needs 3 components, got %d", pl.Name, len(pl.Color))
		}
		for _, c := range pl.Color {
			if c < 0 || c > 255 {
				return Overlay{}, fmt.Errorf("polyline %q: color component %d out of range", pl.Name, c)
			}
		}
		pl.rgba = color.RGBA{R: uint8(pl.Color[0]), G: uint8(pl.Color[1]), B: uint8(pl.Color[2]), A: 255}
	}
	return o, nil
}

// RGBA returns the polyline color.
func (p Polyline) RGBA() color.RGBA {
	return p.rgba
}
