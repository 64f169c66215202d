package faceengine

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/kozaktomas/agent-faceid/internal/constants"
)

// ErrImageTooLarge is returned for images whose header declares more than
// constants.MaxImagePixels pixels.
var ErrImageTooLarge = errors.New("image too large")

// DecodeImage decodes any registered image format (JPEG, PNG, GIF, BMP, WebP).
// The header is checked first so an oversized declaration is rejected before
// any pixel buffer is allocated.
func DecodeImage(data []byte) (image.Image, string, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decoding image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > constants.MaxImagePixels {
		return nil, "", fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decoding image: %w", err)
	}
	return img, format, nil
}

// DetectMIMEType detects the MIME type from image data
func DetectMIMEType(data []byte) string {
	if len(data) < 8 {
		return "application/octet-stream"
	}
	switch {
	case data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return "image/jpeg"
	case data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47:
		return "image/png"
	case data[0] == 0x47 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x38:
		return "image/gif"
	case data[0] == 0x42 && data[1] == 0x4D:
		return "image/bmp"
	case len(data) >= 12 && data[0] == 0x52 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x46 &&
		data[8] == 0x57 && data[9] == 0x45 && data[10] == 0x42 && data[11] == 0x50:
		return "image/webp"
	}
	return "application/octet-stream"
}
