// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Upload constants
const (
	// MaxUploadSize is the maximum accepted multipart body for enrollment and login (64 MB)
	MaxUploadSize = 64 << 20

	// MaxPhotosPerRequest caps the number of photos processed by a single enrollment or login
	MaxPhotosPerRequest = 10
)

// Face matching constants
const (
	// DefaultMatchThreshold is the minimum cosine similarity accepted as the same identity
	DefaultMatchThreshold = 0.60

	// DefaultDuplicateThreshold is the similarity at which enrollment reports a possible duplicate
	DefaultDuplicateThreshold = 0.60

	// DefaultEmbeddingDim is the embedding dimension produced by the buffalo model family
	DefaultEmbeddingDim = 512

	// LandmarkCount is the number of 2-D landmarks reported per face
	LandmarkCount = 106
)

// Image constants
const (
	// MinCropSide is the smallest crop width or height that still gets annotated
	MinCropSide = 5

	// CropJPEGQuality is the JPEG quality used when storing annotated crops
	CropJPEGQuality = 90

	// MaxImagePixels caps the declared width*height of a decoded photo (40 megapixels)
	MaxImagePixels = 40_000_000
)
