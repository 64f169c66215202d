package facematch

import (
	"context"
	"fmt"
	"image"

	"github.com/kozaktomas/agent-faceid/internal/faceengine"
	"github.com/sirupsen/logrus"
)

// Extraction is the result for one photo. When Detected is false every other field is
// zero: the photo could not be decoded or showed no face.
type Extraction struct {
	Detected   bool
	Signature  Signature
	Crop       image.Image
	Annotation Annotation
	FaceCount  int
}

// Extractor turns one photo into a signature and an annotated crop.
type Extractor struct {
	analyzer faceengine.Analyzer
	masker   *Masker
	dim      int
	log      logrus.FieldLogger
}

// NewExtractor creates an extractor. A positive dim makes the extractor reject
// engine embeddings of any other length.
func NewExtractor(analyzer faceengine.Analyzer, masker *Masker, dim int, log logrus.FieldLogger) *Extractor {
	return &Extractor{analyzer: analyzer, masker: masker, dim: dim, log: log}
}

// Extract analyzes imageData and masks the first detected face. Only engine failures
// and embeddings of the wrong dimension are returned as errors.
func (e *Extractor) Extract(ctx context.Context, imageData []byte) (Extraction, error) {
	img, format, err := faceengine.DecodeImage(imageData)
	if err != nil {
		e.log.WithError(err).Debug("photo is not a decodable image")
		return Extraction{}, nil
	}

	faces, err := e.analyzer.Analyze(ctx, imageData)
	if err != nil {
		return Extraction{}, fmt.Errorf("analyzing %s photo: %w", format, err)
	}
	if len(faces) == 0 {
		return Extraction{}, nil
	}

	face := faces[0]
	if e.dim > 0 && len(face.Embedding) != e.dim {
		return Extraction{}, fmt.Errorf("%w: engine returned %d, expected %d",
			ErrDimensionMismatch, len(face.Embedding), e.dim)
	}

	crop, ann := e.masker.Mask(img, face)

	sig := make(Signature, len(face.Embedding))
	copy(sig, face.Embedding)

	return Extraction{
		Detected:   true,
		Signature:  sig,
		Crop:       crop,
		Annotation: ann,
		FaceCount:  len(faces),
	}, nil
}
