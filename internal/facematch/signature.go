package facematch

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Signature is one face embedding.
type Signature []float32

// ErrDimensionMismatch is returned when two signatures that must agree in length do not.
var ErrDimensionMismatch = errors.New("signature dimension mismatch")

// Aggregate returns the coordinate-wise mean of sigs. ok is false when sigs is empty
// or the signatures disagree in dimension.
func Aggregate(sigs []Signature) (Signature, bool) {
	if len(sigs) == 0 {
		return nil, false
	}

	dim := len(sigs[0])
	if dim == 0 {
		return nil, false
	}
	sum := make([]float64, dim)
	for _, s := range sigs {
		if len(s) != dim {
			return nil, false
		}
		for i, v := range s {
			sum[i] += float64(v)
		}
	}

	n := float64(len(sigs))
	mean := make(Signature, dim)
	for i, v := range sum {
		mean[i] = float32(v / n)
	}
	return mean, true
}

// CosineSimilarity computes the cosine similarity between two embedding vectors
// Returns a value between -1 and 1, where 1 means identical. Mismatched lengths and
// zero vectors give 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// ParseSignature reads a stored signature in JSON array form, which is also the
// pgvector text representation ("[0.1,0.2,...]").
func ParseSignature(raw string) (Signature, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("empty signature")
	}

	var values []float64
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("parsing signature: %w", err)
	}
	if len(values) == 0 {
		return nil, errors.New("signature has no components")
	}

	sig := make(Signature, len(values))
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > math.MaxFloat32 {
			return nil, fmt.Errorf("component %d out of range", i)
		}
		sig[i] = float32(v)
	}
	return sig, nil
}

// FormatSignature renders sig in the form ParseSignature reads.
func FormatSignature(sig Signature) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range sig {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
