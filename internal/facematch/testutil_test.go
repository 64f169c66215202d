package facematch

import (
	"bytes"
	"context"
	"encoding/binary"
	"hash/crc32"
	"image/png"
	"sync"
	"testing"

	"github.com/kozaktomas/agent-faceid/internal/faceengine"
)

// fakeAnalyzer returns queued responses in call order. An exhausted queue yields no faces.
type fakeAnalyzer struct {
	mu        sync.Mutex
	responses [][]faceengine.DetectedFace
	err       error
	calls     int
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, imageData []byte) ([]faceengine.DetectedFace, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.responses) == 0 {
		return nil, nil
	}
	r := f.responses[0]
	f.responses = f.responses[1:]
	return r, nil
}

// pngPhoto encodes a plain gray image of the given size.
func pngPhoto(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, grayImage(w, h)); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// faceWith returns a well-formed detection in a 200x200 photo carrying embedding.
func faceWith(embedding ...float32) faceengine.DetectedFace {
	return faceengine.DetectedFace{
		BBox:      [4]float64{50, 50, 150, 150},
		Landmarks: gridLandmarks(106),
		Embedding: embedding,
		DetScore:  0.9,
	}
}

// oversizedPNG is a bare PNG header declaring a w x h RGBA image.
func oversizedPNG(w, h uint32) []byte {
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], w)
	binary.BigEndian.PutUint32(ihdr[4:8], h)
	ihdr[8], ihdr[9] = 8, 6
	chunk := append([]byte("IHDR"), ihdr...)

	var buf bytes.Buffer
	buf.Write([]byte("\x89PNG\r\n\x1a\n"))
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	buf.Write(chunk)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}
