package faceengine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEngineURL = "http://localhost:8000"
	defaultModel     = "buffalo_l"
	defaultDetSize   = 640
)

// Client talks to the InsightFace embedding server.
type Client struct {
	baseURL string
	model   string
	detSize int
	client  *http.Client
}

// NewClient creates a new engine client. Empty values fall back to defaults.
func NewClient(baseURL, model string, detSize int, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultEngineURL
	}
	if model == "" {
		model = defaultModel
	}
	if detSize <= 0 {
		detSize = defaultDetSize
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		detSize: detSize,
		client:  &http.Client{Timeout: timeout},
	}
}

// Model returns the model pack the client requests.
func (c *Client) Model() string {
	return c.model
}

// faceDetection represents a single detected face in the server response
type faceDetection struct {
	FaceIndex int          `json:"face_index"`
	Dim       int          `json:"dim"`
	Embedding []float32    `json:"embedding"`
	BBox      []float64    `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64      `json:"det_score"`
	Landmarks [][2]float64 `json:"landmark_2d_106"`
}

// faceResponse represents the response from the face embedding endpoint
type faceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []faceDetection `json:"faces"`
	Model      string          `json:"model"`
}

type prepareRequest struct {
	Model   string `json:"model"`
	DetSize int    `json:"det_size"`
}

// errUndecodable marks engine responses that reject the image itself.
var errUndecodable = errors.New("engine could not decode image")

// postMultipartImage posts the image with the model selection fields and returns the body.
func (c *Client) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image"`)
	h.Set("Content-Type", DetectMIMEType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}

	fields := map[string]string{
		"model":     c.model,
		"det_size":  strconv.Itoa(c.detSize),
		"landmarks": "106",
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return nil, fmt.Errorf("failed to write field %s: %w", name, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return body, nil
	case http.StatusBadRequest, http.StatusUnsupportedMediaType, http.StatusUnprocessableEntity:
		return nil, fmt.Errorf("%w (status %d): %s", errUndecodable, resp.StatusCode, string(body))
	default:
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}
}

// Analyze detects faces and returns them in engine order.
func (c *Client) Analyze(ctx context.Context, imageData []byte) ([]DetectedFace, error) {
	body, err := c.postMultipartImage(ctx, "/embed/face", imageData)
	if errors.Is(err, errUndecodable) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var faceResp faceResponse
	if err := json.Unmarshal(body, &faceResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	faces := make([]DetectedFace, 0, len(faceResp.Faces))
	for _, fd := range faceResp.Faces {
		if len(fd.BBox) != 4 {
			return nil, fmt.Errorf("face %d: bbox has %d values, expected 4", fd.FaceIndex, len(fd.BBox))
		}
		if len(fd.Embedding) == 0 {
			return nil, fmt.Errorf("face %d: empty embedding returned", fd.FaceIndex)
		}
		faces = append(faces, DetectedFace{
			BBox:      [4]float64{fd.BBox[0], fd.BBox[1], fd.BBox[2], fd.BBox[3]},
			Landmarks: fd.Landmarks,
			Embedding: fd.Embedding,
			DetScore:  fd.DetScore,
		})
	}
	return faces, nil
}

// Prepare asks the server to load the configured model, downloading it if needed.
func (c *Client) Prepare(ctx context.Context) error {
	reqBody, err := json.Marshal(prepareRequest{Model: c.model, DetSize: c.detSize})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/models/prepare", bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if _, err := c.do(req); err != nil {
		return fmt.Errorf("preparing model %s: %w", c.model, err)
	}
	return nil
}
