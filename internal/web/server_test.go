package web

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/kozaktomas/agent-faceid/internal/config"
	"github.com/kozaktomas/agent-faceid/internal/logger"
)

func testServer(t *testing.T, mediaDir string) *Server {
	t.Helper()
	cfg := &config.Config{Web: config.WebConfig{Host: "127.0.0.1", Port: 0, AllowedOrigins: []string{"*"}}}
	return NewServer(cfg, nil, mediaDir, logger.Discard())
}

func TestServer_Health(t *testing.T) {
	s := testServer(t, "")

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("Origin", "https://kiosk.example.com")
	s.Router().ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", recorder.Code)
	}
	if got := recorder.Header().Get("Access-Control-Allow-Origin"); got != "https://kiosk.example.com" {
		t.Errorf("expected wildcard CORS to echo origin, got %q", got)
	}
}

func TestServer_Media(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "agents", "E1"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "agents", "E1", "face_1.jpg"), []byte("jpeg"), 0o600); err != nil {
		t.Fatal(err)
	}
	s := testServer(t, dir)

	tests := []struct {
		path   string
		status int
	}{
		{"/media/agents/E1/face_1.jpg", http.StatusOK},
		{"/media/agents/E1/", http.StatusNotFound},
		{"/media/agents/E1/face_9.jpg", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			s.Router().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if recorder.Code != tt.status {
				t.Errorf("expected %d, got %d", tt.status, recorder.Code)
			}
		})
	}
}

func TestServer_MediaDisabledWithoutDir(t *testing.T) {
	s := testServer(t, "")
	recorder := httptest.NewRecorder()
	s.Router().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/media/agents/E1/face_1.jpg", nil))
	if recorder.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", recorder.Code)
	}
}
