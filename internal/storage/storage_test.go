package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kozaktomas/agent-faceid/internal/config"
)

func TestLocalStore_PutOverwriteDelete(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStore(dir, "http://localhost:8080/media/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()
	key := "agents/novak_jan_e1/face_1.jpg"

	if err := s.Put(ctx, key, []byte("first"), "image/jpeg"); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := s.Put(ctx, key, []byte("second"), "image/jpeg"); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "agents", "novak_jan_e1", "face_1.jpg"))
	if err != nil {
		t.Fatalf("reading object: %v", err)
	}
	if string(data) != "second" {
		t.Errorf("expected overwritten content, got %q", data)
	}

	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := s.Delete(ctx, key); err != nil {
		t.Errorf("deleting a missing key should succeed, got %v", err)
	}
}

func TestLocalStore_PublicURL(t *testing.T) {
	s, err := NewLocalStore(t.TempDir(), "http://localhost:8080/media/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := s.PublicURL("agents/a b/face_1.jpg")
	want := "http://localhost:8080/media/agents/a%20b/face_1.jpg"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestLocalStore_RejectsEscapingKeys(t *testing.T) {
	s, err := NewLocalStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, key := range []string{"", "/", "../etc/passwd", "agents/../../x"} {
		if err := s.Put(context.Background(), key, []byte("x"), "text/plain"); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("key %q: expected ErrInvalidKey, got %v", key, err)
		}
	}
}

func TestNew_SelectsBackend(t *testing.T) {
	s, err := New(config.StorageConfig{Backend: "local", LocalDir: t.TempDir()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := s.(*LocalStore); !ok {
		t.Errorf("expected *LocalStore, got %T", s)
	}

	if _, err := New(config.StorageConfig{Backend: "azure"}); err == nil {
		t.Error("expected error for azure backend without credentials")
	}
	if _, err := New(config.StorageConfig{Backend: "s3"}); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestAzureStore_PublicURL(t *testing.T) {
	s, err := NewAzureStore("acct", "c2VjcmV0", "agents-photos")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "https://acct.blob.core.windows.net/agents-photos/agents/x/photo_2.jpg"
	if got := s.PublicURL("agents/x/photo_2.jpg"); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
