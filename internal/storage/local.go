package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore keeps objects as files under a root directory. The web server
// exposes the directory under the configured public URL prefix.
type LocalStore struct {
	root      string
	publicURL string
}

// NewLocalStore creates the root directory if needed.
func NewLocalStore(root, publicURL string) (*LocalStore, error) {
	if root == "" {
		return nil, errors.New("local storage directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	return &LocalStore{root: root, publicURL: strings.TrimRight(publicURL, "/")}, nil
}

// Root returns the directory objects are written to.
func (s *LocalStore) Root() string {
	return s.root
}

func (s *LocalStore) path(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if key == "" || clean == "/" || strings.Contains(key, "..") {
		return "", ErrInvalidKey
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

// Put writes data to the file for key, creating parent directories.
func (s *LocalStore) Put(_ context.Context, key string, data []byte, _ string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("creating object directory: %w", err)
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil { //nolint:gosec // served publicly
		return fmt.Errorf("writing %s: %w", key, err)
	}
	if err := os.Rename(tmp, p); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

// Delete removes the file for key.
func (s *LocalStore) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}

// PublicURL joins the public prefix and the escaped key.
func (s *LocalStore) PublicURL(key string) string {
	return s.publicURL + "/" + escapeKey(key)
}

// escapeKey path-escapes each segment of a slash-separated key.
func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
