package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kozaktomas/agent-faceid/internal/roster"
)

// agentFile is the identity file expected in every import directory.
const agentFile = "agent.yaml"

// isImageFile checks if a file has an extension the face pipeline can decode
func isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp":
		return true
	}
	return false
}

// readPhotoFiles reads each path into memory.
func readPhotoFiles(paths []string) ([][]byte, error) {
	photos := make([][]byte, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading photo %s: %w", p, err)
		}
		photos = append(photos, data)
	}
	return photos, nil
}

// listImageFiles returns the image files directly inside dir, sorted by name.
func listImageFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !isImageFile(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// loadIdentity reads agent.yaml from dir.
func loadIdentity(dir string) (roster.Identity, error) {
	var id roster.Identity
	data, err := os.ReadFile(filepath.Join(dir, agentFile))
	if err != nil {
		return id, fmt.Errorf("reading %s: %w", agentFile, err)
	}
	if err := yaml.Unmarshal(data, &id); err != nil {
		return id, fmt.Errorf("parsing %s: %w", agentFile, err)
	}
	return id, nil
}

// importDirs returns the subdirectories of root that contain an agent.yaml.
func importDirs(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", root, err)
	}
	var dirs []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(root, e.Name())
		if _, err := os.Stat(filepath.Join(dir, agentFile)); err == nil {
			dirs = append(dirs, dir)
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}
