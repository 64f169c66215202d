package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kozaktomas/agent-faceid/internal/constants"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestIsImageFile(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"a.jpg", true},
		{"a.JPEG", true},
		{"a.png", true},
		{"a.webp", true},
		{"a.bmp", true},
		{"agent.yaml", false},
		{"notes.txt", false},
		{"noext", false},
	}
	for _, tt := range tests {
		if got := isImageFile(tt.name); got != tt.want {
			t.Errorf("isImageFile(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestListImageFiles_SortedAndFiltered(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.jpg"), "b")
	writeFile(t, filepath.Join(dir, "a.png"), "a")
	writeFile(t, filepath.Join(dir, "agent.yaml"), "x")
	writeFile(t, filepath.Join(dir, "sub", "c.jpg"), "c")

	files, err := listImageFiles(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %v", files)
	}
	if filepath.Base(files[0]) != "a.png" || filepath.Base(files[1]) != "b.jpg" {
		t.Errorf("unexpected order: %v", files)
	}
}

func TestLoadIdentity(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, agentFile), `
last_name: Novák
first_name: Jana
employee_id: E1001
department: Sales
phone: "+420 600 000 000"
`)

	id, err := loadIdentity(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.LastName != "Novák" || id.EmployeeID != "E1001" || id.Phone != "+420 600 000 000" {
		t.Errorf("unexpected identity: %+v", id)
	}
	if err := id.Validate(); err != nil {
		t.Errorf("expected valid identity, got %v", err)
	}
}

func TestLoadIdentity_Errors(t *testing.T) {
	if _, err := loadIdentity(t.TempDir()); err == nil {
		t.Error("expected error for missing agent.yaml")
	}

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, agentFile), "last_name: [unclosed")
	if _, err := loadIdentity(dir); err == nil {
		t.Error("expected error for malformed agent.yaml")
	}
}

func TestCollectImportJobs(t *testing.T) {
	root := t.TempDir()

	writeFile(t, filepath.Join(root, "jana", agentFile),
		"last_name: Novak\nfirst_name: Jana\nemployee_id: E1\ndepartment: Sales\n")
	writeFile(t, filepath.Join(root, "jana", "1.jpg"), "x")

	writeFile(t, filepath.Join(root, "nophotos", agentFile),
		"last_name: Dvorak\nfirst_name: Petr\nemployee_id: E2\ndepartment: Ops\n")

	writeFile(t, filepath.Join(root, "incomplete", agentFile), "last_name: Svoboda\n")
	writeFile(t, filepath.Join(root, "incomplete", "1.jpg"), "x")

	writeFile(t, filepath.Join(root, "many", agentFile),
		"last_name: Cerny\nfirst_name: Karel\nemployee_id: E4\ndepartment: IT\n")
	for i := 0; i < constants.MaxPhotosPerRequest+3; i++ {
		writeFile(t, filepath.Join(root, "many", strings.Repeat("p", i+1)+".jpg"), "x")
	}

	writeFile(t, filepath.Join(root, "stray", "1.jpg"), "x")

	jobs, errs, err := collectImportJobs(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].id.EmployeeID != "E1" || len(jobs[0].photos) != 1 {
		t.Errorf("unexpected first job: %+v", jobs[0])
	}
	if jobs[1].id.EmployeeID != "E4" || len(jobs[1].photos) != constants.MaxPhotosPerRequest {
		t.Errorf("expected capped photo list, got %d photos", len(jobs[1].photos))
	}

	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %v", errs)
	}
	joined := errs[0].Error() + "|" + errs[1].Error()
	if !strings.Contains(joined, "incomplete") || !strings.Contains(joined, "nophotos") {
		t.Errorf("unexpected errors: %v", errs)
	}
}
