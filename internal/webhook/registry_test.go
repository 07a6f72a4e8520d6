package webhook

import (
	"os"
	"path/filepath"
	"testing"

	models "tenderplan/internal/domain/models/outline"
)

func TestRegistryEmbeddedEndpoints(t *testing.T) {
	r, err := NewRegistry("http://n8n.local:5678/", "")
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	for _, kind := range models.AllKinds {
		if _, ok := r.Endpoint(kind); !ok {
			t.Errorf("no endpoint for %s", kind)
		}
	}

	got, err := r.URL(models.KindTask)
	if err != nil {
		t.Fatal(err)
	}
	if want := "http://n8n.local:5678/webhook/generate-tasks"; got != want {
		t.Errorf("URL = %q, want %q", got, want)
	}
}

func TestRegistryOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "endpoints.yaml")
	content := `endpoints:
  - kind: image
    path: https://images.example.com/hook
  - kind: task
    path: custom/tasks
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	r, err := NewRegistry("http://base", path)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	tests := []struct {
		kind models.GenerationKind
		want string
	}{
		{models.KindImage, "https://images.example.com/hook"},
		{models.KindTask, "http://base/custom/tasks"},
		{models.KindStructure, "http://base/webhook/generate-outline"},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			got, err := r.URL(tt.kind)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("URL = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRegistryRejectsBadOverride(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown kind", "endpoints:\n  - kind: poem\n    path: /x\n"},
		{"missing path", "endpoints:\n  - kind: task\n"},
		{"not yaml", "endpoints: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "endpoints.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0o600); err != nil {
				t.Fatal(err)
			}
			if _, err := NewRegistry("http://base", path); err == nil {
				t.Error("expected error")
			}
		})
	}

	if _, err := NewRegistry("http://base", filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing override file should fail")
	}
}

func TestRegistryWithoutBaseURL(t *testing.T) {
	r, err := NewRegistry("", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.URL(models.KindTask); err == nil {
		t.Error("relative path without base URL should fail")
	}
}
