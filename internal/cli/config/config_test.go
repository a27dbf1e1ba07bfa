package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	// Test loading with no config file (should use defaults)
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(oldWd)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error loading defaults, got %v", err)
	}

	if cfg == nil {
		t.Fatal("expected config to be non-nil")
	}

	// Check defaults
	if cfg.Manifest != "app.yml" {
		t.Errorf("expected default manifest 'app.yml', got %s", cfg.Manifest)
	}

	if cfg.Report.Format != "terminal" {
		t.Errorf("expected default report format 'terminal', got %s", cfg.Report.Format)
	}
}

func TestLoadWithConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(oldWd)

	configContent := `project_name: demo
manifest: blueprints/demo.yml
report:
  format: json
`
	if err := os.WriteFile("vireo.yml", []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.ProjectName != "demo" {
		t.Errorf("expected project name 'demo', got %s", cfg.ProjectName)
	}

	if cfg.Manifest != "blueprints/demo.yml" {
		t.Errorf("expected manifest 'blueprints/demo.yml', got %s", cfg.Manifest)
	}

	if cfg.Report.Format != "json" {
		t.Errorf("expected report format 'json', got %s", cfg.Report.Format)
	}
}

func TestLoadRejectsUnknownReportFormat(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(oldWd)

	configContent := `report:
  format: xml
`
	if err := os.WriteFile("vireo.yml", []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	if _, err := Load(); err == nil {
		t.Error("expected error for unknown report format")
	}
}

func TestInProject(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(oldWd)

	if InProject() {
		t.Error("expected InProject to be false in empty directory")
	}

	if err := os.WriteFile("vireo.yml", []byte("project_name: demo\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	if !InProject() {
		t.Error("expected InProject to be true with vireo.yml present")
	}
}

func TestGetProjectRoot(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	defer os.Chdir(oldWd)

	if err := os.WriteFile(filepath.Join(tmpDir, "vireo.yml"), []byte("project_name: demo\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	nested := filepath.Join(tmpDir, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatalf("failed to create nested dirs: %v", err)
	}
	os.Chdir(nested)

	root, err := GetProjectRoot()
	if err != nil {
		t.Fatalf("expected to find project root, got %v", err)
	}

	resolved, _ := filepath.EvalSymlinks(tmpDir)
	if root != tmpDir && root != resolved {
		t.Errorf("expected project root %s, got %s", tmpDir, root)
	}
}
