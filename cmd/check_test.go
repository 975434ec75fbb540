package cmd

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRunCheck_ValidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "valid.hcl")

	validConfig := `
listen = "127.0.0.1:9000"

logging {
  level = "debug"
}
`
	if err := os.WriteFile(configPath, []byte(validConfig), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if err := RunCheck(configPath, true); err != nil {
		t.Errorf("RunCheck() error = %v", err)
	}
}

func TestRunCheck_InvalidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.hcl")

	invalidConfig := `
state {
    # Missing closing brace
`
	if err := os.WriteFile(configPath, []byte(invalidConfig), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if err := RunCheck(configPath, false); err == nil {
		t.Error("RunCheck() error = nil, want parse error")
	}
}

func TestRunCheckArchive(t *testing.T) {
	tmpDir := t.TempDir()
	archivePath := filepath.Join(tmpDir, "profiles.yaml")

	doc := `version: 1
profiles:
  - name: Good
    enabled: true
    requestHeaderModGroups:
      - type: checkbox
        items:
          - enabled: true
            name: X-Test
            operation: set
            value: v
  - name: Empty
    enabled: true
`
	if err := os.WriteFile(archivePath, []byte(doc), 0644); err != nil {
		t.Fatalf("failed to write archive: %v", err)
	}

	if err := RunCheckArchive(archivePath, false); err != nil {
		t.Errorf("RunCheckArchive() error = %v", err)
	}

	bad := filepath.Join(tmpDir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("version: 9\nprofiles: []\n"), 0644); err != nil {
		t.Fatalf("failed to write archive: %v", err)
	}
	if err := RunCheckArchive(bad, false); err == nil {
		t.Error("RunCheckArchive() error = nil, want version error")
	}
}
