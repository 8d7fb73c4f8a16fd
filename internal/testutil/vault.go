// Package testutil provides builders and fakes shared by arcsync tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

type vaultFile struct {
	path    string
	content string
}

// TestVault builds a throwaway vault under t.TempDir. Files are written in
// the order they were added.
type TestVault struct {
	Path string

	t     *testing.T
	files []vaultFile
}

// NewTestVault starts an empty vault. Nothing touches disk until Build.
func NewTestVault(t *testing.T) *TestVault {
	t.Helper()
	return &TestVault{t: t}
}

// WithFile queues a file at a slash-separated path relative to the root.
func (v *TestVault) WithFile(path, content string) *TestVault {
	v.files = append(v.files, vaultFile{path: path, content: content})
	return v
}

// WithNote queues a note with a YAML frontmatter block and a body.
func (v *TestVault) WithNote(path, frontmatter, body string) *TestVault {
	return v.WithFile(path, "---\n"+frontmatter+"---\n"+body)
}

// Build materializes the vault and returns it for chaining.
func (v *TestVault) Build() *TestVault {
	v.t.Helper()
	v.Path = v.t.TempDir()
	for _, f := range v.files {
		v.WriteFile(f.path, f.content)
	}
	return v
}

func (v *TestVault) abs(relPath string) string {
	return filepath.Join(v.Path, filepath.FromSlash(relPath))
}

// WriteFile writes relPath in the built vault, creating parent folders.
func (v *TestVault) WriteFile(relPath, content string) {
	v.t.Helper()
	full := v.abs(relPath)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		v.t.Fatalf("mkdir for %s: %v", relPath, err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		v.t.Fatalf("write %s: %v", relPath, err)
	}
}

// ReadFile returns the current content of relPath.
func (v *TestVault) ReadFile(relPath string) string {
	v.t.Helper()
	data, err := os.ReadFile(v.abs(relPath))
	if err != nil {
		v.t.Fatalf("read %s: %v", relPath, err)
	}
	return string(data)
}
