package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func TestHashDirectoryExcludesReservedNames(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "app.exe"), "binary")
	mustWrite(t, filepath.Join(dir, FileName), "{}")
	mustWrite(t, filepath.Join(dir, "data", "config.json"), "{}")

	files, err := HashDirectory(dir, nil)
	if err != nil {
		t.Fatalf("HashDirectory: %v", err)
	}
	if _, ok := files[FileName]; ok {
		t.Errorf("manifest.json should not be hashed")
	}
	if _, ok := files["app.exe"]; !ok {
		t.Errorf("expected app.exe to be hashed")
	}
	if _, ok := files["data/config.json"]; !ok {
		t.Errorf("expected forward-slash relative path for nested file")
	}
}

func TestHashDirectoryNonExistentReturnsEmpty(t *testing.T) {
	files, err := HashDirectory(filepath.Join(t.TempDir(), "missing"), nil)
	if err != nil {
		t.Fatalf("HashDirectory on missing dir: %v", err)
	}
	if len(files) != 0 {
		t.Errorf("expected empty map, got %d entries", len(files))
	}
}

func TestHashDirectorySkipsSymlinks(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "real.txt"), "data")
	if err := os.Symlink(filepath.Join(dir, "real.txt"), filepath.Join(dir, "link.txt")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	var warnings []string
	files, err := HashDirectory(dir, func(format string, args ...any) {
		warnings = append(warnings, format)
	})
	if err != nil {
		t.Fatalf("HashDirectory: %v", err)
	}
	if _, ok := files["link.txt"]; ok {
		t.Errorf("symlink should not be hashed")
	}
	if len(warnings) == 0 {
		t.Errorf("expected a warning about the skipped symlink")
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
}
