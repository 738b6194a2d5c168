package fileops

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestCopyFilesCopiesContent(t *testing.T) {
	source := t.TempDir()
	target := t.TempDir()
	writeFile(t, filepath.Join(source, "a.txt"), "hello")

	ops := &Ops{}
	if err := ops.CopyFiles(context.Background(), source, target, []string{"a.txt"}); err != nil {
		t.Fatalf("CopyFiles: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(target, "a.txt"))
	if err != nil {
		t.Fatalf("reading copied file: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("got %q, want %q", got, "hello")
	}
}

func TestCopyFilesSkipsSelf(t *testing.T) {
	source := t.TempDir()
	target := t.TempDir()
	writeFile(t, filepath.Join(source, "app.exe"), "new binary")
	writeFile(t, filepath.Join(target, "app.exe"), "running binary")

	var reported []string
	ops := &Ops{
		SelfPath: filepath.Join(target, "app.exe"),
		Report: func(relPath, action string, ok bool) {
			reported = append(reported, action)
		},
	}
	if err := ops.CopyFiles(context.Background(), source, target, []string{"app.exe"}); err != nil {
		t.Fatalf("CopyFiles: %v", err)
	}

	got, _ := os.ReadFile(filepath.Join(target, "app.exe"))
	if string(got) != "running binary" {
		t.Errorf("self file was overwritten: %q", got)
	}
	if len(reported) != 1 || reported[0] != "SKIP self" {
		t.Errorf("expected SKIP self report, got %v", reported)
	}
}

func TestCopyFilesMissingSourceReportsFailureButContinues(t *testing.T) {
	source := t.TempDir()
	target := t.TempDir()
	writeFile(t, filepath.Join(source, "present.txt"), "ok")

	ops := &Ops{}
	err := ops.CopyFiles(context.Background(), source, target, []string{"missing.txt", "present.txt"})
	if err == nil {
		t.Fatal("expected error for missing source file")
	}

	if _, statErr := os.Stat(filepath.Join(target, "present.txt")); statErr != nil {
		t.Errorf("expected present.txt to still be copied: %v", statErr)
	}
}

func TestRemoveFilesAlreadyGoneIsSuccess(t *testing.T) {
	dir := t.TempDir()

	ops := &Ops{}
	if err := ops.RemoveFiles(context.Background(), dir, []string{"nonexistent.txt"}); err != nil {
		t.Fatalf("RemoveFiles on absent file: %v", err)
	}
}

func TestRenameToBackupThenRestore(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "original")

	ops := &Ops{}
	if err := ops.RenameToBackup(context.Background(), dir, []string{"a.txt"}); err != nil {
		t.Fatalf("RenameToBackup: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "a.txt.bak")); err != nil {
		t.Fatalf("expected backup sidecar: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "a.txt")); !os.IsNotExist(err) {
		t.Fatalf("expected original renamed away")
	}

	writeFile(t, filepath.Join(dir, "a.txt"), "new content")
	if err := ops.RestoreFromBackup(context.Background(), dir, []string{"a.txt"}); err != nil {
		t.Fatalf("RestoreFromBackup: %v", err)
	}

	got, _ := os.ReadFile(filepath.Join(dir, "a.txt"))
	if string(got) != "original" {
		t.Errorf("got %q after restore, want %q", got, "original")
	}
}

func TestRenameToBackupRollsBackOnMidBatchFailure(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "original-a")
	writeFile(t, filepath.Join(dir, "b.txt"), "original-b")

	// Make b.txt.bak an existing directory so the rename over it fails.
	if err := os.MkdirAll(filepath.Join(dir, "b.txt.bak", "blocker"), 0755); err != nil {
		t.Fatalf("setup: %v", err)
	}

	ops := &Ops{}
	err := ops.RenameToBackup(context.Background(), dir, []string{"a.txt", "b.txt"})
	if err == nil {
		t.Fatal("expected failure backing up b.txt")
	}

	got, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	if err != nil || string(got) != "original-a" {
		t.Errorf("expected a.txt restored to original after rollback, got %q, err=%v", got, err)
	}
}

func TestVerifyFilesDetectsMismatch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "expected content")

	want, err := HashFile(filepath.Join(dir, "a.txt"))
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}

	writeFile(t, filepath.Join(dir, "b.txt"), "tampered content")
	expected := map[string][32]byte{
		"a.txt": want,
		"b.txt": want, // wrong hash on purpose
	}

	ops := &Ops{}
	mismatches := ops.VerifyFiles(context.Background(), dir, expected)
	if len(mismatches) != 1 || mismatches[0] != "b.txt" {
		t.Errorf("got mismatches %v, want [b.txt]", mismatches)
	}
}

func TestRemoveEmptyDirectoriesPrunesDeepestFirst(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "a", "b", "c"), 0755); err != nil {
		t.Fatalf("setup: %v", err)
	}

	if err := RemoveEmptyDirectories(dir); err != nil {
		t.Fatalf("RemoveEmptyDirectories: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "a")); !os.IsNotExist(err) {
		t.Errorf("expected empty directory tree pruned")
	}
}

func TestRemoveEmptyDirectoriesKeepsNonEmpty(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a", "keep.txt"), "data")
	if err := os.MkdirAll(filepath.Join(dir, "a", "empty"), 0755); err != nil {
		t.Fatalf("setup: %v", err)
	}

	if err := RemoveEmptyDirectories(dir); err != nil {
		t.Fatalf("RemoveEmptyDirectories: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "a")); err != nil {
		t.Errorf("expected non-empty directory kept: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "a", "empty")); !os.IsNotExist(err) {
		t.Errorf("expected nested empty directory pruned")
	}
}
