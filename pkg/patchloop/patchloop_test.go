package patchloop

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/patchloop/patchloop/internal/platform"
)

type fakePlatform struct{}

func (fakePlatform) ReadExeVersion(path string) (string, error) { return "", os.ErrNotExist }
func (fakePlatform) FindLockingProcesses(dir string) ([]platform.LockingProcess, error) {
	return nil, nil
}
func (fakePlatform) KillProcess(pid int) error                      { return nil }
func (fakePlatform) IsFileLockError(err error) bool                 { return false }
func (fakePlatform) CreateShortcut(name, target, args string) error { return nil }
func (fakePlatform) RemoveShortcut(name string) error                { return nil }
func (fakePlatform) MigrateShortcuts(target, newTarget string) error { return nil }
func (fakePlatform) RenameSelfForUpdate(path string) (string, error) { return "", os.ErrNotExist }
func (fakePlatform) CleanupOldSelf(path string) error                { return nil }
func (fakePlatform) SetExecutable(path string) error                 { return nil }

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestNewRequiresSourceAndTarget(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatal("expected error for empty Options")
	}
	if _, err := New(Options{Source: "x"}); err == nil {
		t.Fatal("expected error when TargetDir is missing")
	}
	if _, err := New(Options{TargetDir: "x"}); err == nil {
		t.Fatal("expected error when Source is missing")
	}
}

func TestClientRunAppliesAddedFile(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "source")
	target := filepath.Join(dir, "target")
	writeFile(t, filepath.Join(source, "added.txt"), "added")

	client, err := New(Options{
		Source:    source,
		TargetDir: target,
		Install:   true,
		Platform:  fakePlatform{},
		Log:       discardWriter{},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := client.Prepare(); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	var finished bool
	result := client.Run(context.Background(), func(ev Event) LockAction {
		if ev.Kind == EventFinished {
			finished = true
		}
		return LockRetry
	})

	if !finished {
		t.Fatal("expected onEvent to observe the terminal event")
	}
	if !result.Success {
		t.Fatalf("expected success, got err=%v", result.Err)
	}

	got, err := os.ReadFile(filepath.Join(target, "added.txt"))
	if err != nil {
		t.Fatalf("reading applied file: %v", err)
	}
	if string(got) != "added" {
		t.Fatalf("content = %q, want %q", got, "added")
	}
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
