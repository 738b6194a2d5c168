package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/patchloop/patchloop/internal/applog"
	"github.com/patchloop/patchloop/internal/manifest"
	"github.com/patchloop/patchloop/internal/platform"
)

// fakePlatform is a deterministic platform.Platform double for tests. It
// never reports a file as locked unless lockedFor names it, so tests that
// don't care about lock conflicts never block.
type fakePlatform struct {
	versions  map[string]string
	lockedFor map[string]int // remaining "locked" responses before granting
	shortcuts map[string]string
	killed    []int
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		versions:  map[string]string{},
		lockedFor: map[string]int{},
		shortcuts: map[string]string{},
	}
}

func (f *fakePlatform) ReadExeVersion(path string) (string, error) {
	if v, ok := f.versions[path]; ok {
		return v, nil
	}
	return "", os.ErrNotExist
}

func (f *fakePlatform) FindLockingProcesses(dir string) ([]platform.LockingProcess, error) {
	return []platform.LockingProcess{{PID: 1234, Name: "holder"}}, nil
}

func (f *fakePlatform) KillProcess(pid int) error {
	f.killed = append(f.killed, pid)
	return nil
}

func (f *fakePlatform) IsFileLockError(err error) bool {
	return err == errSimulatedLock
}

func (f *fakePlatform) CreateShortcut(name, target, args string) error {
	f.shortcuts[name] = target
	return nil
}

func (f *fakePlatform) RemoveShortcut(name string) error {
	delete(f.shortcuts, name)
	return nil
}

func (f *fakePlatform) MigrateShortcuts(target, newTarget string) error { return nil }

func (f *fakePlatform) RenameSelfForUpdate(path string) (string, error) {
	old := path + "_old"
	if err := os.Rename(path, old); err != nil {
		return "", err
	}
	return old, nil
}

func (f *fakePlatform) CleanupOldSelf(path string) error {
	return os.Remove(path + "_old")
}

func (f *fakePlatform) SetExecutable(path string) error { return nil }

var errSimulatedLock = osErrLock()

func osErrLock() error {
	return &lockErr{}
}

type lockErr struct{}

func (*lockErr) Error() string { return "simulated lock" }

func writeFile(t *testing.T, path string, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func drainEvents(e *Engine) []Event {
	var events []Event
	for ev := range e.Events() {
		events = append(events, ev)
	}
	return events
}

func lastEvent(events []Event) Event {
	return events[len(events)-1]
}

func TestExecuteIdentitySourceIsNoop(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "source")
	target := filepath.Join(dir, "target")

	writeFile(t, filepath.Join(source, "app.txt"), "hello")
	writeFile(t, filepath.Join(target, "app.txt"), "hello")

	cfg := Config{Source: source, TargetDir: target}
	e := New(cfg, applog.New(discard{}), newFakePlatform())

	if _, err := e.Prepare(); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	go e.Execute(context.Background())
	events := drainEvents(e)

	final := lastEvent(events)
	if final.Kind != EventFinished || !final.Success {
		t.Fatalf("expected successful finish, got %+v", final)
	}
}

func TestExecuteAddUpdateRemove(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "source")
	target := filepath.Join(dir, "target")

	writeFile(t, filepath.Join(source, "keep.txt"), "same")
	writeFile(t, filepath.Join(source, "changed.txt"), "new-content")
	writeFile(t, filepath.Join(source, "added.txt"), "added")

	writeFile(t, filepath.Join(target, "keep.txt"), "same")
	writeFile(t, filepath.Join(target, "changed.txt"), "old-content")
	writeFile(t, filepath.Join(target, "stale.txt"), "gone-soon")

	cfg := Config{Source: source, TargetDir: target}
	e := New(cfg, applog.New(discard{}), newFakePlatform())

	if _, err := e.Prepare(); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	go e.Execute(context.Background())
	events := drainEvents(e)

	final := lastEvent(events)
	if final.Kind != EventFinished || !final.Success {
		t.Fatalf("expected successful finish, got %+v (err=%v)", final, final.Err)
	}

	mustContain(t, filepath.Join(target, "added.txt"), "added")
	mustContain(t, filepath.Join(target, "changed.txt"), "new-content")
	mustContain(t, filepath.Join(target, "keep.txt"), "same")

	if _, err := os.Stat(filepath.Join(target, "stale.txt")); !os.IsNotExist(err) {
		t.Fatalf("expected stale.txt removed, stat err = %v", err)
	}
	if _, err := os.Stat(filepath.Join(target, "changed.txt.bak")); !os.IsNotExist(err) {
		t.Fatalf("expected no .bak remnant after success, stat err = %v", err)
	}
}

func TestExecuteStageVerifyFailureLeavesTargetUntouched(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "source")
	target := filepath.Join(dir, "target")

	writeFile(t, filepath.Join(source, "added.txt"), "added")
	writeFile(t, filepath.Join(target, "keep.txt"), "same")

	cfg := Config{Source: source, TargetDir: target}
	e := New(cfg, applog.New(discard{}), newFakePlatform())

	if _, err := e.Prepare(); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	// Corrupt the manifest's recorded hash for added.txt so stage
	// verification detects a mismatch against the real file content.
	e.sourceManifest.Files["added.txt"] = [32]byte{0xFF}

	go e.Execute(context.Background())
	events := drainEvents(e)

	final := lastEvent(events)
	if final.Kind != EventFinished || final.Success {
		t.Fatalf("expected failed finish, got %+v", final)
	}

	if _, err := os.Stat(filepath.Join(target, "added.txt")); !os.IsNotExist(err) {
		t.Fatalf("added.txt must not have been applied after stage-verify failure")
	}
	mustContain(t, filepath.Join(target, "keep.txt"), "same")
}

// TestLockConflictRetryThenSucceeds drives Ops.Retry, whose lock resolver
// is resolveLock, with an operation that fails once then succeeds,
// confirming LockRetry causes a second attempt rather than giving up after
// the first.
func TestLockConflictRetryThenSucceeds(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{Source: filepath.Join(dir, "source"), TargetDir: filepath.Join(dir, "target")}
	e := New(cfg, applog.New(discard{}), newFakePlatform())

	go func() {
		ev := <-e.events
		if ev.Kind != EventLockDetected {
			t.Errorf("expected EventLockDetected, got %v", ev.Kind)
		}
		e.RespondToLockPrompt(LockRetry)
	}()

	attempt := 0
	err := e.ops.Retry(context.Background(), filepath.Join(dir, "target", "a.txt"), func() error {
		attempt++
		if attempt == 1 {
			return errSimulatedLock
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if attempt != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempt)
	}
}

func TestCancelUnblocksLockWait(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target")
	source := filepath.Join(dir, "source")
	writeFile(t, filepath.Join(source, "a.txt"), "x")

	cfg := Config{Source: source, TargetDir: target}
	e := New(cfg, applog.New(discard{}), newFakePlatform())

	go func() {
		time.Sleep(10 * time.Millisecond)
		e.Cancel()
	}()

	ok := e.resolveLock(filepath.Join(target, "a.txt"))
	if ok {
		t.Fatalf("expected resolveLock to report cancellation as false")
	}
}

func TestPrepareSynthesizesManifestWhenAbsent(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "source")
	writeFile(t, filepath.Join(source, "a.txt"), "content")

	cfg := Config{Source: source, TargetDir: filepath.Join(dir, "target")}
	e := New(cfg, applog.New(discard{}), newFakePlatform())

	result, err := e.Prepare()
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if _, ok := result.SourceManifest.Files["a.txt"]; !ok {
		t.Fatalf("expected synthesized manifest to include a.txt")
	}
	if !result.Mandatory {
		t.Fatalf("expected a fresh install with no target version to be mandatory")
	}
}

func TestPrepareMandatoryWhenBelowMinVersion(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "source")
	target := filepath.Join(dir, "target")
	writeFile(t, filepath.Join(source, "app.exe"), "binary")

	m := &manifest.Manifest{
		Version:    mustVersion(t, "2.0.0"),
		MinVersion: mustVersion(t, "1.5.0"),
		AppExe:     "app.exe",
		Files:      map[string][32]byte{"app.exe": {1}},
	}
	if err := manifest.Write(filepath.Join(source, manifest.FileName), m); err != nil {
		t.Fatalf("writing manifest: %v", err)
	}

	plat := newFakePlatform()
	plat.versions[filepath.Join(target, "app.exe")] = "1.0.0"

	cfg := Config{Source: source, TargetDir: target}
	e := New(cfg, applog.New(discard{}), plat)

	result, err := e.Prepare()
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if !result.Mandatory {
		t.Fatalf("expected mandatory update when target version is below min_version")
	}
}

func mustVersion(t *testing.T, v string) *semver.Version {
	t.Helper()
	sv, err := semver.NewVersion(v)
	if err != nil {
		t.Fatalf("parsing version %q: %v", v, err)
	}
	return sv
}

func mustContain(t *testing.T, path, want string) {
	t.Helper()
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	if string(got) != want {
		t.Fatalf("%s = %q, want %q", path, got, want)
	}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
