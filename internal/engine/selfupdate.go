package engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/patchloop/patchloop/internal/diff"
)

// selfRelPath returns SelfPath expressed relative to TargetDir, in the
// same slash-separated form the manifest and diff use as keys. It
// returns "" if SelfPath is not under TargetDir, which makes the
// self-update branch below a no-op for a running binary outside the
// managed tree (e.g. a CLI driving an install into a fresh directory).
func (e *Engine) selfRelPath() string {
	if e.cfg.SelfPath == "" {
		return ""
	}
	rel, err := filepath.Rel(e.cfg.TargetDir, e.cfg.SelfPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ""
	}
	return filepath.ToSlash(rel)
}

// maybeSelfUpdate replaces the running executable and relaunches it when
// the diff includes the file the engine is currently running from. It
// returns relaunched=true once the new process has been started; the
// caller must stop applying the rest of the diff and let the relaunched
// process (running with Config.ContinueUpdate set) pick it up.
func (e *Engine) maybeSelfUpdate(ctx context.Context, d diff.FileDiff) (relaunched bool, err error) {
	if e.cfg.ContinueUpdate {
		return false, nil
	}

	selfRel := e.selfRelPath()
	if selfRel == "" || !(containsPath(d.ToAdd, selfRel) || containsPath(d.ToUpdate, selfRel)) {
		return false, nil
	}

	e.status("Updating self...")

	oldPath, err := e.plat.RenameSelfForUpdate(e.cfg.SelfPath)
	if err != nil {
		return false, fmt.Errorf("renaming running executable aside: %w", err)
	}

	srcPath := filepath.Join(e.sourceDir, selfRel)
	if err := copyFileDirect(srcPath, e.cfg.SelfPath); err != nil {
		return false, fmt.Errorf("placing new executable: %w", err)
	}
	if err := e.plat.SetExecutable(e.cfg.SelfPath); err != nil {
		e.log.Warn("marking %s executable: %v", e.cfg.SelfPath, err)
	}

	// Any shortcut still pointing at the renamed-aside sidecar (left over
	// from an interrupted prior update, or simply stale) should resolve to
	// the live executable again.
	if err := e.plat.MigrateShortcuts(oldPath, e.cfg.SelfPath); err != nil {
		e.log.Warn("migrating shortcuts from %s: %v", oldPath, err)
	}

	if err := e.relaunchSelf(ctx); err != nil {
		return false, fmt.Errorf("relaunching: %w", err)
	}

	return true, nil
}

// relaunchSelf starts a detached copy of the just-replaced executable with
// --continue-update appended to the original arguments, handing off
// execution to the freshly-written binary.
func (e *Engine) relaunchSelf(ctx context.Context) error {
	args := append(append([]string{}, os.Args[1:]...), "--continue-update")
	cmd := exec.CommandContext(context.Background(), e.cfg.SelfPath, args...)
	cmd.Dir = e.cfg.TargetDir
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.Stdin = nil
	return cmd.Start()
}

func containsPath(paths []string, target string) bool {
	for _, p := range paths {
		if p == target {
			return true
		}
	}
	return false
}

func copyFileDirect(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
