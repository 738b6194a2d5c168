package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/patchloop/patchloop/internal/diff"
	"github.com/patchloop/patchloop/internal/download"
	"github.com/patchloop/patchloop/internal/fileops"
	"github.com/patchloop/patchloop/internal/manifest"
)

// Execute runs the full update sequence described in step order below. It
// sends events on the channel returned by Events and always ends by
// sending exactly one EventFinished (success or failure) or one
// EventSelfUpdateRelaunch, then closing the channel. Callers run this in
// their own goroutine; the Engine performs no thread management of its
// own, matching the worker-thread model where execute() is handed to a
// pool.
func (e *Engine) Execute(ctx context.Context) {
	success, err := e.run(ctx)
	if err == errSelfUpdateRelaunched {
		return
	}
	e.finish(success, err)
}

var errSelfUpdateRelaunched = fmt.Errorf("engine: relaunching for self-update")

func (e *Engine) run(ctx context.Context) (bool, error) {
	// Step 1: resolve a URL source before anything else.
	if isURL(e.cfg.Source) {
		e.status("Downloading update...")
		local, err := e.resolveURLSource(ctx)
		if err != nil {
			return false, fmt.Errorf("downloading source: %w", err)
		}
		e.sourceDir = local
		if _, err := e.Prepare(); err != nil {
			return false, fmt.Errorf("preparing downloaded source: %w", err)
		}
	}

	if e.sourceManifest == nil {
		if _, err := e.Prepare(); err != nil {
			return false, fmt.Errorf("preparing: %w", err)
		}
	}

	// Step 2: scan target with lock-retry.
	e.status("Scanning target...")
	targetFiles, err := e.scanTarget(ctx)
	if err != nil {
		return false, fmt.Errorf("scanning target: %w", err)
	}
	if e.isCancelled() {
		return false, nil
	}

	// Step 3: compute diff.
	d := diff.Compute(e.sourceManifest.Files, targetFiles)

	// Step 4: self-update detection.
	if relaunched, err := e.maybeSelfUpdate(ctx, d); relaunched {
		e.emit(Event{Kind: EventSelfUpdateRelaunch})
		close(e.events)
		return false, errSelfUpdateRelaunched
	} else if err != nil {
		return false, fmt.Errorf("self-update: %w", err)
	} else if e.cfg.ContinueUpdate {
		d = excludeSelf(d, e.selfRelPath())
		if err := e.plat.CleanupOldSelf(e.cfg.SelfPath); err != nil {
			e.log.Warn("cleaning up %s_old: %v", e.cfg.SelfPath, err)
		}
	}

	// Step 5: short-circuit.
	if d.IsEmpty() {
		e.status("Already up to date.")
		return true, nil
	}

	// Step 6: stage.
	stagingDir := filepath.Join(filepath.Dir(e.cfg.TargetDir), fmt.Sprintf(".staging_%d", os.Getpid()))
	e.status("Staging update...")
	if err := e.stage(ctx, stagingDir, d); err != nil {
		_ = os.RemoveAll(stagingDir)
		return false, fmt.Errorf("staging: %w", err)
	}

	// Step 7: verify stage.
	e.status("Verifying staged files...")
	if mismatches := e.verifyStage(ctx, stagingDir, d); len(mismatches) > 0 {
		_ = os.RemoveAll(stagingDir)
		return false, fmt.Errorf("staged files failed verification: %v", mismatches)
	}

	if e.isCancelled() {
		_ = os.RemoveAll(stagingDir)
		return false, nil
	}

	// Step 8: backup.
	e.status("Backing up existing files...")
	if err := e.ops.RenameToBackup(ctx, e.cfg.TargetDir, d.ToUpdate); err != nil {
		_ = os.RemoveAll(stagingDir)
		return false, fmt.Errorf("backup: %w", err)
	}

	// Step 9: apply.
	e.status("Applying update...")
	placed, applyErr := e.apply(ctx, stagingDir, d)
	if applyErr != nil {
		e.rollbackApply(ctx, d, placed)
		_ = os.RemoveAll(stagingDir)
		return false, fmt.Errorf("apply: %w", applyErr)
	}

	// Step 10: remove obsolete.
	e.status("Removing obsolete files...")
	if err := e.ops.RemoveFiles(ctx, e.cfg.TargetDir, d.ToRemove); err != nil {
		e.log.Warn("removing obsolete files: %v", err)
	}
	for _, relPath := range d.ToRemove {
		if filepath.Ext(relPath) == ".exe" {
			name := baseNameNoExt(relPath)
			if err := e.plat.RemoveShortcut(name); err != nil {
				e.log.Warn("removing shortcut for %s: %v", name, err)
			}
		}
	}

	// Step 11: prune stale.
	e.status("Pruning stale files...")
	if err := e.pruneStale(ctx); err != nil {
		e.log.Warn("pruning stale files: %v", err)
	}
	if err := fileops.RemoveEmptyDirectories(e.cfg.TargetDir); err != nil {
		e.log.Warn("removing empty directories: %v", err)
	}

	// Step 12: verify target.
	e.status("Verifying update...")
	if mismatches := e.ops.VerifyFiles(ctx, e.cfg.TargetDir, e.sourceManifest.Files); len(mismatches) > 0 {
		e.rollbackApply(ctx, d, d.ToAdd)
		_ = os.RemoveAll(stagingDir)
		return false, fmt.Errorf("target verification failed for: %v", mismatches)
	}

	// Step 13: cleanup.
	e.ops.CleanupBackups(e.cfg.TargetDir, d.ToUpdate)
	_ = os.RemoveAll(stagingDir)

	// Step 14: post-apply.
	e.postApply()

	e.status("Update complete.")
	return true, nil
}

func (e *Engine) resolveURLSource(ctx context.Context) (string, error) {
	tmpDir, err := os.MkdirTemp("", "patchloop-download-")
	if err != nil {
		return "", err
	}

	root, err := download.FetchAndExtract(ctx, e.cfg.Source, tmpDir, download.Options{
		Progress: func(downloaded, total int64) {
			e.emit(Event{Kind: EventDownloadProgress, Downloaded: downloaded, DownloadTotal: total})
		},
	})
	if err != nil {
		_ = os.RemoveAll(tmpDir)
		return "", err
	}
	return root, nil
}

// scanTarget hashes every non-reserved file in the target, retrying
// through the lock-conflict protocol on a locked file.
func (e *Engine) scanTarget(ctx context.Context) (map[string][32]byte, error) {
	if _, err := os.Stat(e.cfg.TargetDir); os.IsNotExist(err) {
		return map[string][32]byte{}, nil
	}

	files := make(map[string][32]byte)
	err := filepath.Walk(e.cfg.TargetDir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if e.isCancelled() {
			return fileops.ErrCancelled
		}
		if p == e.cfg.TargetDir || info.IsDir() {
			return nil
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return nil
		}
		if manifest.IsReservedName(filepath.Base(p)) {
			return nil
		}

		rel, err := filepath.Rel(e.cfg.TargetDir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		var digest [32]byte
		hashErr := e.ops.Retry(ctx, p, func() error {
			d, err := fileops.HashFile(p)
			if err != nil {
				return err
			}
			digest = d
			return nil
		})
		if hashErr != nil {
			return fmt.Errorf("hashing %s: %w", rel, hashErr)
		}
		files[rel] = digest
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func (e *Engine) stage(ctx context.Context, stagingDir string, d diff.FileDiff) error {
	_ = os.RemoveAll(stagingDir)
	if err := os.MkdirAll(stagingDir, 0755); err != nil {
		return err
	}

	toCopy := append(append([]string{}, d.ToAdd...), d.ToUpdate...)
	return e.ops.CopyFiles(ctx, e.sourceDir, stagingDir, toCopy)
}

func (e *Engine) verifyStage(ctx context.Context, stagingDir string, d diff.FileDiff) []string {
	toVerify := append(append([]string{}, d.ToAdd...), d.ToUpdate...)
	expected := make(map[string][32]byte, len(toVerify))
	for _, relPath := range toVerify {
		expected[relPath] = e.sourceManifest.Files[relPath]
	}
	return e.ops.VerifyFiles(ctx, stagingDir, expected)
}

// apply moves staged files into the target. It returns the list of
// to_add entries successfully placed, so a failure partway through can be
// rolled back precisely.
func (e *Engine) apply(ctx context.Context, stagingDir string, d diff.FileDiff) ([]string, error) {
	toApply := append(append([]string{}, d.ToAdd...), d.ToUpdate...)
	var placed []string

	for _, relPath := range toApply {
		if ctx.Err() != nil || e.isCancelled() {
			return placed, fileops.ErrCancelled
		}

		srcPath := filepath.Join(stagingDir, relPath)
		dstPath := filepath.Join(e.cfg.TargetDir, relPath)

		if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
			return placed, fmt.Errorf("creating directory for %s: %w", relPath, err)
		}

		if err := e.ops.Retry(ctx, dstPath, func() error { return os.Rename(srcPath, dstPath) }); err != nil {
			e.reportFile(relPath, "APPLY", false)
			return placed, fmt.Errorf("applying %s: %w", relPath, err)
		}
		e.reportFile(relPath, "APPLY", true)

		if isAdd(d, relPath) {
			placed = append(placed, relPath)
		}
	}

	return placed, nil
}

// rollbackApply restores .bak sidecars for to_update and removes any
// to_add entries placed so far, per the Apply/Verify-Target failure
// semantics. A cancelled ctx does not stop the rollback.
func (e *Engine) rollbackApply(ctx context.Context, d diff.FileDiff, placedAdds []string) {
	ctx = context.WithoutCancel(ctx)
	if err := e.ops.RestoreFromBackup(ctx, e.cfg.TargetDir, d.ToUpdate); err != nil {
		e.log.Error("rollback: restoring backups: %v", err)
	}
	if err := e.ops.RemoveFiles(ctx, e.cfg.TargetDir, placedAdds); err != nil {
		e.log.Error("rollback: removing placed additions: %v", err)
	}
}

// pruneStale removes any file under the target that is not named in the
// source manifest, does not carry the ".bak" suffix, and is not one of the
// reserved manifest names.
func (e *Engine) pruneStale(ctx context.Context) error {
	expected := e.sourceManifest.Files

	return filepath.Walk(e.cfg.TargetDir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return fileops.ErrCancelled
		}
		if info.IsDir() {
			return nil
		}
		if filepath.Ext(p) == ".bak" {
			return nil
		}
		if manifest.IsReservedName(filepath.Base(p)) {
			return nil
		}

		rel, err := filepath.Rel(e.cfg.TargetDir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if _, ok := expected[rel]; ok {
			return nil
		}
		if err := os.Remove(p); err != nil {
			e.log.Warn("pruning %s: %v", rel, err)
		}
		return nil
	})
}

func isURL(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func isAdd(d diff.FileDiff, relPath string) bool {
	for _, p := range d.ToAdd {
		if p == relPath {
			return true
		}
	}
	return false
}

func excludeSelf(d diff.FileDiff, selfRel string) diff.FileDiff {
	d.ToAdd = removeFromSlice(d.ToAdd, selfRel)
	d.ToUpdate = removeFromSlice(d.ToUpdate, selfRel)
	return d
}

func removeFromSlice(s []string, target string) []string {
	out := s[:0]
	for _, v := range s {
		if v != target {
			out = append(out, v)
		}
	}
	return out
}

func baseNameNoExt(relPath string) string {
	base := filepath.Base(relPath)
	ext := filepath.Ext(base)
	return base[:len(base)-len(ext)]
}
