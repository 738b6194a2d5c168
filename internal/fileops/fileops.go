// Package fileops implements the file-level primitives the update engine
// composes into an update: copy, remove, backup, restore, verify, and
// directory pruning, each retrying through a caller-supplied lock resolver
// when the OS reports the target file is held open. Batch operations
// report one line per file through a Report callback rather than a
// signal, and a batch is cancellable mid-pass via context.
package fileops

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/patchloop/patchloop/internal/platform"
)

// ErrCancelled is returned by an operation that stopped because its
// context was cancelled partway through a batch.
var ErrCancelled = errors.New("fileops: operation cancelled")

// LockResolver is consulted when an operation fails because the OS
// reports the target file is held open by another process. Returning true
// retries the operation; false gives up and the operation fails.
type LockResolver func(absolutePath string) bool

// Report receives one line per file processed by a batch operation.
type Report func(relPath, action string, ok bool)

// Ops bundles the callbacks a batch operation needs: lock conflict
// resolution, progress reporting, and the self-skip rule (never
// overwriting the running executable in place).
type Ops struct {
	SelfPath     string
	LockResolver LockResolver
	Report       Report
	// Platform supplies IsFileLockError; nil defaults to platform.Current().
	Platform platform.Platform
}

func (o *Ops) platform() platform.Platform {
	if o.Platform != nil {
		return o.Platform
	}
	return platform.Current()
}

func (o *Ops) report(relPath, action string, ok bool) {
	if o.Report != nil {
		o.Report(relPath, action, ok)
	}
}

func (o *Ops) isSelf(absPath string) bool {
	if o.SelfPath == "" {
		return false
	}
	a, err1 := filepath.Abs(absPath)
	b, err2 := filepath.Abs(o.SelfPath)
	if err1 != nil || err2 != nil {
		return absPath == o.SelfPath
	}
	return a == b
}

// Retry runs operation, and on a lock error consults o.LockResolver to
// decide whether to try again. It returns the last error, or nil on
// success. Exported so callers outside the package (the engine's target
// scan) can route a single hash/stat through the same lock-resolver
// protocol as the batch primitives below.
func (o *Ops) Retry(ctx context.Context, absPath string, operation func() error) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := operation()
		if err == nil {
			return nil
		}
		if o.LockResolver == nil || !o.platform().IsFileLockError(err) {
			return err
		}
		if !o.LockResolver(absPath) {
			return err
		}
	}
}

// CopyFiles copies relPaths from source to target, skipping the running
// binary and creating intermediate directories as needed. It returns the
// first hard failure after attempting every path; callers that need a
// per-file outcome use Report.
func (o *Ops) CopyFiles(ctx context.Context, source, target string, relPaths []string) error {
	var firstErr error

	for _, relPath := range relPaths {
		if ctx.Err() != nil {
			return ErrCancelled
		}

		srcPath := filepath.Join(source, relPath)
		tgtPath := filepath.Join(target, relPath)

		if o.isSelf(tgtPath) {
			o.report(relPath, "SKIP self", true)
			continue
		}

		if _, err := os.Stat(srcPath); err != nil {
			o.report(relPath, "COPY - source not found", false)
			firstErr = firstOrKeep(firstErr, fmt.Errorf("source %s does not exist", srcPath))
			continue
		}

		if err := os.MkdirAll(filepath.Dir(tgtPath), 0755); err != nil {
			o.report(relPath, "COPY - cannot create directory", false)
			firstErr = firstOrKeep(firstErr, fmt.Errorf("creating directory for %s: %w", tgtPath, err))
			continue
		}

		if _, err := os.Stat(tgtPath); err == nil {
			if err := o.Retry(ctx, tgtPath, func() error { return os.Remove(tgtPath) }); err != nil {
				o.report(relPath, "COPY - cannot remove existing", false)
				firstErr = firstOrKeep(firstErr, fmt.Errorf("removing existing %s: %w", tgtPath, err))
				continue
			}
		}

		if err := o.Retry(ctx, tgtPath, func() error { return copyFile(srcPath, tgtPath) }); err != nil {
			o.report(relPath, "COPY", false)
			firstErr = firstOrKeep(firstErr, fmt.Errorf("copying %s: %w", relPath, err))
			continue
		}

		o.report(relPath, "COPY", true)
	}

	return firstErr
}

// RemoveFiles deletes relPaths under dir, skipping the running binary and
// treating an already-absent file as success.
func (o *Ops) RemoveFiles(ctx context.Context, dir string, relPaths []string) error {
	var firstErr error

	for _, relPath := range relPaths {
		if ctx.Err() != nil {
			return ErrCancelled
		}

		fullPath := filepath.Join(dir, relPath)

		if o.isSelf(fullPath) {
			o.report(relPath, "SKIP self", true)
			continue
		}

		if _, err := os.Stat(fullPath); os.IsNotExist(err) {
			o.report(relPath, "REMOVE - already gone", true)
			continue
		}

		if err := o.Retry(ctx, fullPath, func() error { return os.Remove(fullPath) }); err != nil {
			o.report(relPath, "REMOVE", false)
			firstErr = firstOrKeep(firstErr, fmt.Errorf("removing %s: %w", relPath, err))
			continue
		}

		o.report(relPath, "REMOVE", true)
	}

	return firstErr
}

// RenameToBackup renames each relPath under dir to a ".bak" sidecar, so a
// failed apply can be rolled back with RestoreFromBackup. On the first
// failure it undoes every rename already performed this call and returns
// the error.
func (o *Ops) RenameToBackup(ctx context.Context, dir string, relPaths []string) error {
	for i, relPath := range relPaths {
		if ctx.Err() != nil {
			o.undoBackups(dir, relPaths[:i])
			return ErrCancelled
		}

		path := filepath.Join(dir, relPath)
		bakPath := path + ".bak"

		if _, err := os.Stat(bakPath); err == nil {
			_ = o.Retry(ctx, bakPath, func() error { return os.Remove(bakPath) })
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			o.report(relPath, "BACKUP - not found, skipping", true)
			continue
		}

		if err := o.Retry(ctx, path, func() error { return os.Rename(path, bakPath) }); err != nil {
			o.report(relPath, "BACKUP", false)
			o.undoBackups(dir, relPaths[:i])
			return fmt.Errorf("backing up %s: %w", relPath, err)
		}

		o.report(relPath, "BACKUP", true)
	}

	return nil
}

func (o *Ops) undoBackups(dir string, relPaths []string) {
	for _, relPath := range relPaths {
		path := filepath.Join(dir, relPath)
		bakPath := path + ".bak"
		if _, err := os.Stat(bakPath); err == nil {
			_ = os.Rename(bakPath, path)
		}
	}
}

// RestoreFromBackup reverses RenameToBackup: every relPath with a ".bak"
// sidecar gets the sidecar moved back over it.
func (o *Ops) RestoreFromBackup(ctx context.Context, dir string, relPaths []string) error {
	var firstErr error

	for _, relPath := range relPaths {
		if ctx.Err() != nil {
			return ErrCancelled
		}

		path := filepath.Join(dir, relPath)
		bakPath := path + ".bak"

		if _, err := os.Stat(bakPath); os.IsNotExist(err) {
			continue
		}

		if _, err := os.Stat(path); err == nil {
			_ = o.Retry(ctx, path, func() error { return os.Remove(path) })
		}

		if err := o.Retry(ctx, bakPath, func() error { return os.Rename(bakPath, path) }); err != nil {
			o.report(relPath, "RESTORE", false)
			firstErr = firstOrKeep(firstErr, fmt.Errorf("restoring %s: %w", relPath, err))
			continue
		}

		o.report(relPath, "RESTORE", true)
	}

	return firstErr
}

// CleanupBackups removes any ".bak" sidecar left after a successful
// apply; failures are not reported since the update has already succeeded.
func (o *Ops) CleanupBackups(dir string, relPaths []string) {
	for _, relPath := range relPaths {
		bakPath := filepath.Join(dir, relPath) + ".bak"
		if _, err := os.Stat(bakPath); err == nil {
			_ = os.Remove(bakPath)
		}
	}
}

// VerifyFiles re-hashes each path in expected and returns the relative
// paths whose content does not match (or could not be read).
func (o *Ops) VerifyFiles(ctx context.Context, dir string, expected map[string][32]byte) []string {
	var mismatches []string

	for relPath, want := range expected {
		if ctx.Err() != nil {
			mismatches = append(mismatches, relPath)
			continue
		}

		fullPath := filepath.Join(dir, relPath)
		var got [32]byte
		err := o.Retry(ctx, fullPath, func() error {
			digest, hashErr := HashFile(fullPath)
			if hashErr != nil {
				return hashErr
			}
			got = digest
			return nil
		})

		if err != nil || got != want {
			mismatches = append(mismatches, relPath)
		}
	}

	sort.Strings(mismatches)
	return mismatches
}

// RemoveEmptyDirectories deletes every directory under dir that contains
// no entries, processing the deepest directories first so a chain of
// now-empty parents collapses in one pass.
func RemoveEmptyDirectories(dir string) error {
	var dirs []string
	err := filepath.Walk(dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() && p != dir {
			dirs = append(dirs, p)
		}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })

	for _, d := range dirs {
		entries, err := os.ReadDir(d)
		if err != nil {
			continue
		}
		if len(entries) == 0 {
			_ = os.Remove(d)
		}
	}

	return nil
}

// HashFile returns the SHA-256 digest of the file at path.
func HashFile(path string) ([32]byte, error) {
	var digest [32]byte

	f, err := os.Open(path)
	if err != nil {
		return digest, err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return digest, err
	}
	copy(digest[:], h.Sum(nil))
	return digest, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
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

func firstOrKeep(existing, next error) error {
	if existing != nil {
		return existing
	}
	return next
}
