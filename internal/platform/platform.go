// Package platform isolates the operating-system-specific behavior the
// update engine needs: reading an executable's embedded version, finding
// and killing processes that hold a file open, shortcut management, and the
// self-update rename dance.
package platform

import "errors"

// ErrUnsupported is returned by operations that have no implementation on
// the running GOOS (e.g. shortcut creation on macOS).
var ErrUnsupported = errors.New("platform: operation not supported on this OS")

// LockingProcess describes a process holding a path open, surfaced to the
// caller so a lock-conflict prompt can name it.
type LockingProcess struct {
	PID  int
	Name string
}

// Platform is the set of OS-specific primitives the engine and manifest
// generator depend on. Exactly one implementation is compiled in per GOOS.
type Platform interface {
	// ReadExeVersion extracts the version embedded in the executable at
	// path (PE version resource on Windows; elsewhere, the first version
	// number in the output of running it with --version).
	ReadExeVersion(path string) (string, error)

	// FindLockingProcesses returns the processes with an open handle to
	// anything under dir.
	FindLockingProcesses(dir string) ([]LockingProcess, error)

	// KillProcess forcibly terminates pid.
	KillProcess(pid int) error

	// IsFileLockError reports whether err was caused by another process
	// holding the file open, as opposed to e.g. a permissions failure.
	IsFileLockError(err error) bool

	// CreateShortcut installs a shortcut to target named name, shown with
	// the given args.
	CreateShortcut(name, target, args string) error

	// RemoveShortcut removes a previously created shortcut.
	RemoveShortcut(name string) error

	// MigrateShortcuts repoints any shortcut found to target onto
	// newTarget, used after a self-update moves the binary.
	MigrateShortcuts(target, newTarget string) error

	// RenameSelfForUpdate moves the running executable at path aside
	// (appending the "_old" sidecar suffix) so a new binary can take its
	// place while it is still mapped into memory.
	RenameSelfForUpdate(path string) (oldPath string, err error)

	// CleanupOldSelf removes a sidecar left by a prior RenameSelfForUpdate,
	// called at process start before anything else touches the target.
	CleanupOldSelf(path string) error

	// SetExecutable marks path executable, a no-op on platforms where the
	// file mode already covers it.
	SetExecutable(path string) error
}

// Current returns the Platform implementation for the running GOOS.
func Current() Platform {
	return current
}
