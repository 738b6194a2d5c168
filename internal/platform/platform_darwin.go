//go:build darwin

package platform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"time"

	"golang.org/x/sys/unix"
)

var current Platform = darwinPlatform{}

// darwinPlatform reuses the same POSIX process-signal and version-probe
// behavior as Linux, and treats shortcuts as unsupported since macOS has
// no .desktop/.lnk equivalent.
type darwinPlatform struct{}

var versionRe = regexp.MustCompile(`\d+\.\d+(?:\.\d+)*`)

func (darwinPlatform) ReadExeVersion(path string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, path, "--version")
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("running %s --version: %w", path, err)
	}

	match := versionRe.FindString(out.String())
	if match == "" {
		return "", fmt.Errorf("no version string in %s --version output", path)
	}
	return match, nil
}

func (darwinPlatform) FindLockingProcesses(dir string) ([]LockingProcess, error) {
	return nil, nil
}

func (darwinPlatform) KillProcess(pid int) error {
	return unix.Kill(pid, unix.SIGKILL)
}

func (darwinPlatform) IsFileLockError(err error) bool {
	var errno unix.Errno
	if errors.As(err, &errno) {
		return errno == unix.ETXTBSY || errno == unix.EBUSY
	}
	return false
}

func (darwinPlatform) CreateShortcut(name, target, args string) error {
	return ErrUnsupported
}

func (darwinPlatform) RemoveShortcut(name string) error {
	return ErrUnsupported
}

func (darwinPlatform) MigrateShortcuts(target, newTarget string) error {
	return nil
}

func (darwinPlatform) RenameSelfForUpdate(path string) (string, error) {
	oldPath := path + "_old"
	_ = os.Remove(oldPath)
	if err := os.Rename(path, oldPath); err != nil {
		return "", err
	}
	return oldPath, nil
}

func (darwinPlatform) CleanupOldSelf(path string) error {
	oldPath := path + "_old"
	err := os.Remove(oldPath)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (darwinPlatform) SetExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	return os.Chmod(path, info.Mode()|0111)
}
