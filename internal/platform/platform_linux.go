//go:build linux

package platform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

var current Platform = linuxPlatform{}

type linuxPlatform struct{}

var versionRe = regexp.MustCompile(`\d+\.\d+(?:\.\d+)*`)

func (linuxPlatform) ReadExeVersion(path string) (string, error) {
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

func (linuxPlatform) FindLockingProcesses(dir string) ([]LockingProcess, error) {
	var absPaths []string
	err := filepath.Walk(dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			abs, err := filepath.Abs(p)
			if err == nil {
				absPaths = append(absPaths, abs)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(absPaths) == 0 {
		return nil, nil
	}

	wanted := make(map[string]bool, len(absPaths))
	for _, p := range absPaths {
		wanted[p] = true
	}

	procEntries, err := os.ReadDir("/proc")
	if err != nil {
		return nil, fmt.Errorf("reading /proc: %w", err)
	}

	var result []LockingProcess
	seen := make(map[int]bool)

	for _, entry := range procEntries {
		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}

		fdDir := fmt.Sprintf("/proc/%d/fd", pid)
		fds, err := os.ReadDir(fdDir)
		if err != nil {
			continue
		}

		for _, fdEntry := range fds {
			target, err := os.Readlink(filepath.Join(fdDir, fdEntry.Name()))
			if err != nil {
				continue
			}
			if wanted[target] && !seen[pid] {
				seen[pid] = true
				name := strconv.Itoa(pid)
				if comm, err := os.ReadFile(fmt.Sprintf("/proc/%d/comm", pid)); err == nil {
					name = strings.TrimSpace(string(comm))
				}
				result = append(result, LockingProcess{PID: pid, Name: name})
				break
			}
		}
	}

	return result, nil
}

func (linuxPlatform) KillProcess(pid int) error {
	return unix.Kill(pid, unix.SIGKILL)
}

func (linuxPlatform) IsFileLockError(err error) bool {
	var errno unix.Errno
	if errors.As(err, &errno) {
		return errno == unix.ETXTBSY || errno == unix.EBUSY
	}
	return false
}

func (linuxPlatform) CreateShortcut(name, target, args string) error {
	desktopDir, err := desktopDirectory()
	if err != nil {
		return err
	}
	path := filepath.Join(desktopDir, name+".desktop")

	var body strings.Builder
	body.WriteString("[Desktop Entry]\n")
	body.WriteString("Version=1.0\n")
	body.WriteString("Type=Application\n")
	body.WriteString("Name=" + name + "\n")
	execLine := target
	if args != "" {
		execLine += " " + args
	}
	body.WriteString("Exec=" + execLine + "\n")
	body.WriteString("Terminal=false\n")

	if err := os.WriteFile(path, []byte(body.String()), 0755); err != nil {
		return fmt.Errorf("writing shortcut %s: %w", path, err)
	}
	return nil
}

func (linuxPlatform) RemoveShortcut(name string) error {
	desktopDir, err := desktopDirectory()
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(desktopDir, name+".desktop"))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (p linuxPlatform) MigrateShortcuts(target, newTarget string) error {
	desktopDir, err := desktopDirectory()
	if err != nil {
		return err
	}
	entries, err := os.ReadDir(desktopDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), ".desktop") {
			continue
		}
		path := filepath.Join(desktopDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		rewritten := strings.ReplaceAll(string(data), "Exec="+target, "Exec="+newTarget)
		if rewritten != string(data) {
			_ = os.WriteFile(path, []byte(rewritten), 0755)
		}
	}
	return nil
}

func (linuxPlatform) RenameSelfForUpdate(path string) (string, error) {
	oldPath := path + "_old"
	_ = os.Remove(oldPath)
	if err := os.Rename(path, oldPath); err != nil {
		return "", err
	}
	return oldPath, nil
}

func (linuxPlatform) CleanupOldSelf(path string) error {
	oldPath := path + "_old"
	err := os.Remove(oldPath)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (linuxPlatform) SetExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	return os.Chmod(path, info.Mode()|0111)
}

func desktopDirectory() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "Desktop"), nil
}
