//go:build windows

package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"syscall"

	ole "github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"
	"golang.org/x/sys/windows"
)

var current Platform = windowsPlatform{}

type windowsPlatform struct{}

var versionRe = regexp.MustCompile(`\d+\.\d+(?:\.\d+)*`)

func (windowsPlatform) ReadExeVersion(path string) (string, error) {
	size, err := windows.GetFileVersionInfoSize(path, nil)
	if err != nil || size == 0 {
		return "", fmt.Errorf("no version resource in %s", path)
	}

	info := make([]byte, size)
	if err := windows.GetFileVersionInfo(path, 0, size, unsafePointer(info)); err != nil {
		return "", fmt.Errorf("reading version info: %w", err)
	}

	for _, lang := range []string{"040904b0", "040904E4"} {
		subBlock := `\StringFileInfo\` + lang + `\ProductVersion`
		if ver, ok := queryVersionString(info, subBlock); ok {
			if m := versionRe.FindString(ver); m != "" {
				return m, nil
			}
		}
	}

	return "", fmt.Errorf("no ProductVersion found in %s", path)
}

func (windowsPlatform) FindLockingProcesses(dir string) ([]LockingProcess, error) {
	// Restart Manager session registration requires CGO-free bindings this
	// module does not carry; Windows lock detection instead relies on the
	// "is the error a sharing violation" signal in IsFileLockError, and the
	// engine's lock-retry loop surfaces that without naming the holder.
	return nil, nil
}

func (windowsPlatform) KillProcess(pid int) error {
	handle, err := windows.OpenProcess(windows.PROCESS_TERMINATE, false, uint32(pid))
	if err != nil {
		return err
	}
	defer windows.CloseHandle(handle)
	return windows.TerminateProcess(handle, 1)
}

func (windowsPlatform) IsFileLockError(err error) bool {
	return errorsIsErrno(err, windows.ERROR_SHARING_VIOLATION) || errorsIsErrno(err, windows.ERROR_LOCK_VIOLATION)
}

func errorsIsErrno(err error, code syscall.Errno) bool {
	for err != nil {
		if errno, ok := err.(syscall.Errno); ok {
			return errno == code
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}

func (windowsPlatform) CreateShortcut(name, target, args string) error {
	desktop, err := desktopDirectory()
	if err != nil {
		return err
	}
	return writeShortcut(filepath.Join(desktop, name+".lnk"), target, args)
}

func (windowsPlatform) RemoveShortcut(name string) error {
	desktop, err := desktopDirectory()
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(desktop, name+".lnk"))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (windowsPlatform) MigrateShortcuts(target, newTarget string) error {
	desktop, err := desktopDirectory()
	if err != nil {
		return err
	}
	entries, err := os.ReadDir(desktop)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	oldExeName := strings.ToLower(filepath.Base(target))

	if err := ole.CoInitialize(0); err != nil {
		return fmt.Errorf("initializing COM: %w", err)
	}
	defer ole.CoUninitialize()

	for _, entry := range entries {
		if !strings.HasSuffix(strings.ToLower(entry.Name()), ".lnk") {
			continue
		}
		lnkPath := filepath.Join(desktop, entry.Name())
		existingTarget, ok := readShortcutTarget(lnkPath)
		if !ok || strings.ToLower(filepath.Base(existingTarget)) != oldExeName {
			continue
		}
		_ = writeShortcut(lnkPath, newTarget, "")
	}
	return nil
}

func (windowsPlatform) RenameSelfForUpdate(path string) (string, error) {
	oldPath := path + "_old"
	_ = os.Remove(oldPath)
	if err := os.Rename(path, oldPath); err != nil {
		return "", err
	}
	return oldPath, nil
}

func (windowsPlatform) CleanupOldSelf(path string) error {
	oldPath := path + "_old"
	err := os.Remove(oldPath)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (windowsPlatform) SetExecutable(path string) error {
	return nil
}

func desktopDirectory() (string, error) {
	folder, err := windows.KnownFolderPath(windows.FOLDERID_Desktop, 0)
	if err != nil {
		return "", fmt.Errorf("resolving desktop folder: %w", err)
	}
	return folder, nil
}

func writeShortcut(lnkPath, target, args string) error {
	if err := ole.CoInitialize(0); err != nil {
		return fmt.Errorf("initializing COM: %w", err)
	}
	defer ole.CoUninitialize()

	unknown, err := oleutil.CreateObject("WScript.Shell")
	if err != nil {
		return fmt.Errorf("creating WScript.Shell: %w", err)
	}
	defer unknown.Release()

	shell, err := unknown.QueryInterface(ole.IID_IDispatch)
	if err != nil {
		return fmt.Errorf("querying shell dispatch: %w", err)
	}
	defer shell.Release()

	link, err := oleutil.CallMethod(shell, "CreateShortcut", lnkPath)
	if err != nil {
		return fmt.Errorf("creating shortcut object: %w", err)
	}
	linkDisp := link.ToIDispatch()
	defer linkDisp.Release()

	if _, err := oleutil.PutProperty(linkDisp, "TargetPath", target); err != nil {
		return fmt.Errorf("setting target path: %w", err)
	}
	if _, err := oleutil.PutProperty(linkDisp, "WorkingDirectory", filepath.Dir(target)); err != nil {
		return fmt.Errorf("setting working directory: %w", err)
	}
	if args != "" {
		if _, err := oleutil.PutProperty(linkDisp, "Arguments", args); err != nil {
			return fmt.Errorf("setting arguments: %w", err)
		}
	}
	if _, err := oleutil.CallMethod(linkDisp, "Save"); err != nil {
		return fmt.Errorf("saving shortcut: %w", err)
	}
	return nil
}

func readShortcutTarget(lnkPath string) (string, bool) {
	unknown, err := oleutil.CreateObject("WScript.Shell")
	if err != nil {
		return "", false
	}
	defer unknown.Release()

	shell, err := unknown.QueryInterface(ole.IID_IDispatch)
	if err != nil {
		return "", false
	}
	defer shell.Release()

	link, err := oleutil.CallMethod(shell, "CreateShortcut", lnkPath)
	if err != nil {
		return "", false
	}
	linkDisp := link.ToIDispatch()
	defer linkDisp.Release()

	target, err := oleutil.GetProperty(linkDisp, "TargetPath")
	if err != nil {
		return "", false
	}
	return target.ToString(), true
}

func queryVersionString(info []byte, subBlock string) (string, bool) {
	value, err := windows.VerQueryValue(unsafePointer(info), subBlock)
	if err != nil {
		return "", false
	}
	return value, true
}

func unsafePointer(b []byte) *byte {
	if len(b) == 0 {
		return nil
	}
	return &b[0]
}
