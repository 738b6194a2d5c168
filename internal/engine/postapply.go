package engine

import (
	"os"
	"os/exec"
	"path/filepath"
)

// postApply runs the final, best-effort steps after a successful update:
// (re)creating the desktop shortcut and launching the updated
// application. Failures here are logged but never turn a completed
// update into a reported failure.
func (e *Engine) postApply() {
	if e.sourceManifest == nil || e.sourceManifest.AppExe == "" {
		return
	}

	appExe := filepath.Join(e.cfg.TargetDir, e.sourceManifest.AppExe)

	if e.cfg.ShortcutName != "" {
		if err := e.plat.CreateShortcut(e.cfg.ShortcutName, appExe, ""); err != nil {
			e.log.Warn("creating shortcut %q: %v", e.cfg.ShortcutName, err)
		}
	}

	if _, err := os.Stat(appExe); err != nil {
		return
	}

	arg := "--update"
	if e.cfg.InstallMode {
		arg = "--installation"
	}

	cmd := exec.Command(appExe, arg)
	cmd.Dir = e.cfg.TargetDir
	if err := cmd.Start(); err != nil {
		e.log.Warn("launching %s: %v", appExe, err)
	}
}
