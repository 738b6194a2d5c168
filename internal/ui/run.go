package ui

import (
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/patchloop/patchloop/internal/appconfig"
	"github.com/patchloop/patchloop/internal/applog"
	"github.com/patchloop/patchloop/internal/platform"
)

// Run builds the three-screen program for cfg and blocks until the user
// proceeds to completion or cancels. It returns the config as it stood at
// exit, with TargetDir filled in from the destination picker if the caller
// left it blank, so the caller can persist where this run actually landed.
func Run(cfg appconfig.Config, log *applog.Sink) (appconfig.Config, error) {
	m := New(cfg, log, platform.Current())
	p := tea.NewProgram(m)
	final, err := p.Run()
	if err != nil {
		return cfg, fmt.Errorf("running UI: %w", err)
	}
	if fm, ok := final.(Model); ok {
		return fm.cfg, fm.Err()
	}
	return cfg, nil
}

func currentExecutablePath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		return resolved, nil
	}
	return exe, nil
}
