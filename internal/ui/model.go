// Package ui implements the three-screen bubbletea progress UI: a
// destination picker (install only), a confirmation screen with
// from-to version badges and an optional rendered changelog, and a
// progress/log screen. All three share a button bar whose visible
// buttons change by screen and state; the UI forwards Proceed to
// engine.Execute, Cancel to engine.Cancel, and a lock-dialog outcome to
// engine.RespondToLockPrompt. Grounded on the pack's bubbletea/lipgloss
// TUI stack (palette.Model's phase-enum/Update-dispatch/View-dispatch
// shape), generalized to patchloop's three screens.
package ui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/patchloop/patchloop/internal/appconfig"
	"github.com/patchloop/patchloop/internal/applog"
	"github.com/patchloop/patchloop/internal/engine"
	"github.com/patchloop/patchloop/internal/platform"
)

// Screen identifies which of the three stacked screens is active.
type Screen int

const (
	ScreenDestination Screen = iota
	ScreenConfirm
	ScreenProgress
)

// Model is the top-level bubbletea model. It owns no update logic itself;
// every screen only gathers input and forwards decisions to the Engine.
type Model struct {
	cfg    appconfig.Config
	log    *applog.Sink
	plat   platform.Platform
	screen Screen

	destination destinationModel
	confirm     confirmModel
	progress    progressModel

	eng    *engine.Engine
	result error
	done   bool

	width, height int
}

// New builds the initial Model for cfg. Destination is skipped (the
// Model starts on ScreenConfirm) unless cfg.Mode is appconfig.Install
// and TargetDir is empty: a fresh install needs somewhere to go, an
// update already knows its target.
func New(cfg appconfig.Config, log *applog.Sink, plat platform.Platform) Model {
	m := Model{
		cfg:    cfg,
		log:    log,
		plat:   plat,
		screen: ScreenConfirm,
	}
	if cfg.Mode == appconfig.Install && cfg.TargetDir == "" {
		m.screen = ScreenDestination
		m.destination = newDestinationModel(cfg.SourceDir)
	}
	m.confirm = newConfirmModel()
	m.progress = newProgressModel()
	return m
}

func (m Model) Init() tea.Cmd {
	if m.screen == ScreenDestination {
		return nil
	}
	return m.enterConfirm()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.cancelRun()
			return m, tea.Quit
		}
	}

	switch msg := msg.(type) {
	case prepareReadyMsg:
		m.eng = msg.eng
		m.confirm.setPrepared(msg.result, m.cfg)
		return m, nil
	case prepareFailedMsg:
		m.confirm.setPrepareError(msg.err)
		return m, nil
	}

	switch m.screen {
	case ScreenDestination:
		return m.updateDestination(msg)
	case ScreenConfirm:
		return m.updateConfirm(msg)
	case ScreenProgress:
		return m.updateProgress(msg)
	}
	return m, nil
}

func (m Model) View() string {
	switch m.screen {
	case ScreenDestination:
		return m.destination.View()
	case ScreenConfirm:
		return m.confirm.View()
	case ScreenProgress:
		return m.progress.View()
	default:
		return ""
	}
}

// Err returns the engine's terminal error, if any, after the program
// exits.
func (m Model) Err() error {
	return m.result
}

func (m *Model) cancelRun() {
	if m.eng != nil {
		m.eng.Cancel()
	}
}

func (m Model) updateDestination(msg tea.Msg) (tea.Model, tea.Cmd) {
	next, cmd := m.destination.Update(msg)
	m.destination = next
	if m.destination.confirmed {
		m.cfg.TargetDir = m.destination.value
		m.screen = ScreenConfirm
		return m, m.enterConfirm()
	}
	if m.destination.cancelled {
		m.done = true
		return m, tea.Quit
	}
	return m, cmd
}

func (m Model) updateConfirm(msg tea.Msg) (tea.Model, tea.Cmd) {
	next, cmd := m.confirm.Update(msg)
	m.confirm = next
	switch {
	case m.confirm.proceed:
		m.screen = ScreenProgress
		return m, tea.Batch(m.startExecute(), waitForEvent(m.eng))
	case m.confirm.cancelled:
		m.done = true
		return m, tea.Quit
	}
	return m, cmd
}

func (m Model) updateProgress(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case engineEventMsg:
		next, cmd := m.progress.handleEvent(msg.event, m.eng)
		m.progress = next
		if msg.event.Kind == engine.EventFinished {
			m.result = msg.event.Err
			m.done = true
			return m, tea.Batch(cmd, tea.Quit)
		}
		return m, tea.Batch(cmd, waitForEvent(m.eng))
	case engineDoneMsg:
		return m, nil
	}

	next, cmd := m.progress.Update(msg, m.eng)
	m.progress = next
	if m.progress.cancelRequested {
		m.cancelRun()
	}
	return m, cmd
}

// enterConfirm runs Prepare synchronously (it is documented as cheap: no
// network, no target hashing) and seeds the confirmation screen. It builds
// the Engine inside the returned tea.Cmd closure, which runs detached from
// the stored Model, so the new Engine travels back in prepareReadyMsg
// rather than through a field write on m: Update (not this Cmd) is what
// owns the Model the runtime keeps.
func (m Model) enterConfirm() tea.Cmd {
	cfg := m.toEngineConfig()
	log := m.log
	plat := m.plat
	return func() tea.Msg {
		eng := engine.New(cfg, log, plat)
		result, err := eng.Prepare()
		if err != nil {
			return prepareFailedMsg{err: err}
		}
		return prepareReadyMsg{eng: eng, result: result}
	}
}

func (m *Model) toEngineConfig() engine.Config {
	selfPath, _ := currentExecutablePath()
	return engine.Config{
		Source:         m.cfg.Source,
		TargetDir:      m.cfg.TargetDir,
		ForceUpdate:    m.cfg.Force,
		InstallMode:    m.cfg.Mode == appconfig.Install,
		ContinueUpdate: m.cfg.ContinueUpdate,
		SelfPath:       selfPath,
		ShortcutName:   shortcutNameFor(m.cfg),
	}
}

func shortcutNameFor(cfg appconfig.Config) string {
	if cfg.Mode == appconfig.Install {
		return "Application"
	}
	return ""
}

func (m *Model) startExecute() tea.Cmd {
	return func() tea.Msg {
		go m.eng.Execute(context.Background())
		return engineDoneMsg{}
	}
}

type engineEventMsg struct{ event engine.Event }
type engineDoneMsg struct{}
type prepareReadyMsg struct {
	eng    *engine.Engine
	result *engine.PrepareResult
}
type prepareFailedMsg struct{ err error }

func waitForEvent(e *engine.Engine) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-e.Events()
		if !ok {
			return engineDoneMsg{}
		}
		return engineEventMsg{event: ev}
	}
}

func fmtVersion(v fmt.Stringer) string {
	if v == nil {
		return "(none)"
	}
	return v.String()
}
