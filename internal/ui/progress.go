package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/patchloop/patchloop/internal/engine"
)

const maxLogLines = 200

// logLine is one colored entry in the elided, outcome-coded log pane.
type logLine struct {
	text  string
	style lineStyle
}

type lineStyle int

const (
	lineNormal lineStyle = iota
	lineError
	lineWarning
	lineStage
)

// progressModel is the third screen: a progress bar, status line, and a
// scrolling, color-coded log — plus the lock-conflict dialog, which
// overlays this screen rather than being a fourth one.
type progressModel struct {
	bar    progress.Model
	status string
	lines  []logLine

	lockPending    bool
	lockProcesses  []string
	cancelRequested bool

	finished bool
	success  bool
}

func newProgressModel() progressModel {
	return progressModel{bar: progress.New(progress.WithDefaultGradient())}
}

func (m progressModel) Update(msg tea.Msg, eng *engine.Engine) (progressModel, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch {
		case m.lockPending && key.String() == "r":
			eng.RespondToLockPrompt(engine.LockRetry)
			m.lockPending = false
		case m.lockPending && key.String() == "k":
			eng.RespondToLockPrompt(engine.LockKillAll)
			m.lockPending = false
		case m.lockPending && key.String() == "c":
			eng.RespondToLockPrompt(engine.LockCancel)
			m.lockPending = false
		case !m.lockPending && !m.finished && key.String() == "esc":
			m.cancelRequested = true
		}
		return m, nil
	}

	var cmd tea.Cmd
	var barModel tea.Model
	barModel, cmd = m.bar.Update(msg)
	if b, ok := barModel.(progress.Model); ok {
		m.bar = b
	}
	return m, cmd
}

func (m progressModel) handleEvent(ev engine.Event, eng *engine.Engine) (progressModel, tea.Cmd) {
	switch ev.Kind {
	case engine.EventStatus:
		m.status = ev.Status
		m.appendLine(ev.Status, lineStage)
	case engine.EventProgress:
		style := lineNormal
		if !ev.FileOK {
			style = lineError
		}
		m.appendLine(ev.FileDesc, style)
	case engine.EventDownloadProgress:
		if ev.DownloadTotal > 0 {
			pct := float64(ev.Downloaded) / float64(ev.DownloadTotal)
			return m, m.bar.SetPercent(pct)
		}
	case engine.EventLockDetected:
		m.lockPending = true
		m.lockProcesses = nil
		for _, p := range ev.LockedProcesses {
			m.lockProcesses = append(m.lockProcesses, fmt.Sprintf("%s (pid %d)", p.Name, p.PID))
		}
		m.appendLine("A file is locked by another process.", lineWarning)
	case engine.EventFinished:
		m.finished = true
		m.success = ev.Success
		if ev.Success {
			m.appendLine("Update finished successfully.", lineStage)
		} else {
			m.appendLine(fmt.Sprintf("Update failed: %v", ev.Err), lineError)
		}
	}
	return m, nil
}

func (m *progressModel) appendLine(text string, style lineStyle) {
	m.lines = append(m.lines, logLine{text: text, style: style})
	if len(m.lines) > maxLogLines {
		m.lines = m.lines[len(m.lines)-maxLogLines:]
	}
}

func (m progressModel) View() string {
	var b strings.Builder

	b.WriteString("\n  " + titleStyle.Render("Updating") + "\n\n")
	b.WriteString("  " + m.bar.View() + "\n\n")
	b.WriteString("  " + m.status + "\n\n")

	for _, line := range m.lines {
		b.WriteString("  " + styleFor(line.style).Render(elide(line.text, 100)) + "\n")
	}

	if m.lockPending {
		b.WriteString("\n  " + warnStyle.Render("Locked by: "+strings.Join(m.lockProcesses, ", ")) + "\n")
		b.WriteString("  " + helpStyle.Render("r retry · k kill and retry · c cancel") + "\n")
	} else if !m.finished {
		b.WriteString("\n  " + helpStyle.Render("esc to cancel") + "\n")
	}

	return b.String()
}

func styleFor(s lineStyle) interface{ Render(...string) string } {
	switch s {
	case lineError:
		return errorStyle
	case lineWarning:
		return warnStyle
	case lineStage:
		return stageStyle
	default:
		return normalStyle
	}
}

// elide truncates long lines from the left, keeping the tail (the most
// specific part of a path) visible.
func elide(s string, width int) string {
	if len(s) <= width {
		return s
	}
	return "…" + s[len(s)-width+1:]
}
