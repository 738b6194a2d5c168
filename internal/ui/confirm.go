package ui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/patchloop/patchloop/internal/appconfig"
	"github.com/patchloop/patchloop/internal/engine"
)

// confirmModel is the second screen: "from -> to" version badges and an
// optional rendered changelog, gated behind a Proceed/Cancel choice.
type confirmModel struct {
	sourceVersion string
	targetVersion string
	mandatory     bool
	changelog     string
	prepareErr    error

	proceed   bool
	cancelled bool
}

func newConfirmModel() confirmModel {
	return confirmModel{}
}

func (m *confirmModel) setPrepared(result *engine.PrepareResult, cfg appconfig.Config) {
	if result.SourceManifest.Version != nil {
		m.sourceVersion = result.SourceManifest.Version.Original()
	} else {
		m.sourceVersion = "(unversioned)"
	}
	if result.TargetVersion != nil {
		m.targetVersion = result.TargetVersion.Original()
	} else {
		m.targetVersion = "(not installed)"
	}
	m.mandatory = result.Mandatory
	m.changelog = loadChangelog(cfg.Source)
}

func (m *confirmModel) setPrepareError(err error) {
	m.prepareErr = err
}

// loadChangelog renders the CHANGELOG.md at the source root via glamour,
// for display on the confirmation screen. Absence is silent.
func loadChangelog(sourceDir string) string {
	data, err := os.ReadFile(filepath.Join(sourceDir, "CHANGELOG.md"))
	if err != nil {
		return ""
	}
	rendered, err := glamour.Render(string(data), "dark")
	if err != nil {
		return string(data)
	}
	return rendered
}

func (m confirmModel) Update(msg tea.Msg) (confirmModel, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "enter", "p":
			if m.prepareErr == nil {
				m.proceed = true
			}
		case "esc", "c":
			m.cancelled = true
		}
	}
	return m, nil
}

func (m confirmModel) View() string {
	var b strings.Builder

	b.WriteString("\n  " + titleStyle.Render("Confirm update") + "\n\n")

	if m.prepareErr != nil {
		b.WriteString("  " + errorStyle.Render(fmt.Sprintf("Could not prepare: %v", m.prepareErr)) + "\n")
		return b.String()
	}

	badge := fmt.Sprintf("%s  →  %s", m.targetVersion, m.sourceVersion)
	b.WriteString("  " + versionBadgeStyle.Render(badge) + "\n")
	if m.mandatory {
		b.WriteString("  " + warnStyle.Render("This update is mandatory.") + "\n")
	}

	if m.changelog != "" {
		b.WriteString("\n" + m.changelog + "\n")
	}

	b.WriteString("\n  " + helpStyle.Render("enter/p to proceed · esc/c to cancel") + "\n")
	return b.String()
}
