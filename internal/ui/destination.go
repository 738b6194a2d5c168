package ui

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// destinationModel is the install-only first screen: picking the
// directory the application will be installed into.
type destinationModel struct {
	input     textinput.Model
	confirmed bool
	cancelled bool
	value     string
}

func newDestinationModel(defaultDir string) destinationModel {
	ti := textinput.New()
	ti.Placeholder = "Installation directory"
	ti.SetValue(defaultDir)
	ti.Focus()
	ti.CharLimit = 256
	ti.Width = 60
	return destinationModel{input: ti}
}

func (m destinationModel) Update(msg tea.Msg) (destinationModel, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "enter":
			m.value = m.input.Value()
			m.confirmed = true
			return m, nil
		case "esc":
			m.cancelled = true
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m destinationModel) View() string {
	return "\n  " + titleStyle.Render("Choose an installation directory") + "\n\n  " +
		m.input.View() + "\n\n  " +
		helpStyle.Render("enter to continue · esc to cancel") + "\n"
}
