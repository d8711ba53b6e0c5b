package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/zarlcorp/core/pkg/zstyle"
	"github.com/zarlcorp/zpass/internal/credential"
)

const (
	editSite = iota
	editUsername
	editPassword
	editFieldCount
)

var editLabels = [editFieldCount]string{"site", "username", "password"}

// editModel edits one saved credential. While it is open it replaces the
// whole list, so only one row can be edited at a time.
type editModel struct {
	inputs   [editFieldCount]textinput.Model
	focus    int
	original credential.Credential
	flash    string
}

// commitEditMsg requests persisting the edited credential.
type commitEditMsg struct {
	credential credential.Credential
}

// cancelEditMsg discards the edit.
type cancelEditMsg struct{}

func newEditModel(c credential.Credential) editModel {
	var inputs [editFieldCount]textinput.Model
	for i := range editFieldCount {
		ti := textinput.New()
		ti.Prompt = ""
		ti.CharLimit = 256
		ti.Width = 40
		inputs[i] = ti
	}

	inputs[editSite].SetValue(c.Site)
	inputs[editUsername].SetValue(c.Username)
	inputs[editPassword].SetValue(c.Password)
	inputs[editSite].Focus()

	return editModel{inputs: inputs, original: c}
}

func (m editModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m editModel) Update(msg tea.Msg) (editModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "esc":
			return m, func() tea.Msg { return cancelEditMsg{} }

		case "enter":
			return m.submit()

		case "tab", "down":
			return m.focusField((m.focus + 1) % editFieldCount), textinput.Blink

		case "shift+tab", "up":
			return m.focusField((m.focus - 1 + editFieldCount) % editFieldCount), textinput.Blink
		}
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m editModel) focusField(i int) editModel {
	m.inputs[m.focus].Blur()
	m.focus = i
	m.inputs[m.focus].Focus()
	return m
}

// submit validates the three fields and emits the updated credential.
// On failure the form keeps its values for correction.
func (m editModel) submit() (editModel, tea.Cmd) {
	c := m.original
	c.Site = strings.TrimSpace(m.inputs[editSite].Value())
	c.Username = strings.TrimSpace(m.inputs[editUsername].Value())
	c.Password = strings.TrimSpace(m.inputs[editPassword].Value())

	if err := c.Validate(); err != nil {
		m.flash = "all fields are required: " + err.Error()
		return m, nil
	}

	m.flash = ""
	return m, func() tea.Msg { return commitEditMsg{credential: c} }
}

func (m editModel) View() string {
	var b strings.Builder

	fmt.Fprintf(&b, "  %s\n", zstyle.Subtitle.Render("edit "+m.original.Site))

	for i := range editFieldCount {
		cursor := "  "
		if i == m.focus {
			cursor = "> "
		}
		label := zstyle.MutedText.Render(fmt.Sprintf("%-10s", editLabels[i]))
		fmt.Fprintf(&b, "  %s%s %s\n", cursor, label, m.inputs[i].View())
	}

	if m.flash != "" {
		b.WriteString("\n  " + zstyle.StatusErr.Render(m.flash) + "\n")
	}

	return b.String()
}
