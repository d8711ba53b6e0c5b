package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/zarlcorp/core/pkg/zstore"
	"github.com/zarlcorp/core/pkg/zstyle"
)

// unlockStage is where the master password prompt is in its flow.
type unlockStage int

const (
	stageUnlock unlockStage = iota // existing store
	stageCreate                    // first run, first entry
	stageRepeat                    // first run, confirmation
)

func (s unlockStage) prompt() string {
	switch s {
	case stageCreate:
		return "choose a master password"
	case stageRepeat:
		return "type it again"
	}
	return "master password"
}

// unlockModel asks for the master password of the encrypted store.
type unlockModel struct {
	input    textinput.Model
	stage    unlockStage
	pending  string
	failures int
	problem  string
}

// unlockMsg carries a submitted master password to the root model.
type unlockMsg struct {
	password string
}

// unlockFailedMsg reports that the store rejected the password.
type unlockFailedMsg struct {
	err error
}

func newUnlockModel(firstRun bool) unlockModel {
	ti := textinput.New()
	ti.Prompt = "› "
	ti.EchoMode = textinput.EchoPassword
	ti.EchoCharacter = '•'
	ti.CharLimit = 128
	ti.Width = 32
	ti.Focus()

	stage := stageUnlock
	if firstRun {
		stage = stageCreate
	}
	return unlockModel{input: ti, stage: stage}
}

func (m unlockModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m unlockModel) Update(msg tea.Msg) (unlockModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case msg.Type == tea.KeyCtrlC, msg.Type == tea.KeyEsc:
			return m, tea.Quit
		case key.Matches(msg, zstyle.KeyEnter):
			return m.submit()
		}

	case unlockFailedMsg:
		m.failures++
		m.problem = describeUnlockError(msg.err)
		m.reset()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// reset returns to the first stage of the flow with an empty input.
func (m *unlockModel) reset() {
	if m.stage == stageRepeat {
		m.stage = stageCreate
	}
	m.pending = ""
	m.input.Reset()
}

func (m unlockModel) submit() (unlockModel, tea.Cmd) {
	val := m.input.Value()
	if strings.TrimSpace(val) == "" {
		m.problem = "password cannot be empty"
		return m, nil
	}

	switch m.stage {
	case stageCreate:
		m.pending = val
		m.stage = stageRepeat
		m.problem = ""
		m.input.Reset()
		return m, nil

	case stageRepeat:
		if val != m.pending {
			m.problem = "passwords do not match"
			m.reset()
			return m, nil
		}
	}

	m.problem = ""
	return m, func() tea.Msg { return unlockMsg{password: val} }
}

func describeUnlockError(err error) string {
	if errors.Is(err, zstore.ErrWrongPassword) {
		return "wrong password"
	}
	return err.Error()
}

func (m unlockModel) View() string {
	pad := lipgloss.NewStyle().PaddingLeft(2)

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(pad.Render(zstyle.StyledLogo(lipgloss.NewStyle().Foreground(accent))))
	b.WriteString("\n")
	b.WriteString(pad.Render(zstyle.Title.Render("zpass") + " " + zstyle.MutedText.Render("encrypted store")))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "  %s\n  %s\n", m.stage.prompt(), m.input.View())

	if m.problem != "" {
		line := m.problem
		if m.failures > 1 {
			line = fmt.Sprintf("%s (attempt %d)", line, m.failures)
		}
		b.WriteString("\n  " + zstyle.StatusErr.Render(line) + "\n")
	}

	return b.String() + "\n"
}
