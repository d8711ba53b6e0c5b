// Package tui implements the zpass popup as a single-screen Bubble Tea model.
//
// Storage is the source of truth: every mutation goes through the store in
// a command and the list is rebuilt from the collection it reads back.
package tui

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/zarlcorp/core/pkg/zstyle"
	"github.com/zarlcorp/zpass/internal/credential"
	"github.com/zarlcorp/zpass/internal/generator"
	"github.com/zarlcorp/zpass/internal/store"
	"github.com/zarlcorp/zpass/internal/tab"
)

// accent is the shared zarlcorp tool accent.
var accent = zstyle.ZburnAccent

type viewID int

const (
	viewUnlock viewID = iota
	viewPopup
)

// focusID is the popup section receiving keys. tab cycles through them.
type focusID int

const (
	focusOptions focusID = iota
	focusSite
	focusUsername
	focusSearch
	focusList
	focusCount
)

type confirmKind int

const (
	confirmNone confirmKind = iota
	confirmDelete
	confirmClear
)

// OpenFunc opens the sealed store with a master password. The closer is
// released when the program exits.
type OpenFunc func(password string) (*store.Store, io.Closer, error)

// Options wires the popup to its collaborators.
type Options struct {
	Version   string
	Generator *generator.Generator
	Defaults  generator.Options // zero value means generator.DefaultOptions
	Store     *store.Store      // set for the plain file store
	Open      OpenFunc          // set for the sealed store; prompts first
	FirstRun  bool
	Tab       tab.Source
	Clipboard Clipboard
	Context   context.Context
}

// Model is the root popup model.
type Model struct {
	version string
	ctx     context.Context
	store   *store.Store
	closer  io.Closer
	open    OpenFunc
	tab     tab.Source
	clip    Clipboard

	active   viewID
	unlock   unlockModel
	generate generateModel
	site     textinput.Model
	username textinput.Model
	list     listModel
	edit     *editModel
	focus    focusID

	confirm      confirmKind
	confirmID    string
	confirmLabel string

	flash    string
	flashErr bool
	flashSeq int

	width int
}

// New creates the root popup model.
func New(opts Options) Model {
	gen := opts.Generator
	if gen == nil {
		gen = generator.New()
	}
	defaults := opts.Defaults
	if defaults == (generator.Options{}) {
		defaults = generator.DefaultOptions()
	}
	clip := opts.Clipboard
	if clip == nil {
		clip = SystemClipboard{}
	}
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	m := Model{
		version:  opts.Version,
		ctx:      ctx,
		store:    opts.Store,
		open:     opts.Open,
		tab:      opts.Tab,
		clip:     clip,
		generate: newGenerateModel(gen, defaults),
		site:     newFieldInput("site name"),
		username: newFieldInput("username or email"),
		list:     newListModel(),
		focus:    focusOptions,
	}

	if m.store == nil {
		m.active = viewUnlock
		m.unlock = newUnlockModel(opts.FirstRun)
	} else {
		m.active = viewPopup
	}

	return m
}

func newFieldInput(placeholder string) textinput.Model {
	ti := textinput.New()
	ti.Prompt = ""
	ti.Placeholder = placeholder
	ti.CharLimit = 256
	ti.Width = 40
	return ti
}

func (m Model) Init() tea.Cmd {
	if m.active == viewUnlock {
		return m.unlock.Init()
	}
	return m.startPopup()
}

// startPopup loads the list and looks up the active tab independently, so
// a slow or failing lookup never holds up the list.
func (m Model) startPopup() tea.Cmd {
	return tea.Batch(
		loadCmd(m.ctx, m.store, opLoad),
		tabDomainCmd(m.ctx, m.tab),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case unlockMsg:
		return m.openStore(msg.password)

	case storeResultMsg:
		return m.handleStoreResult(msg)

	case tabDomainMsg:
		if msg.ok && strings.TrimSpace(m.site.Value()) == "" {
			m.site.SetValue(msg.domain)
		}
		return m, nil

	case copiedMsg:
		return m.handleCopied(msg)

	case flashMsg:
		if msg.seq == m.flashSeq && !m.flashErr {
			m.flash = ""
			m.list.copied = ""
		}
		return m, nil

	case commitEditMsg:
		return m, updateCmd(m.ctx, m.store, msg.credential)

	case cancelEditMsg:
		m.edit = nil
		return m, loadCmd(m.ctx, m.store, opCancelEdit)

	case tea.KeyMsg:
		if m.active == viewPopup {
			return m.handleKey(msg)
		}
	}

	return m.updateActive(msg)
}

func (m Model) updateActive(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch {
	case m.active == viewUnlock:
		m.unlock, cmd = m.unlock.Update(msg)
	case m.edit != nil:
		e, c := m.edit.Update(msg)
		m.edit, cmd = &e, c
	default:
		cmd = m.updateFocusedInput(msg)
	}

	return m, cmd
}

func (m *Model) updateFocusedInput(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch m.focus {
	case focusSite:
		m.site, cmd = m.site.Update(msg)
	case focusUsername:
		m.username, cmd = m.username.Update(msg)
	case focusSearch:
		m.list.search, cmd = m.list.search.Update(msg)
	}
	return cmd
}

func (m Model) openStore(password string) (tea.Model, tea.Cmd) {
	if m.open == nil {
		m.unlock, _ = m.unlock.Update(unlockFailedMsg{err: errors.New("no store configured")})
		return m, nil
	}

	s, closer, err := m.open(password)
	if err != nil {
		slog.Warn("open store", "err", err)
		m.unlock, _ = m.unlock.Update(unlockFailedMsg{err: err})
		return m, nil
	}

	m.store = s
	m.closer = closer
	m.active = viewPopup
	return m, tea.Batch(tea.ClearScreen, m.startPopup())
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}

	// error messages block until the next key
	if m.flashErr {
		m.flash = ""
		m.flashErr = false
	}

	if m.confirm != confirmNone {
		return m.handleConfirm(msg)
	}

	if m.edit != nil {
		e, cmd := m.edit.Update(msg)
		m.edit = &e
		return m, cmd
	}

	switch msg.String() {
	case "ctrl+g":
		return m.handleGenerate()
	case "ctrl+y":
		return m.copyOutput()
	case "ctrl+s":
		return m.handleSave()
	case "ctrl+x":
		m.confirm = confirmClear
		return m, nil
	case "tab":
		return m.cycleFocus(1)
	case "shift+tab":
		return m.cycleFocus(-1)
	case "esc":
		return m, tea.Quit
	}

	switch m.focus {
	case focusOptions:
		return m.handleOptionsKey(msg)
	case focusList:
		return m.handleListKey(msg)
	case focusSite, focusUsername:
		if key.Matches(msg, zstyle.KeyEnter) {
			return m.handleSave()
		}
		return m, m.updateFocusedInput(msg)
	case focusSearch:
		if key.Matches(msg, zstyle.KeyEnter) {
			return m.setFocus(focusList)
		}
		return m.handleSearchKey(msg)
	}

	return m, nil
}

func (m Model) handleOptionsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "left", "h", "-":
		m.generate = m.generate.adjustLength(-1)
	case "right", "l", "+":
		m.generate = m.generate.adjustLength(1)
	case "1", "2", "3", "4":
		m.generate = m.generate.toggle(int(msg.Runes[0] - '1'))
	case "enter", " ":
		return m.handleGenerate()
	}
	return m, nil
}

func (m Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, zstyle.KeyUp) {
		m.list = m.list.up()
		return m, nil
	}
	if key.Matches(msg, zstyle.KeyDown) {
		m.list = m.list.down()
		return m, nil
	}

	c, ok := m.list.selected()
	if !ok {
		return m, nil
	}

	switch msg.String() {
	case "enter", "c":
		return m, copyCmd(m.clip, c.ID, c.Password)
	case "r":
		m.list = m.list.toggleReveal()
	case "e":
		e := newEditModel(c)
		m.edit = &e
		return m, e.Init()
	case "d":
		m.confirm = confirmDelete
		m.confirmID = c.ID
		m.confirmLabel = c.Site
	}
	return m, nil
}

// handleSearchKey feeds the search input and, when the query changed,
// reloads a snapshot from storage to filter.
func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	before := m.list.query()
	cmd := m.updateFocusedInput(msg)
	if m.list.query() == before {
		return m, cmd
	}
	return m, tea.Batch(cmd, loadCmd(m.ctx, m.store, opSearch))
}

func (m Model) handleConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	kind, id := m.confirm, m.confirmID
	m.confirm = confirmNone
	m.confirmID = ""
	m.confirmLabel = ""

	if msg.String() != "y" {
		return m, nil
	}

	switch kind {
	case confirmDelete:
		return m, deleteCmd(m.ctx, m.store, id)
	case confirmClear:
		return m, clearCmd(m.ctx, m.store)
	}
	return m, nil
}

func (m Model) handleGenerate() (tea.Model, tea.Cmd) {
	g, err := m.generate.generate()
	m.generate = g
	if err != nil {
		if errors.Is(err, generator.ErrEmptyCharset) {
			return m.setError("select at least one character type!")
		}
		return m.setError("generate: " + err.Error())
	}
	return m, nil
}

func (m Model) copyOutput() (tea.Model, tea.Cmd) {
	if m.generate.output == "" {
		return m, nil
	}
	return m, copyCmd(m.clip, "", m.generate.output)
}

// handleSave validates the new-entry form and appends it to storage.
// The form is only cleared once the write is confirmed.
func (m Model) handleSave() (tea.Model, tea.Cmd) {
	c, err := credential.New(m.site.Value(), m.username.Value(), m.generate.output, time.Now().UTC())
	if err != nil {
		if errors.Is(err, credential.ErrValidation) {
			return m.setError("please fill out site, username, and generate a password")
		}
		return m.setError("save: " + err.Error())
	}
	return m, addCmd(m.ctx, m.store, c)
}

func (m Model) handleStoreResult(msg storeResultMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		slog.Error("store", "op", msg.op.String(), "err", msg.err)
		return m.setError(msg.op.String() + " failed: " + msg.err.Error())
	}

	m.list = m.list.setEntries(msg.entries)

	switch msg.op {
	case opAdd:
		m.site.SetValue("")
		m.username.SetValue("")
		m.generate.output = ""
		return m.setFlash("saved")
	case opUpdate:
		m.edit = nil
		return m.setFlash("updated")
	case opDelete:
		return m.setFlash("deleted")
	case opClear:
		return m.setFlash("history cleared")
	}

	return m, nil
}

func (m Model) handleCopied(msg copiedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		slog.Error("copy", "err", msg.err)
		return m.setError("copy: " + msg.err.Error())
	}
	m.list.copied = msg.id
	return m.setFlash("copied!")
}

func (m Model) cycleFocus(delta int) (tea.Model, tea.Cmd) {
	next := (int(m.focus) + delta + int(focusCount)) % int(focusCount)
	return m.setFocus(focusID(next))
}

func (m Model) setFocus(f focusID) (tea.Model, tea.Cmd) {
	m.site.Blur()
	m.username.Blur()
	m.list.search.Blur()

	m.focus = f

	var cmd tea.Cmd
	switch f {
	case focusSite:
		cmd = m.site.Focus()
	case focusUsername:
		cmd = m.username.Focus()
	case focusSearch:
		cmd = m.list.search.Focus()
	}
	return m, cmd
}

func (m Model) setFlash(s string) (tea.Model, tea.Cmd) {
	m.flashSeq++
	m.flash = s
	m.flashErr = false
	return m, clearFlashAfter(m.flashSeq)
}

func (m Model) setError(s string) (tea.Model, tea.Cmd) {
	m.flashSeq++
	m.flash = s
	m.flashErr = true
	return m, nil
}

func (m Model) View() string {
	if m.active == viewUnlock {
		return m.unlock.View()
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(m.generate.View(m.focus == focusOptions && m.edit == nil))
	if !m.generate.gen.Secure() {
		b.WriteString("    " + zstyle.MutedText.Render("passwords use a non-cryptographic random source") + "\n")
	}
	b.WriteString("\n")

	b.WriteString(fieldLine("site", m.site.View(), m.focus == focusSite && m.edit == nil))
	b.WriteString(fieldLine("username", m.username.View(), m.focus == focusUsername && m.edit == nil))
	b.WriteString("\n")

	if m.edit != nil {
		b.WriteString(m.edit.View())
	} else {
		b.WriteString(m.list.View(m.focus == focusSearch, m.focus == focusList))
	}
	b.WriteString("\n")

	// always reserve a line for status to prevent layout shift
	switch {
	case m.confirm == confirmDelete:
		b.WriteString("  " + zstyle.StatusWarn.Render("delete the password for "+m.confirmLabel+"? (y/n)") + "\n")
	case m.confirm == confirmClear:
		b.WriteString("  " + zstyle.StatusWarn.Render("delete all saved passwords? (y/n)") + "\n")
	case m.flash != "" && m.flashErr:
		b.WriteString("  " + zstyle.StatusErr.Render(m.flash) + "\n")
	case m.flash != "":
		b.WriteString("  " + zstyle.StatusOK.Render(m.flash) + "\n")
	default:
		b.WriteString("\n")
	}

	header := zstyle.RenderHeader("zpass", "Password Generator", accent)
	sep := zstyle.RenderSeparator(m.width)
	footer := zstyle.RenderFooter(m.help())

	return "\n" + header + "\n" + sep + "\n" + b.String() + "\n" + footer + "\n"
}

func fieldLine(label, input string, focused bool) string {
	cursor := "  "
	if focused {
		cursor = "> "
	}
	return "  " + cursor + zstyle.MutedText.Render(padRight(label, 10)) + " " + input + "\n"
}

func padRight(s string, n int) string {
	if len(s) >= n {
		return s
	}
	return s + strings.Repeat(" ", n-len(s))
}

// help returns the footer keybindings for the current state.
func (m Model) help() []zstyle.HelpPair {
	switch {
	case m.confirm != confirmNone:
		return []zstyle.HelpPair{
			{Key: "y", Desc: "confirm"},
			{Key: "any", Desc: "cancel"},
		}
	case m.edit != nil:
		return []zstyle.HelpPair{
			{Key: "tab", Desc: "next"},
			{Key: "enter", Desc: "save"},
			{Key: "esc", Desc: "cancel"},
		}
	}

	pairs := []zstyle.HelpPair{{Key: "tab", Desc: "section"}}
	switch m.focus {
	case focusOptions:
		pairs = append(pairs,
			zstyle.HelpPair{Key: "←/→", Desc: "length"},
			zstyle.HelpPair{Key: "1-4", Desc: "classes"},
			zstyle.HelpPair{Key: "enter", Desc: "generate"},
		)
	case focusList:
		pairs = append(pairs,
			zstyle.HelpPair{Key: "j/k", Desc: "navigate"},
			zstyle.HelpPair{Key: "c", Desc: "copy"},
			zstyle.HelpPair{Key: "r", Desc: "reveal"},
			zstyle.HelpPair{Key: "e", Desc: "edit"},
			zstyle.HelpPair{Key: "d", Desc: "delete"},
		)
	}

	return append(pairs,
		zstyle.HelpPair{Key: "ctrl+g", Desc: "generate"},
		zstyle.HelpPair{Key: "ctrl+y", Desc: "copy"},
		zstyle.HelpPair{Key: "ctrl+s", Desc: "save"},
		zstyle.HelpPair{Key: "ctrl+x", Desc: "clear"},
		zstyle.HelpPair{Key: "esc", Desc: "close"},
	)
}

// Close releases the sealed store, if one was opened. Call after the
// program exits.
func (m Model) Close() error {
	if m.closer != nil {
		return m.closer.Close()
	}
	return nil
}
