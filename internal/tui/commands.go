package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/zarlcorp/zpass/internal/credential"
	"github.com/zarlcorp/zpass/internal/store"
	"github.com/zarlcorp/zpass/internal/tab"
)

// flashDuration is how long transient feedback such as "copied!" stays up.
const flashDuration = time.Second

// storeOp names the storage action a result belongs to.
type storeOp int

const (
	opLoad storeOp = iota
	opSearch
	opAdd
	opUpdate
	opDelete
	opClear
	opCancelEdit
)

func (o storeOp) String() string {
	switch o {
	case opLoad:
		return "load"
	case opSearch:
		return "search"
	case opAdd:
		return "save"
	case opUpdate:
		return "update"
	case opDelete:
		return "delete"
	case opClear:
		return "clear"
	case opCancelEdit:
		return "reload"
	}
	return "store"
}

// storeResultMsg carries the collection as read back from storage after op.
type storeResultMsg struct {
	op      storeOp
	entries credential.Collection
	err     error
}

// tabDomainMsg reports the active tab's domain, if one resolved.
type tabDomainMsg struct {
	domain string
	ok     bool
}

// copiedMsg reports the outcome of a clipboard write. id is empty for the
// generated password and the credential ID for list rows.
type copiedMsg struct {
	id  string
	err error
}

// flashMsg clears the flash it was scheduled for.
type flashMsg struct {
	seq int
}

func clearFlashAfter(seq int) tea.Cmd {
	return tea.Tick(flashDuration, func(time.Time) tea.Msg {
		return flashMsg{seq: seq}
	})
}

func loadCmd(ctx context.Context, s *store.Store, op storeOp) tea.Cmd {
	return func() tea.Msg {
		col, err := s.Load(ctx)
		return storeResultMsg{op: op, entries: col, err: err}
	}
}

func addCmd(ctx context.Context, s *store.Store, c credential.Credential) tea.Cmd {
	return func() tea.Msg {
		col, err := s.Add(ctx, c)
		return storeResultMsg{op: opAdd, entries: col, err: err}
	}
}

func updateCmd(ctx context.Context, s *store.Store, c credential.Credential) tea.Cmd {
	return func() tea.Msg {
		col, err := s.Update(ctx, c)
		return storeResultMsg{op: opUpdate, entries: col, err: err}
	}
}

func deleteCmd(ctx context.Context, s *store.Store, id string) tea.Cmd {
	return func() tea.Msg {
		col, err := s.Delete(ctx, id)
		return storeResultMsg{op: opDelete, entries: col, err: err}
	}
}

func clearCmd(ctx context.Context, s *store.Store) tea.Cmd {
	return func() tea.Msg {
		if err := s.Clear(ctx); err != nil {
			return storeResultMsg{op: opClear, err: err}
		}
		col, err := s.Load(ctx)
		return storeResultMsg{op: opClear, entries: col, err: err}
	}
}

func tabDomainCmd(ctx context.Context, src tab.Source) tea.Cmd {
	return func() tea.Msg {
		d, ok := tab.CurrentDomain(ctx, src)
		return tabDomainMsg{domain: d, ok: ok}
	}
}

func copyCmd(cb Clipboard, id, text string) tea.Cmd {
	return func() tea.Msg {
		return copiedMsg{id: id, err: cb.WriteAll(text)}
	}
}
