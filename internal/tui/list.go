package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/zarlcorp/core/pkg/zstyle"
	"github.com/zarlcorp/zpass/internal/credential"
)

// listModel displays the saved credentials that match the search query.
type listModel struct {
	search   textinput.Model
	entries  credential.Collection
	total    int
	loaded   bool
	cursor   int
	revealed string // id of the row showing its password
	copied   string // id of the row showing "copied!"
}

func newListModel() listModel {
	ti := textinput.New()
	ti.Prompt = ""
	ti.Placeholder = "filter by site or username"
	ti.CharLimit = 128
	ti.Width = 40

	return listModel{search: ti}
}

func (m listModel) query() string {
	return m.search.Value()
}

// setEntries replaces the view with all filtered by the current query.
// The input collection is a fresh read from storage.
func (m listModel) setEntries(all credential.Collection) listModel {
	m.entries = all.Filter(m.query())
	m.total = len(all)
	m.loaded = true
	if m.cursor >= len(m.entries) {
		m.cursor = max(len(m.entries)-1, 0)
	}
	if _, ok := m.entries.Find(m.revealed); !ok {
		m.revealed = ""
	}
	return m
}

func (m listModel) selected() (credential.Credential, bool) {
	if m.cursor < 0 || m.cursor >= len(m.entries) {
		return credential.Credential{}, false
	}
	return m.entries[m.cursor], true
}

func (m listModel) up() listModel {
	if m.cursor > 0 {
		m.cursor--
	}
	return m
}

func (m listModel) down() listModel {
	if len(m.entries) > 0 && m.cursor < len(m.entries)-1 {
		m.cursor++
	}
	return m
}

func (m listModel) toggleReveal() listModel {
	c, ok := m.selected()
	if !ok {
		return m
	}
	if m.revealed == c.ID {
		m.revealed = ""
	} else {
		m.revealed = c.ID
	}
	return m
}

func (m listModel) View(searchFocused, listFocused bool) string {
	var b strings.Builder

	cursor := "  "
	if searchFocused {
		cursor = "> "
	}
	fmt.Fprintf(&b, "  %s%s %s\n\n", cursor, zstyle.MutedText.Render(fmt.Sprintf("%-10s", "search")), m.search.View())

	title := fmt.Sprintf("saved passwords (%d)", len(m.entries))
	if m.query() != "" {
		title = fmt.Sprintf("saved passwords (%d of %d)", len(m.entries), m.total)
	}
	fmt.Fprintf(&b, "  %s\n", zstyle.Subtitle.Render(title))

	if !m.loaded {
		b.WriteString("    " + zstyle.MutedText.Render("loading...") + "\n")
		return b.String()
	}

	if len(m.entries) == 0 {
		b.WriteString("    " + zstyle.MutedText.Render("no saved passwords") + "\n")
		return b.String()
	}

	for i, c := range m.entries {
		pw := strings.Repeat("•", min(len(c.Password), 12))
		if c.ID == m.revealed {
			pw = c.Password
		}

		line := fmt.Sprintf("%-24s %-28s %s", truncate(c.Site, 22), truncate(c.Username, 26), pw)
		if c.ID == m.copied {
			line += "  " + zstyle.StatusOK.Render("copied!")
		}

		if listFocused && i == m.cursor {
			b.WriteString(zstyle.Highlight.Render("  > "+line) + "\n")
		} else {
			b.WriteString("    " + line + "\n")
		}
	}

	return b.String()
}

// truncate shortens s to n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
