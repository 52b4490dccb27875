package model

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/spy-duck/duck-tui/style"
)

// ProxyItem is a single proxy in a group.
type ProxyItem struct {
	Name string
	Type string
}

// ProxyGroupView is a visible proxy group.
type ProxyGroupView struct {
	Name    string
	Now     string
	Proxies []ProxyItem
}

// ProxyChoice is emitted when the user picks a proxy.
type ProxyChoice struct {
	Group string
	Proxy string
}

type row struct {
	group int
	proxy int
}

// ProfilesModel renders the proxy list with arrow-key navigation.
type ProfilesModel struct {
	groups      []ProxyGroupView
	rows        []row
	cursor      int
	offset      int
	pageSize    int
	focused     bool
	initialized bool
	selGroup    string
	selProxy    string
	width       int
}

// NewProfiles returns an empty ProfilesModel.
func NewProfiles() ProfilesModel {
	return ProfilesModel{pageSize: 10}
}

// SetGroups replaces the list, keeping the cursor on the same proxy when it
// still exists.
func (m *ProfilesModel) SetGroups(groups []ProxyGroupView) {
	var cur ProxyChoice
	if c, ok := m.current(); ok {
		cur = c
	}
	m.groups = groups
	m.rows = nil
	for gi, g := range groups {
		for pi := range g.Proxies {
			m.rows = append(m.rows, row{gi, pi})
		}
	}
	m.cursor = 0
	for i, r := range m.rows {
		g := m.groups[r.group]
		if g.Name == cur.Group && g.Proxies[r.proxy].Name == cur.Proxy {
			m.cursor = i
			break
		}
	}
	m.clampOffset()
}

// SetSelected marks the active proxy.
func (m *ProfilesModel) SetSelected(group, proxy string) {
	m.selGroup = group
	m.selProxy = proxy
}

// SetInitialized switches the empty state from the loader to "no proxies".
func (m *ProfilesModel) SetInitialized(v bool) { m.initialized = v }

// SetFocused gives the list keyboard focus.
func (m *ProfilesModel) SetFocused(v bool) { m.focused = v }

// Focused reports whether the list has keyboard focus.
func (m ProfilesModel) Focused() bool { return m.focused }

// SetWidth constrains the list to the terminal width.
func (m *ProfilesModel) SetWidth(w int) { m.width = w }

// SetPageSize sets how many proxies fit on screen.
func (m *ProfilesModel) SetPageSize(n int) {
	if n < 3 {
		n = 3
	}
	m.pageSize = n
	m.clampOffset()
}

// Empty reports whether there is nothing to pick.
func (m ProfilesModel) Empty() bool { return len(m.rows) == 0 }

func (m ProfilesModel) current() (ProxyChoice, bool) {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return ProxyChoice{}, false
	}
	r := m.rows[m.cursor]
	g := m.groups[r.group]
	return ProxyChoice{Group: g.Name, Proxy: g.Proxies[r.proxy].Name}, true
}

func (m *ProfilesModel) clampOffset() {
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+m.pageSize {
		m.offset = m.cursor - m.pageSize + 1
	}
	if m.offset < 0 {
		m.offset = 0
	}
}

// Init satisfies tea.Model.
func (m ProfilesModel) Init() tea.Cmd {
	return nil
}

// Update handles keyboard input when the list has focus.
func (m ProfilesModel) Update(message tea.Msg) (ProfilesModel, tea.Cmd) {
	if !m.focused || len(m.rows) == 0 {
		return m, nil
	}
	keyMsg, ok := message.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch keyMsg.Type {
	case tea.KeyUp:
		if m.cursor > 0 {
			m.cursor--
		} else {
			m.cursor = len(m.rows) - 1
		}
	case tea.KeyDown:
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		} else {
			m.cursor = 0
		}
	case tea.KeyEnter:
		choice, ok := m.current()
		if !ok {
			return m, nil
		}
		return m, func() tea.Msg { return choice }
	}
	m.clampOffset()
	return m, nil
}

// View renders the list panel.
func (m ProfilesModel) View() string {
	var sb strings.Builder

	if len(m.rows) == 0 {
		if !m.initialized {
			sb.WriteString(style.Title.Render("Loading connections") + "\n")
			sb.WriteString(style.Detail.Render("This may take a while..."))
		} else {
			sb.WriteString(style.Bold.Render("No connections available") + "\n")
			sb.WriteString(style.Hint.Render("press p to reload"))
		}
		return style.PanelWidth(m.width).Render(sb.String())
	}

	end := min(m.offset+m.pageSize, len(m.rows))
	if m.offset > 0 {
		sb.WriteString(style.Faint.Render("  ↑ more above") + "\n")
	}

	lastGroup := -1
	for i := m.offset; i < end; i++ {
		r := m.rows[i]
		g := m.groups[r.group]
		if r.group != lastGroup && len(m.groups) > 1 {
			sb.WriteString(style.GroupLabel.Render(g.Name) + "\n")
		}
		lastGroup = r.group
		sb.WriteString(m.renderItem(g, g.Proxies[r.proxy], i == m.cursor))
		sb.WriteByte('\n')
	}

	if end < len(m.rows) {
		sb.WriteString(style.Faint.Render("  ↓ more below") + "\n")
	}
	hint := "tab to select"
	if m.focused {
		hint = "↑↓ navigate · enter select · tab back"
	}
	sb.WriteString(style.Hint.Render(fmt.Sprintf("%d proxies · %s", len(m.rows), hint)))

	return style.PanelWidth(m.width).Render(sb.String())
}

func (m ProfilesModel) isSelected(g ProxyGroupView, p ProxyItem) bool {
	if m.selGroup == g.Name && m.selProxy != "" {
		return m.selProxy == p.Name
	}
	return g.Now == p.Name
}

func (m ProfilesModel) renderItem(g ProxyGroupView, p ProxyItem, isCursor bool) string {
	cursor := "  "
	if isCursor && m.focused {
		cursor = style.Cursor.Render("> ")
	}

	marker := style.Unselected.Render("○")
	if m.isSelected(g, p) {
		marker = style.Selected.Render("●")
	}

	name := p.Name
	if isCursor && m.focused {
		name = style.Bold.Render(name)
	}

	var badge string
	if p.Type != "" {
		badge = style.Hint.Render("  " + p.Type)
	}
	return cursor + marker + " " + name + badge
}
