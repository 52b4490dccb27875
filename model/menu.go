package model

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/spy-duck/duck-tui/style"
)

// MenuChoice is sent when the user activates an item.
type MenuChoice struct {
	ID string
}

// MenuDismiss is sent when the user closes the menu.
type MenuDismiss struct{}

// MenuItem is a single entry in a menu.
type MenuItem struct {
	ID          string
	Label       string
	Description string
	Value       string // e.g. "on" for a switch
	Busy        bool
}

// MenuModel is a vertical list overlay, used for the settings screen.
type MenuModel struct {
	title  string
	items  []MenuItem
	cursor int
	width  int
	height int
}

// NewMenu constructs a MenuModel.
func NewMenu(title string) MenuModel {
	return MenuModel{title: title}
}

// SetItems replaces the entries, keeping the cursor in range.
func (m *MenuModel) SetItems(items []MenuItem) {
	m.items = items
	if m.cursor >= len(items) {
		m.cursor = max(len(items)-1, 0)
	}
}

// SetSize sets the area the menu is centered in.
func (m *MenuModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// Reset moves the cursor to the first item.
func (m *MenuModel) Reset() { m.cursor = 0 }

// Update handles keyboard events for the menu.
func (m MenuModel) Update(message tea.Msg) (MenuModel, tea.Cmd) {
	k, ok := message.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(k, key.NewBinding(key.WithKeys("esc", "q"))):
		return m, func() tea.Msg { return MenuDismiss{} }
	case key.Matches(k, key.NewBinding(key.WithKeys("up", "k"))):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(k, key.NewBinding(key.WithKeys("down", "j"))):
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}
	case key.Matches(k, key.NewBinding(key.WithKeys("enter", " "))):
		if m.cursor < len(m.items) && !m.items[m.cursor].Busy {
			id := m.items[m.cursor].ID
			return m, func() tea.Msg { return MenuChoice{ID: id} }
		}
	}
	return m, nil
}

// View renders the menu as a centered box.
func (m MenuModel) View() string {
	boxWidth := min(max(m.width/2, 50), max(m.width-4, 20))

	var sb strings.Builder
	sb.WriteString(style.Title.Render(m.title))
	sb.WriteByte('\n')
	sb.WriteString(style.Rule(boxWidth - 6))
	sb.WriteByte('\n')

	for i, item := range m.items {
		isCursor := i == m.cursor
		var line string
		if isCursor {
			line = style.Cursor.Render("> ") + style.Bold.Render(item.Label)
		} else {
			line = "  " + item.Label
		}
		switch {
		case item.Busy:
			line += style.SpinnerStyle.Render("  …")
		case item.Value != "":
			v := style.Unselected
			if item.Value == "on" {
				v = style.Selected
			}
			line += v.Render("  [" + item.Value + "]")
		}
		if isCursor && item.Description != "" {
			line += "\n" + style.Hint.Render("    "+item.Description)
		}
		sb.WriteString(line)
		if i < len(m.items)-1 {
			sb.WriteByte('\n')
		}
	}
	sb.WriteString("\n\n" + style.Hint.Render("↑↓ navigate · enter select · esc close"))

	box := style.Modal.Width(boxWidth).Render(sb.String())
	if m.width == 0 || m.height == 0 {
		return box
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}
