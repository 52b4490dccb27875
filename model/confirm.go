package model

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/spy-duck/duck-tui/style"
)

// ConfirmDecision is emitted when the user answers a confirmation.
type ConfirmDecision struct {
	ID string
	OK bool
}

var confirmOptions = []string{"Confirm", "Cancel"}

// ConfirmModel asks a yes/no question. It is inactive until Ask is called.
type ConfirmModel struct {
	id       string
	title    string
	body     string
	active   bool
	selected int // 0=Confirm, 1=Cancel
	width    int
	height   int
}

func NewConfirm() ConfirmModel {
	return ConfirmModel{}
}

// Ask activates the dialog. The answer is reported with id.
func (m *ConfirmModel) Ask(id, title, body string) {
	m.id = id
	m.title = title
	m.body = body
	m.selected = 1
	m.active = true
}

// Clear deactivates the dialog.
func (m *ConfirmModel) Clear() {
	m.active = false
	m.selected = 1
}

// IsActive reports whether the dialog is visible.
func (m ConfirmModel) IsActive() bool { return m.active }

func (m *ConfirmModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// Update handles keyboard input when the dialog is active.
func (m ConfirmModel) Update(message tea.Msg) (ConfirmModel, tea.Cmd) {
	if !m.active {
		return m, nil
	}
	keyMsg, ok := message.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch keyMsg.Type {
	case tea.KeyLeft, tea.KeyRight, tea.KeyTab:
		m.selected = 1 - m.selected
	case tea.KeyEnter:
		d := ConfirmDecision{ID: m.id, OK: m.selected == 0}
		m.Clear()
		return m, func() tea.Msg { return d }
	case tea.KeyEsc:
		d := ConfirmDecision{ID: m.id}
		m.Clear()
		return m, func() tea.Msg { return d }
	case tea.KeyRunes:
		switch strings.ToLower(keyMsg.String()) {
		case "y":
			m.Clear()
			return m, func() tea.Msg { return ConfirmDecision{ID: m.id, OK: true} }
		case "n":
			m.Clear()
			return m, func() tea.Msg { return ConfirmDecision{ID: m.id} }
		}
	}
	return m, nil
}

// View renders the dialog. Returns an empty string when inactive.
func (m ConfirmModel) View() string {
	if !m.active {
		return ""
	}
	var parts []string
	for i, opt := range confirmOptions {
		if i == m.selected {
			parts = append(parts, style.Cursor.Render("> "+opt))
		} else {
			parts = append(parts, style.Unselected.Render("○ "+opt))
		}
	}
	body := style.Title.Render(m.title) + "\n\n" + m.body + "\n\n" + strings.Join(parts, "  ")
	box := style.Modal.Render(body)
	if m.width == 0 || m.height == 0 {
		return box
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}
