package model

import (
	"errors"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/spy-duck/duck-tui/settings"
	"github.com/spy-duck/duck-tui/style"
)

// PortsSubmit carries the edited form.
type PortsSubmit struct {
	Ports settings.Ports
}

// PortsCancel is sent when the form is closed without saving.
type PortsCancel struct{}

type portField struct {
	name     string
	label    string
	toggle   bool // mixed port can't be switched off
	enabled  bool
	input    textinput.Model
	errorMsg string
}

// PortsModel is the port settings form.
//
//	> Mixed port      7897
//	  Socks port  [x] 7898
//	  HTTP port   [ ] 7899
type PortsModel struct {
	fields []portField
	cursor int
	saving bool
	width  int
	height int
}

// NewPorts returns a form pre-filled with p.
func NewPorts(p settings.Ports) PortsModel {
	mk := func(name, label string, toggle, on bool, v int) portField {
		ti := textinput.New()
		ti.CharLimit = 5
		ti.Width = 6
		ti.Prompt = ""
		ti.SetValue(strconv.Itoa(v))
		return portField{name: name, label: label, toggle: toggle, enabled: on, input: ti}
	}
	m := PortsModel{fields: []portField{
		mk(settings.FieldMixed, "Mixed port", false, true, p.Mixed),
		mk(settings.FieldSocks, "Socks port", true, p.SocksEnabled, p.Socks),
		mk(settings.FieldHTTP, "HTTP port", true, p.HTTPEnabled, p.HTTP),
		mk(settings.FieldRedir, "Redir port", true, p.RedirEnabled, p.Redir),
		mk(settings.FieldTProxy, "TProxy port", true, p.TProxyEnabled, p.TProxy),
	}}
	m.fields[0].input.Focus()
	return m
}

func (m *PortsModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetSaving disables input while a save is running.
func (m *PortsModel) SetSaving(v bool) { m.saving = v }

// SetErrors shows validation messages next to their fields. A non-validation
// error clears them.
func (m *PortsModel) SetErrors(err error) {
	var verrs settings.ValidationErrors
	errors.As(err, &verrs)
	for i := range m.fields {
		m.fields[i].errorMsg = verrs[m.fields[i].name]
	}
}

// Ports builds the form value. Fields that are not numbers are reported
// as validation errors.
func (m PortsModel) Ports() (settings.Ports, error) {
	verrs := settings.ValidationErrors{}
	vals := make([]int, len(m.fields))
	for i, f := range m.fields {
		n, err := strconv.Atoi(strings.TrimSpace(f.input.Value()))
		if err != nil {
			verrs[f.name] = "Port must be a number"
			continue
		}
		vals[i] = n
	}
	p := settings.Ports{
		Mixed:         vals[0],
		Socks:         vals[1],
		SocksEnabled:  m.fields[1].enabled,
		HTTP:          vals[2],
		HTTPEnabled:   m.fields[2].enabled,
		Redir:         vals[3],
		RedirEnabled:  m.fields[3].enabled,
		TProxy:        vals[4],
		TProxyEnabled: m.fields[4].enabled,
	}
	if len(verrs) > 0 {
		return p, verrs
	}
	return p, nil
}

func (m *PortsModel) focus(i int) {
	m.fields[m.cursor].input.Blur()
	m.cursor = i
	m.fields[m.cursor].input.Focus()
}

// Update handles keyboard input for the form.
func (m PortsModel) Update(message tea.Msg) (PortsModel, tea.Cmd) {
	k, ok := message.(tea.KeyMsg)
	if !ok || m.saving {
		return m, nil
	}
	switch k.String() {
	case "esc":
		return m, func() tea.Msg { return PortsCancel{} }
	case "up", "shift+tab":
		if m.cursor > 0 {
			m.focus(m.cursor - 1)
		}
		return m, nil
	case "down", "tab":
		if m.cursor < len(m.fields)-1 {
			m.focus(m.cursor + 1)
		}
		return m, nil
	case " ":
		if f := &m.fields[m.cursor]; f.toggle {
			f.enabled = !f.enabled
		}
		return m, nil
	case "enter":
		p, err := m.Ports()
		if err != nil {
			m.SetErrors(err)
			return m, nil
		}
		return m, func() tea.Msg { return PortsSubmit{Ports: p} }
	}
	if k.Type == tea.KeyRunes {
		for _, r := range k.Runes {
			if r < '0' || r > '9' {
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.fields[m.cursor].input, cmd = m.fields[m.cursor].input.Update(k)
	m.fields[m.cursor].errorMsg = ""
	return m, cmd
}

// View renders the form as a centered box.
func (m PortsModel) View() string {
	var sb strings.Builder
	sb.WriteString(style.Title.Render("Port settings"))
	sb.WriteString("\n\n")
	for i, f := range m.fields {
		prefix := "  "
		label := f.label
		if i == m.cursor {
			prefix = style.Cursor.Render("> ")
			label = style.Bold.Render(label)
		}
		box := "    "
		if f.toggle {
			box = style.Unselected.Render("[ ] ")
			if f.enabled {
				box = style.Selected.Render("[x] ")
			}
		}
		line := prefix + lipgloss.NewStyle().Width(14).Render(label) + box + f.input.View()
		if f.errorMsg != "" {
			line += "  " + style.ErrorText.Render(f.errorMsg)
		}
		sb.WriteString(line + "\n")
	}
	sb.WriteString("\n")
	if m.saving {
		sb.WriteString(style.SpinnerStyle.Render("Saving…"))
	} else {
		sb.WriteString(style.Hint.Render("↑↓ field · space enable · enter save · esc cancel"))
	}
	box := style.Modal.Render(sb.String())
	if m.width == 0 || m.height == 0 {
		return box
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}
