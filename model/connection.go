package model

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/spy-duck/duck-tui/style"
)

// ConnectionView mirrors connection.Snapshot so this package stays free of
// the controller.
type ConnectionView struct {
	State      string // "connected", "connecting", "disconnected"
	Mode       string
	Busy       bool
	Installing bool
}

// ModeOption is one entry of the mode radio.
type ModeOption struct {
	Value string
	Label string
}

// Modes lists the mode radio in display order.
var Modes = []ModeOption{
	{"tun", "VPN service"},
	{"system", "Proxy"},
	{"combine", "Combined"},
}

var modeInfo = map[string]string{
	"system":  "Routes applications that honour the system proxy settings.",
	"tun":     "Captures all traffic through a virtual network adapter.",
	"combine": "System proxy and virtual adapter together.",
}

// ConnectionModel renders the power button, the mode radio and the service
// installation notice.
type ConnectionModel struct {
	sp   spinner.Model
	view ConnectionView
}

// NewConnection constructs a ConnectionModel with a Dot spinner.
func NewConnection() ConnectionModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = style.SpinnerStyle
	return ConnectionModel{sp: sp}
}

// Set replaces the rendered state.
func (m *ConnectionModel) Set(v ConnectionView) { m.view = v }

// State returns the last view set.
func (m ConnectionModel) State() ConnectionView { return m.view }

// Spinning reports whether the spinner needs ticks.
func (m ConnectionModel) Spinning() bool {
	return m.view.Busy || m.view.Installing || m.view.State == "connecting"
}

// Init starts the spinner.
func (m ConnectionModel) Init() tea.Cmd {
	return m.sp.Tick
}

// Update advances the spinner.
func (m ConnectionModel) Update(message tea.Msg) (ConnectionModel, tea.Cmd) {
	if _, ok := message.(spinner.TickMsg); !ok {
		return m, nil
	}
	var cmd tea.Cmd
	m.sp, cmd = m.sp.Update(message)
	return m, cmd
}

// SpinnerView renders the spinner frame alone.
func (m ConnectionModel) SpinnerView() string { return m.sp.View() }

// View renders the widget.
func (m ConnectionModel) View() string {
	var sb strings.Builder

	switch {
	case m.Spinning():
		sb.WriteString(style.ButtonBusy.Render(m.sp.View() + " Connecting"))
	case m.view.State == "connected":
		sb.WriteString(style.ButtonOn.Render("⏻  Connected"))
	default:
		sb.WriteString(style.ButtonOff.Render("⏻  Disconnected"))
	}
	sb.WriteByte('\n')

	if m.view.Installing {
		sb.WriteString(style.SpinnerStyle.Render(m.sp.View()))
		sb.WriteString(style.Detail.Render(" Installing and configuring the system service. This may take a while."))
		sb.WriteByte('\n')
	}

	sb.WriteString(style.Detail.Render("Mode  "))
	disabled := m.Spinning()
	for i, opt := range Modes {
		if i > 0 {
			sb.WriteString("   ")
		}
		mark := "○"
		st := style.Unselected
		if opt.Value == m.view.Mode {
			mark = "●"
			st = style.Selected
		}
		if disabled {
			st = style.Hint
		}
		sb.WriteString(st.Render(mark + " " + opt.Label))
	}
	if info := modeInfo[m.view.Mode]; info != "" {
		sb.WriteByte('\n')
		sb.WriteString(style.Hint.Render(info))
	}
	return sb.String()
}
