package model

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/spy-duck/duck-tui/style"
)

// AuthKeySubmit carries the key typed on the by-key screen.
type AuthKeySubmit struct {
	Key string
}

// AuthModel is the sign-in screen. It shows the bot link while the bot
// confirms the session, or a key field in by-key mode.
type AuthModel struct {
	sp      spinner.Model
	key     textinput.Model
	byKey   bool
	waiting bool
	link    string
	botURL  string
	errMsg  string
	width   int
	height  int
}

// NewAuth returns the sign-in screen for the bot at botURL.
func NewAuth(botURL string) AuthModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = style.SpinnerStyle

	ti := textinput.New()
	ti.Placeholder = "Paste your key"
	ti.CharLimit = 512
	ti.Width = 40

	return AuthModel{sp: sp, key: ti, botURL: botURL}
}

func (m *AuthModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetWaiting shows the link of a running sign-in.
func (m *AuthModel) SetWaiting(link string) {
	m.waiting = true
	m.link = link
	m.errMsg = ""
}

// SetError stops waiting and shows err.
func (m *AuthModel) SetError(err error) {
	m.waiting = false
	if err != nil {
		m.errMsg = err.Error()
	}
}

// Waiting reports whether a sign-in is running.
func (m AuthModel) Waiting() bool { return m.waiting }

// ByKey reports whether the key field is shown.
func (m AuthModel) ByKey() bool { return m.byKey }

// ShowKey switches to the key field.
func (m *AuthModel) ShowKey() tea.Cmd {
	m.byKey = true
	m.errMsg = ""
	m.key.SetValue("")
	return m.key.Focus()
}

// HideKey goes back to the bot link.
func (m *AuthModel) HideKey() {
	m.byKey = false
	m.key.Blur()
}

func (m AuthModel) Init() tea.Cmd {
	return m.sp.Tick
}

// Update advances the spinner and, in by-key mode, edits the key.
func (m AuthModel) Update(message tea.Msg) (AuthModel, tea.Cmd) {
	switch v := message.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.sp, cmd = m.sp.Update(v)
		return m, cmd
	case tea.KeyMsg:
		if !m.byKey || m.waiting {
			return m, nil
		}
		if v.Type == tea.KeyEnter {
			k := strings.TrimSpace(m.key.Value())
			if k == "" {
				return m, nil
			}
			return m, func() tea.Msg { return AuthKeySubmit{Key: k} }
		}
		var cmd tea.Cmd
		m.key, cmd = m.key.Update(v)
		m.errMsg = ""
		return m, cmd
	}
	return m, nil
}

// View renders the sign-in screen.
func (m AuthModel) View() string {
	var sb strings.Builder
	sb.WriteString(style.Title.Render("🦆 Duck VPN"))
	sb.WriteString("\n\n")

	if m.byKey {
		sb.WriteString("Sign in with a key from the bot:\n\n")
		sb.WriteString(m.key.View())
		sb.WriteString("\n\n")
		if m.waiting {
			sb.WriteString(m.sp.View() + " Signing in…\n\n")
		}
	} else {
		sb.WriteString("Open the bot in Telegram to sign in:\n")
		link := m.link
		if link == "" {
			link = m.botURL
		}
		sb.WriteString(style.Detail.Render(link))
		sb.WriteString("\n\n")
		if m.waiting {
			sb.WriteString(m.sp.View() + " Waiting for confirmation…\n\n")
		}
	}
	if m.errMsg != "" {
		sb.WriteString(style.ErrorText.Render(m.errMsg) + "\n\n")
	}

	if m.byKey {
		sb.WriteString(style.Hint.Render("enter sign in · esc back"))
	} else {
		sb.WriteString(style.Hint.Render("enter sign in · k use a key · q quit"))
	}

	box := style.Panel.Render(sb.String())
	if m.width == 0 || m.height == 0 {
		return box
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}
