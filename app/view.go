package app

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/spy-duck/duck-tui/style"
)

func (m Model) View() string {
	var body string
	switch m.screen {
	case ScreenStartup:
		body = m.renderStartup()
	case ScreenAuthorization, ScreenAuthByKey:
		body = m.auth.View()
	case ScreenHome:
		body = m.renderHome()
	case ScreenSettings:
		body = m.menu.View()
	case ScreenPorts:
		body = m.ports.View()
	case ScreenConfirm:
		body = m.confirm.View()
	}
	if m.toasts.HasToasts() {
		body += "\n" + m.toasts.View(m.width)
	}
	if m.confirmQuit {
		body += "\n" + style.Hint.Render("  Press q again to quit, or any key to cancel.")
	}
	return body
}

func (m Model) renderStartup() string {
	lines := []string{
		style.Title.Render("🦆 Duck VPN"),
		"",
		m.conn.SpinnerView() + " Connecting to the core…",
	}
	if m.startupErr != nil {
		lines = append(lines, "",
			style.ErrorText.Render(m.startupErr.Error()),
			style.Hint.Render("retrying in 5s"))
	}
	box := style.Panel.Render(strings.Join(lines, "\n"))
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

func (m Model) renderHome() string {
	sections := []string{m.header.View()}
	if !m.compact && m.message.Visible() {
		sections = append(sections, m.message.View())
	}
	sections = append(sections, m.conn.View(), "  "+m.ip.View())
	if !m.compact {
		sections = append(sections, m.profiles.View())
	}
	sections = append(sections, m.homeHints(), m.footer.View())
	return strings.Join(sections, "\n")
}

func (m Model) homeHints() string {
	hints := []string{"enter connect", "m mode", "s settings", "r refresh IP", "u update"}
	if !m.compact {
		hints = append(hints, "tab proxies")
	}
	if m.message.Visible() && !m.compact {
		hints = append(hints, "x dismiss")
	}
	hints = append(hints, "ctrl+t layout", "q quit")
	return style.Hint.Render("  " + strings.Join(hints, " · "))
}
