package style

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Colors. Overwritten by SetTheme.
var (
	Primary     lipgloss.TerminalColor = lipgloss.Color("#FFC83D")
	Secondary   lipgloss.TerminalColor = lipgloss.Color("#06B6D4")
	Success     lipgloss.TerminalColor = lipgloss.Color("#22C55E")
	Warning     lipgloss.TerminalColor = lipgloss.Color("#F59E0B")
	Error       lipgloss.TerminalColor = lipgloss.Color("#EF4444")
	Muted       lipgloss.TerminalColor = lipgloss.Color("#6B7280")
	Dim         lipgloss.TerminalColor = lipgloss.Color("#374151")
	Border      lipgloss.TerminalColor = lipgloss.Color("#4B5563")
	TrafficUp   lipgloss.TerminalColor = lipgloss.Color("#FF9500")
	TrafficDown lipgloss.TerminalColor = lipgloss.Color("#30B0C7")
)

// Styles. Rebuilt by SetTheme.
var (
	Bold      lipgloss.Style
	Faint     lipgloss.Style
	ErrorText lipgloss.Style
	Hint      lipgloss.Style

	Title  lipgloss.Style
	Detail lipgloss.Style

	SpinnerStyle lipgloss.Style

	// Connection button
	ButtonOn   lipgloss.Style
	ButtonOff  lipgloss.Style
	ButtonBusy lipgloss.Style

	// Lists and radios
	Cursor     lipgloss.Style
	Selected   lipgloss.Style
	Unselected lipgloss.Style
	GroupLabel lipgloss.Style

	Panel     lipgloss.Style
	Modal     lipgloss.Style
	StatusBar lipgloss.Style

	UpRate   lipgloss.Style
	DownRate lipgloss.Style
)

func init() {
	rebuildStyles()
}

func rebuildStyles() {
	Bold = lipgloss.NewStyle().Bold(true)
	Faint = lipgloss.NewStyle().Foreground(Muted)
	ErrorText = lipgloss.NewStyle().Foreground(Error).Bold(true)
	Hint = lipgloss.NewStyle().Foreground(Dim)

	Title = lipgloss.NewStyle().Foreground(Primary).Bold(true)
	Detail = lipgloss.NewStyle().Foreground(Muted)

	SpinnerStyle = lipgloss.NewStyle().Foreground(Primary)

	button := lipgloss.NewStyle().Padding(0, 3).Bold(true).Border(lipgloss.RoundedBorder())
	ButtonOn = button.BorderForeground(Success).Foreground(Success)
	ButtonOff = button.BorderForeground(Border).Foreground(Muted)
	ButtonBusy = button.BorderForeground(Warning).Foreground(Warning)

	Cursor = lipgloss.NewStyle().Foreground(Primary).Bold(true)
	Selected = lipgloss.NewStyle().Foreground(Success)
	Unselected = lipgloss.NewStyle().Foreground(Muted)
	GroupLabel = lipgloss.NewStyle().Foreground(Secondary).Bold(true)

	Panel = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Border).
		Padding(0, 1)
	Modal = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Primary).
		Padding(1, 2)
	StatusBar = lipgloss.NewStyle().Foreground(Muted).PaddingLeft(1)

	UpRate = lipgloss.NewStyle().Foreground(TrafficUp)
	DownRate = lipgloss.NewStyle().Foreground(TrafficDown)
}

// PanelWidth returns a panel style constrained to width, or the plain panel
// when width is unknown.
func PanelWidth(width int) lipgloss.Style {
	if width <= 2 {
		return Panel
	}
	return Panel.Width(width - 2)
}

// Rule renders a horizontal separator of width cells.
func Rule(width int) string {
	if width <= 0 {
		return ""
	}
	return lipgloss.NewStyle().Foreground(Dim).Render(strings.Repeat("─", width))
}
