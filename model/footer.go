package model

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/spy-duck/duck-tui/client"
	"github.com/spy-duck/duck-tui/msg"
	"github.com/spy-duck/duck-tui/style"
	"github.com/spy-duck/duck-tui/traffic"
)

const graphSamples = 60

// FooterModel renders the bottom line: current rates, the traffic sparkline
// while connected, and the version.
//
//	↑ 1.5 Kb/s  ↓ 12 Mb/s  ▁▂▅▇█▃   v0.4.0
type FooterModel struct {
	ring      *traffic.Ring
	connected bool
	version   string
	width     int
}

// NewFooter returns a FooterModel showing version.
func NewFooter(version string) FooterModel {
	return FooterModel{ring: traffic.NewRing(graphSamples), version: version}
}

// Push records a traffic sample.
func (m *FooterModel) Push(s msg.TrafficSample) {
	m.ring.Push(client.TrafficSample{Up: s.Up, Down: s.Down})
}

// SetConnected shows or hides the graph. Disconnecting clears it.
func (m *FooterModel) SetConnected(v bool) {
	if m.connected && !v {
		m.ring.Reset()
	}
	m.connected = v
}

func (m *FooterModel) SetWidth(w int) { m.width = w }

// View renders the footer line.
func (m FooterModel) View() string {
	last, _ := m.ring.Last()
	upN, upU := traffic.Split(last.Up, 1)
	downN, downU := traffic.Split(last.Down, 1)

	line := style.UpRate.Render("↑ ") + upN + style.Faint.Render(" "+upU+"/s") +
		"  " + style.DownRate.Render("↓ ") + downN + style.Faint.Render(" "+downU+"/s")

	if m.connected {
		width := min(graphSamples, max(m.width/3, 10))
		samples := m.ring.Samples()
		peak := m.ring.Max()
		down := traffic.Sparkline(traffic.Series(samples, width, true), peak)
		line += "  " + style.DownRate.Render(down)
	}

	version := style.Hint.Render("v" + m.version)
	gap := m.width - lipgloss.Width(line) - lipgloss.Width(version) - 1
	if gap < 2 {
		gap = 2
	}
	return style.StatusBar.Render(line + lipgloss.NewStyle().Width(gap).Render("") + version)
}
