package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/spy-duck/duck-tui/msg"
	"github.com/spy-duck/duck-tui/style"
)

const (
	maxToasts     = 3
	toastTTL      = 4 * time.Second
	errorToastTTL = 8 * time.Second
)

type notice struct {
	msg.Notice
	repeat  int
	expires time.Time
}

// ToastsModel stacks notices in the bottom-right corner until they expire.
// A notice equal to one already shown refreshes it instead of stacking.
type ToastsModel struct {
	shown []notice
	now   func() time.Time
}

func NewToasts() ToastsModel {
	return ToastsModel{now: time.Now}
}

func ttlFor(l msg.Level) time.Duration {
	if l == msg.LevelError {
		return errorToastTTL
	}
	return toastTTL
}

// Add shows n, dropping the oldest notice past maxToasts.
func (m *ToastsModel) Add(n msg.Notice) {
	exp := m.now().Add(ttlFor(n.Level))
	for i := range m.shown {
		if m.shown[i].Notice == n {
			m.shown[i].repeat++
			m.shown[i].expires = exp
			return
		}
	}
	m.shown = append(m.shown, notice{Notice: n, expires: exp})
	if over := len(m.shown) - maxToasts; over > 0 {
		m.shown = m.shown[over:]
	}
}

// Tick drops expired notices.
func (m *ToastsModel) Tick() {
	now := m.now()
	kept := m.shown[:0]
	for _, n := range m.shown {
		if now.Before(n.expires) {
			kept = append(kept, n)
		}
	}
	m.shown = kept
}

func (m ToastsModel) HasToasts() bool { return len(m.shown) > 0 }

func (m ToastsModel) View(width int) string {
	lines := make([]string, 0, len(m.shown))
	for _, n := range m.shown {
		icon, color := levelIcon(n.Level)
		text := icon + " " + n.Text
		if n.repeat > 0 {
			text += fmt.Sprintf(" (×%d)", n.repeat+1)
		}
		if width > 4 {
			text = truncate(text, width-2)
		}
		line := lipgloss.NewStyle().Foreground(color).Padding(0, 1).Render(text)
		lines = append(lines, strings.Repeat(" ", max(width-lipgloss.Width(line), 0))+line)
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, w int) string {
	r := []rune(s)
	if len(r) <= w {
		return s
	}
	return string(r[:w-1]) + "…"
}

func levelIcon(l msg.Level) (string, lipgloss.TerminalColor) {
	switch l {
	case msg.LevelSuccess:
		return "✓", style.Success
	case msg.LevelWarning:
		return "⚠", style.Warning
	case msg.LevelError:
		return "✘", style.Error
	}
	return "ℹ", style.Secondary
}
