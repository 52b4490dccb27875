package model

import (
	"github.com/spy-duck/duck-tui/markdown"
	"github.com/spy-duck/duck-tui/msg"
	"github.com/spy-duck/duck-tui/style"
)

// MessageModel shows the provider's announcement until it is dismissed.
type MessageModel struct {
	msg    msg.ServerMessage
	hidden string
	width  int
}

// NewMessage returns a MessageModel that never shows hiddenID.
func NewMessage(hiddenID string) MessageModel {
	return MessageModel{hidden: hiddenID}
}

// Set shows m unless it has no id or was dismissed before.
func (m *MessageModel) Set(s msg.ServerMessage) {
	if s.Err != nil || s.ID == "" || s.ID == m.hidden {
		return
	}
	m.msg = s
}

// Dismiss hides the current message and returns its id.
func (m *MessageModel) Dismiss() string {
	id := m.msg.ID
	m.hidden = id
	m.msg = msg.ServerMessage{}
	return id
}

// Visible reports whether a message is shown.
func (m MessageModel) Visible() bool { return m.msg.ID != "" }

func (m *MessageModel) SetWidth(w int) { m.width = w }

// View renders the message as markdown in a panel.
func (m MessageModel) View() string {
	if !m.Visible() {
		return ""
	}
	inner := max(m.width-6, 20)
	body := ""
	if m.msg.Title != "" {
		body = "## " + m.msg.Title + "\n\n"
	}
	body += m.msg.Text
	out := markdown.RenderWidth(body, inner) + "\n" + style.Hint.Render("x to dismiss")
	return style.PanelWidth(m.width).Render(out)
}
