package model

import (
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/spy-duck/duck-tui/msg"
	"github.com/spy-duck/duck-tui/style"
	"github.com/spy-duck/duck-tui/traffic"
)

const expireFormat = "02.01.2006 15:04"

// HeaderModel renders the subscription line:
//
//	Duck VPN · Premium · expires 01.02.2027 12:00 · 1.2Gb/100Gb
type HeaderModel struct {
	name     string
	expire   int64
	used     int64
	total    int64
	updating bool
	width    int
	now      func() time.Time
}

func NewHeader() HeaderModel {
	return HeaderModel{now: time.Now}
}

// SetProfile populates the header from the active profile.
func (m *HeaderModel) SetProfile(p msg.ProfilesLoaded) {
	if p.Err != nil {
		return
	}
	m.name = p.Name
	m.expire = p.Expire
	m.used = p.Used
	m.total = p.Total
}

// SetUpdating marks a subscription refresh as running.
func (m *HeaderModel) SetUpdating(v bool) { m.updating = v }

// Updating reports whether a refresh is running.
func (m HeaderModel) Updating() bool { return m.updating }

func (m *HeaderModel) SetWidth(w int) { m.width = w }

// Expired reports whether the subscription has an expiry in the past.
func (m HeaderModel) Expired() bool {
	return m.expire > 0 && time.Unix(m.expire, 0).Before(m.now())
}

// View renders the header line.
func (m HeaderModel) View() string {
	sep := style.Faint.Render(" · ")
	line := style.Title.Render("Duck VPN")
	if m.name != "" {
		line += sep + style.Bold.Render(m.name)
	}

	expires := "-"
	if m.expire > 0 {
		expires = time.Unix(m.expire, 0).Format(expireFormat)
	}
	exp := style.Detail.Render("expires " + expires)
	if m.Expired() {
		exp = lipgloss.NewStyle().Foreground(style.Error).Render("expired " + expires)
	}
	line += sep + exp

	if m.total > 0 {
		line += sep + style.Detail.Render(traffic.Format(m.used, 1)+"/"+traffic.Format(m.total, 1))
	}
	if m.updating {
		line += sep + style.SpinnerStyle.Render("updating…")
	}
	return line
}
