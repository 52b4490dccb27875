package model

import (
	"strings"

	"github.com/spy-duck/duck-tui/msg"
	"github.com/spy-duck/duck-tui/style"
)

// IPInfoModel shows the public address seen from outside.
type IPInfoModel struct {
	info    msg.IPInfo
	pending bool
}

func NewIPInfo() IPInfoModel { return IPInfoModel{} }

// SetPending marks a lookup as running.
func (m *IPInfoModel) SetPending(v bool) { m.pending = v }

// Set stores a lookup result. Errors keep the previous address.
func (m *IPInfoModel) Set(info msg.IPInfo) {
	m.pending = false
	if info.Err != nil {
		return
	}
	m.info = info
}

// View renders the flag, address and country.
func (m IPInfoModel) View() string {
	ip := m.info.IP
	if ip == "" {
		ip = "-"
	}
	line := Flag(m.info.CountryCode) + " " + style.Bold.Render(ip)
	if m.info.Country != "" {
		line += style.Detail.Render("  " + m.info.Country)
	}
	if m.pending {
		line += style.Hint.Render("  checking…")
	}
	return line
}

// Flag turns a two-letter country code into its regional-indicator emoji.
func Flag(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 2 || code[0] < 'A' || code[0] > 'Z' || code[1] < 'A' || code[1] > 'Z' {
		return "🌐"
	}
	const base = 0x1F1E6
	return string([]rune{rune(base + int(code[0]-'A')), rune(base + int(code[1]-'A'))})
}
