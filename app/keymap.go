package app

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all global keybindings.
type KeyMap struct {
	Toggle        key.Binding
	CycleMode     key.Binding
	ModeTun       key.Binding
	ModeSystem    key.Binding
	ModeCombine   key.Binding
	Focus         key.Binding
	Settings      key.Binding
	RefreshIP     key.Binding
	Update        key.Binding
	ReloadProxies key.Binding
	Dismiss       key.Binding
	Compact       key.Binding
	SignIn        key.Binding
	ByKey         key.Binding
	Quit          key.Binding
	Escape        key.Binding
}

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Toggle: key.NewBinding(
			key.WithKeys("enter", " "),
			key.WithHelp("enter", "connect/disconnect"),
		),
		CycleMode: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "next mode"),
		),
		ModeTun: key.NewBinding(
			key.WithKeys("1"),
			key.WithHelp("1", "VPN service"),
		),
		ModeSystem: key.NewBinding(
			key.WithKeys("2"),
			key.WithHelp("2", "proxy"),
		),
		ModeCombine: key.NewBinding(
			key.WithKeys("3"),
			key.WithHelp("3", "combined"),
		),
		Focus: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "switch focus"),
		),
		Settings: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "settings"),
		),
		RefreshIP: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh IP"),
		),
		Update: key.NewBinding(
			key.WithKeys("u"),
			key.WithHelp("u", "update subscription"),
		),
		ReloadProxies: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "reload proxies"),
		),
		Dismiss: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "dismiss message"),
		),
		Compact: key.NewBinding(
			key.WithKeys("ctrl+t"),
			key.WithHelp("ctrl+t", "compact layout"),
		),
		SignIn: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "sign in"),
		),
		ByKey: key.NewBinding(
			key.WithKeys("k"),
			key.WithHelp("k", "use a key"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
	}
}
