package model

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/spy-duck/duck-tui/msg"
	"github.com/spy-duck/duck-tui/settings"
)

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func keyType(t tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: t}
}

func run(t *testing.T, cmd tea.Cmd) tea.Msg {
	t.Helper()
	if cmd == nil {
		t.Fatal("want a command, got nil")
	}
	return cmd()
}

// ---------------------------------------------------------------------------
// IP info
// ---------------------------------------------------------------------------

func TestFlag(t *testing.T) {
	cases := []struct {
		code string
		want string
	}{
		{"DE", "🇩🇪"},
		{"nl", "🇳🇱"},
		{" us ", "🇺🇸"},
		{"", "🌐"},
		{"D1", "🌐"},
		{"DEU", "🌐"},
	}
	for _, c := range cases {
		if got := Flag(c.code); got != c.want {
			t.Errorf("Flag(%q) = %q, want %q", c.code, got, c.want)
		}
	}
}

func TestIPInfo_ErrorKeepsPreviousAddress(t *testing.T) {
	m := NewIPInfo()
	m.Set(msg.IPInfo{IP: "203.0.113.7", Country: "Germany", CountryCode: "DE"})
	m.SetPending(true)
	m.Set(msg.IPInfo{Err: errors.New("timeout")})
	out := m.View()
	if !strings.Contains(out, "203.0.113.7") {
		t.Errorf("want previous address kept, got %q", out)
	}
	if strings.Contains(out, "checking") {
		t.Errorf("want pending cleared, got %q", out)
	}
}

// ---------------------------------------------------------------------------
// Toasts
// ---------------------------------------------------------------------------

func TestToasts_CapAndExpiry(t *testing.T) {
	now := time.Unix(1000, 0)
	m := NewToasts()
	m.now = func() time.Time { return now }

	for i := 0; i < 4; i++ {
		m.Add(msg.Notice{Level: msg.LevelInfo, Text: string(rune('a' + i))})
	}
	if len(m.shown) != maxToasts {
		t.Fatalf("want %d toasts, got %d", maxToasts, len(m.shown))
	}
	if m.shown[0].Text != "b" {
		t.Errorf("want oldest dropped, first is %q", m.shown[0].Text)
	}

	now = now.Add(toastTTL - time.Millisecond)
	m.Tick()
	if !m.HasToasts() {
		t.Fatal("toasts expired too early")
	}
	now = now.Add(time.Millisecond)
	m.Tick()
	if m.HasToasts() {
		t.Error("want toasts expired after TTL")
	}
}

func TestToasts_RepeatRefreshesInsteadOfStacking(t *testing.T) {
	now := time.Unix(1000, 0)
	m := NewToasts()
	m.now = func() time.Time { return now }
	n := msg.Notice{Level: msg.LevelWarning, Text: "Core restarting"}

	m.Add(n)
	now = now.Add(3 * time.Second)
	m.Add(n)
	if len(m.shown) != 1 {
		t.Fatalf("want one toast, got %d", len(m.shown))
	}
	if out := m.View(80); !strings.Contains(out, "(×2)") {
		t.Errorf("want repeat counter, got %q", out)
	}
	now = now.Add(toastTTL - time.Millisecond)
	m.Tick()
	if !m.HasToasts() {
		t.Error("repeat must refresh expiry")
	}
}

func TestToasts_ErrorsLastLonger(t *testing.T) {
	now := time.Unix(1000, 0)
	m := NewToasts()
	m.now = func() time.Time { return now }
	m.Add(msg.Notice{Level: msg.LevelError, Text: "Connection failed"})
	now = now.Add(toastTTL + time.Second)
	m.Tick()
	if !m.HasToasts() {
		t.Error("error toast expired with the default TTL")
	}
}

func TestToasts_ViewShowsLevelIcon(t *testing.T) {
	m := NewToasts()
	m.Add(msg.Notice{Level: msg.LevelError, Text: "Connection failed"})
	out := m.View(80)
	if !strings.Contains(out, "✘") || !strings.Contains(out, "Connection failed") {
		t.Errorf("unexpected toast view %q", out)
	}
}

// ---------------------------------------------------------------------------
// Header
// ---------------------------------------------------------------------------

func TestHeader_Expired(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	m := NewHeader()
	m.now = func() time.Time { return now }

	if m.Expired() {
		t.Error("no expiry must not be expired")
	}
	m.SetProfile(msg.ProfilesLoaded{Name: "Premium", Expire: now.Add(-time.Hour).Unix()})
	if !m.Expired() {
		t.Error("want expired for a past date")
	}
	if !strings.Contains(m.View(), "expired") {
		t.Errorf("want expired label, got %q", m.View())
	}
	m.SetProfile(msg.ProfilesLoaded{Name: "Premium", Expire: now.Add(time.Hour).Unix()})
	if m.Expired() {
		t.Error("future expiry reported as expired")
	}
}

func TestHeader_ErrorKeepsProfile(t *testing.T) {
	m := NewHeader()
	m.SetProfile(msg.ProfilesLoaded{Name: "Premium"})
	m.SetProfile(msg.ProfilesLoaded{Err: errors.New("bridge down")})
	if !strings.Contains(m.View(), "Premium") {
		t.Errorf("want name kept after error, got %q", m.View())
	}
}

// ---------------------------------------------------------------------------
// Server message
// ---------------------------------------------------------------------------

func TestMessage_HiddenIDNotShown(t *testing.T) {
	m := NewMessage("m1")
	m.Set(msg.ServerMessage{ID: "m1", Text: "old news"})
	if m.Visible() {
		t.Fatal("dismissed message shown again")
	}
	m.Set(msg.ServerMessage{ID: "m2", Text: "new"})
	if !m.Visible() {
		t.Fatal("want new message visible")
	}
	if id := m.Dismiss(); id != "m2" {
		t.Errorf("Dismiss() = %q, want m2", id)
	}
	m.Set(msg.ServerMessage{ID: "m2", Text: "new"})
	if m.Visible() {
		t.Error("message shown again after dismiss")
	}
}

func TestMessage_IgnoresErrorsAndEmptyID(t *testing.T) {
	m := NewMessage("")
	m.Set(msg.ServerMessage{Err: errors.New("404")})
	m.Set(msg.ServerMessage{Text: "no id"})
	if m.Visible() {
		t.Error("want nothing visible")
	}
	if m.View() != "" {
		t.Errorf("want empty view, got %q", m.View())
	}
}

// ---------------------------------------------------------------------------
// Profiles list
// ---------------------------------------------------------------------------

func testGroups() []ProxyGroupView {
	return []ProxyGroupView{
		{Name: "Auto", Now: "de-1", Proxies: []ProxyItem{{Name: "de-1"}, {Name: "nl-1"}}},
		{Name: "Manual", Now: "us-1", Proxies: []ProxyItem{{Name: "us-1"}}},
	}
}

func TestProfiles_IgnoresKeysWithoutFocus(t *testing.T) {
	m := NewProfiles()
	m.SetGroups(testGroups())
	m, cmd := m.Update(keyType(tea.KeyEnter))
	if cmd != nil {
		t.Error("unfocused list must not emit")
	}
	_ = m
}

func TestProfiles_NavigateAndChoose(t *testing.T) {
	m := NewProfiles()
	m.SetGroups(testGroups())
	m.SetFocused(true)

	m, _ = m.Update(keyType(tea.KeyDown))
	m, _ = m.Update(keyType(tea.KeyDown))
	_, cmd := m.Update(keyType(tea.KeyEnter))
	got, ok := run(t, cmd).(ProxyChoice)
	if !ok {
		t.Fatalf("want ProxyChoice")
	}
	if got != (ProxyChoice{Group: "Manual", Proxy: "us-1"}) {
		t.Errorf("got %+v", got)
	}
}

func TestProfiles_UpWrapsToLast(t *testing.T) {
	m := NewProfiles()
	m.SetGroups(testGroups())
	m.SetFocused(true)
	m, _ = m.Update(keyType(tea.KeyUp))
	if m.cursor != 2 {
		t.Errorf("want cursor on last row, got %d", m.cursor)
	}
}

func TestProfiles_SetGroupsKeepsCursor(t *testing.T) {
	m := NewProfiles()
	m.SetGroups(testGroups())
	m.SetFocused(true)
	m, _ = m.Update(keyType(tea.KeyDown)) // nl-1

	groups := testGroups()
	groups[0].Proxies = append([]ProxyItem{{Name: "fi-1"}}, groups[0].Proxies...)
	m.SetGroups(groups)
	c, _ := m.current()
	if c.Proxy != "nl-1" {
		t.Errorf("cursor moved to %q, want nl-1", c.Proxy)
	}
}

func TestProfiles_SelectionOverridesNow(t *testing.T) {
	m := NewProfiles()
	m.SetGroups(testGroups())
	g := testGroups()[0]
	if !m.isSelected(g, g.Proxies[0]) {
		t.Error("want group's current proxy selected by default")
	}
	m.SetSelected("Auto", "nl-1")
	if m.isSelected(g, g.Proxies[0]) || !m.isSelected(g, g.Proxies[1]) {
		t.Error("want explicit selection to win")
	}
}

func TestProfiles_EmptyStates(t *testing.T) {
	m := NewProfiles()
	if !strings.Contains(m.View(), "Loading connections") {
		t.Errorf("want loader, got %q", m.View())
	}
	m.SetInitialized(true)
	if !strings.Contains(m.View(), "No connections available") {
		t.Errorf("want empty notice, got %q", m.View())
	}
}

// ---------------------------------------------------------------------------
// Menu and confirm
// ---------------------------------------------------------------------------

func TestMenu_EmitsChoice(t *testing.T) {
	m := NewMenu("Settings")
	m.SetItems([]MenuItem{{ID: "ports", Label: "Ports"}, {ID: "geo", Label: "Geo"}})
	m, _ = m.Update(keyType(tea.KeyDown))
	_, cmd := m.Update(keyType(tea.KeyEnter))
	if got := run(t, cmd); got != (MenuChoice{ID: "geo"}) {
		t.Errorf("got %#v", got)
	}
}

func TestMenu_BusyItemNotActivated(t *testing.T) {
	m := NewMenu("Settings")
	m.SetItems([]MenuItem{{ID: "restart", Label: "Restart", Busy: true}})
	if _, cmd := m.Update(keyType(tea.KeyEnter)); cmd != nil {
		t.Error("busy item must not emit")
	}
}

func TestMenu_EscDismisses(t *testing.T) {
	m := NewMenu("Settings")
	_, cmd := m.Update(keyType(tea.KeyEsc))
	if _, ok := run(t, cmd).(MenuDismiss); !ok {
		t.Error("want MenuDismiss")
	}
}

func TestConfirm_DefaultsToCancel(t *testing.T) {
	m := NewConfirm()
	m.Ask("logout", "Log out", "sure?")
	m, cmd := m.Update(keyType(tea.KeyEnter))
	if got := run(t, cmd); got != (ConfirmDecision{ID: "logout"}) {
		t.Errorf("got %#v", got)
	}
	if m.IsActive() {
		t.Error("want dialog closed")
	}
}

func TestConfirm_ArrowThenEnterConfirms(t *testing.T) {
	m := NewConfirm()
	m.Ask("exit", "Exit", "sure?")
	m, _ = m.Update(keyType(tea.KeyLeft))
	_, cmd := m.Update(keyType(tea.KeyEnter))
	if got := run(t, cmd); got != (ConfirmDecision{ID: "exit", OK: true}) {
		t.Errorf("got %#v", got)
	}
}

func TestConfirm_YesShortcut(t *testing.T) {
	m := NewConfirm()
	m.Ask("uninstall", "Uninstall", "sure?")
	_, cmd := m.Update(keyRunes("y"))
	if got := run(t, cmd); got != (ConfirmDecision{ID: "uninstall", OK: true}) {
		t.Errorf("got %#v", got)
	}
}

func TestConfirm_InactiveIgnoresKeys(t *testing.T) {
	m := NewConfirm()
	if _, cmd := m.Update(keyRunes("y")); cmd != nil {
		t.Error("inactive dialog must not emit")
	}
	if m.View() != "" {
		t.Error("inactive dialog must render nothing")
	}
}

// ---------------------------------------------------------------------------
// Ports form
// ---------------------------------------------------------------------------

func TestPorts_RoundTripsInitialValues(t *testing.T) {
	in := settings.Ports{Mixed: 7897, Socks: 7898, SocksEnabled: true, HTTP: 7899, Redir: 7895, TProxy: 7896}
	m := NewPorts(in)
	got, err := m.Ports()
	if err != nil {
		t.Fatalf("Ports: %v", err)
	}
	if got != in {
		t.Errorf("got %+v, want %+v", got, in)
	}
}

func TestPorts_SpaceTogglesEnabled(t *testing.T) {
	m := NewPorts(settings.DefaultPorts)
	m, _ = m.Update(keyType(tea.KeySpace)) // mixed port can't be switched off
	m, _ = m.Update(keyType(tea.KeyDown))
	m, _ = m.Update(keyType(tea.KeySpace))
	p, _ := m.Ports()
	if !p.SocksEnabled {
		t.Error("want socks enabled")
	}
	if m.fields[0].enabled != true {
		t.Error("mixed port toggled")
	}
}

func TestPorts_RejectsNonDigits(t *testing.T) {
	m := NewPorts(settings.DefaultPorts)
	m, _ = m.Update(keyRunes("a"))
	if v := m.fields[0].input.Value(); v != "7897" {
		t.Errorf("value changed to %q", v)
	}
}

func TestPorts_EnterWithDuplicatesEmitsSubmit(t *testing.T) {
	// uniqueness is checked by settings.SavePorts, the form only parses
	p := settings.DefaultPorts
	p.Socks, p.SocksEnabled = p.Mixed, true
	m := NewPorts(p)
	_, cmd := m.Update(keyType(tea.KeyEnter))
	got, ok := run(t, cmd).(PortsSubmit)
	if !ok || got.Ports != p {
		t.Errorf("got %#v", got)
	}
}

func TestPorts_EmptyFieldIsValidationError(t *testing.T) {
	m := NewPorts(settings.DefaultPorts)
	m.fields[2].input.SetValue("")
	m, cmd := m.Update(keyType(tea.KeyEnter))
	if cmd != nil {
		t.Fatal("want no submit")
	}
	if m.fields[2].errorMsg == "" {
		t.Error("want error on the HTTP field")
	}
}

func TestPorts_SetErrorsShowsValidation(t *testing.T) {
	m := NewPorts(settings.DefaultPorts)
	m.SetErrors(settings.ValidationErrors{settings.FieldSocks: "Port must be unique"})
	if !strings.Contains(m.View(), "Port must be unique") {
		t.Error("want validation message in view")
	}
	m.SetErrors(errors.New("bridge down"))
	if strings.Contains(m.View(), "Port must be unique") {
		t.Error("want errors cleared for a non-validation error")
	}
}

// ---------------------------------------------------------------------------
// Auth screen
// ---------------------------------------------------------------------------

func TestAuth_KeySubmit(t *testing.T) {
	m := NewAuth("https://t.me/bot")
	m.ShowKey()
	m, _ = m.Update(keyRunes("https://sub.example/abc"))
	_, cmd := m.Update(keyType(tea.KeyEnter))
	if got := run(t, cmd); got != (AuthKeySubmit{Key: "https://sub.example/abc"}) {
		t.Errorf("got %#v", got)
	}
}

func TestAuth_EmptyKeyIgnored(t *testing.T) {
	m := NewAuth("https://t.me/bot")
	m.ShowKey()
	if _, cmd := m.Update(keyType(tea.KeyEnter)); cmd != nil {
		t.Error("empty key must not submit")
	}
}

func TestAuth_ViewShowsLinkAndError(t *testing.T) {
	m := NewAuth("https://t.me/bot")
	if !strings.Contains(m.View(), "https://t.me/bot") {
		t.Error("want bot URL before sign-in starts")
	}
	m.SetWaiting("https://t.me/bot?start=desktop-auth-x")
	if !strings.Contains(m.View(), "desktop-auth-x") {
		t.Error("want deep link while waiting")
	}
	m.SetError(errors.New("not confirmed"))
	if m.Waiting() || !strings.Contains(m.View(), "not confirmed") {
		t.Error("want error shown and waiting stopped")
	}
}

// ---------------------------------------------------------------------------
// Footer
// ---------------------------------------------------------------------------

func TestFooter_DisconnectClearsGraph(t *testing.T) {
	m := NewFooter("1.0.0")
	m.SetConnected(true)
	m.Push(msg.TrafficSample{Up: 100, Down: 2048})
	if _, ok := m.ring.Last(); !ok {
		t.Fatal("want a sample")
	}
	m.SetConnected(false)
	if _, ok := m.ring.Last(); ok {
		t.Error("want samples cleared on disconnect")
	}
	if !strings.Contains(m.View(), "v1.0.0") {
		t.Error("want version in footer")
	}
}
