package app

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/spy-duck/duck-tui/auth"
	"github.com/spy-duck/duck-tui/client"
	"github.com/spy-duck/duck-tui/connection"
	"github.com/spy-duck/duck-tui/markdown"
	"github.com/spy-duck/duck-tui/model"
	"github.com/spy-duck/duck-tui/msg"
	"github.com/spy-duck/duck-tui/state"
	"github.com/spy-duck/duck-tui/style"
	"github.com/spy-duck/duck-tui/uistate"
)

type Model struct {
	svc    *Services
	ctx    context.Context
	cancel context.CancelFunc

	header   model.HeaderModel
	message  model.MessageModel
	conn     model.ConnectionModel
	ip       model.IPInfoModel
	profiles model.ProfilesModel
	footer   model.FooterModel
	toasts   model.ToastsModel
	menu     model.MenuModel
	confirm  model.ConfirmModel
	ports    model.PortsModel
	auth     model.AuthModel

	screen      Screen
	prev        Screen // screen under the confirm dialog
	program     *tea.Program
	events      *client.EventStream
	session     *auth.Session
	keys        KeyMap
	width       int
	height      int
	started     bool
	startupErr  error
	trafficOn   bool
	ipSeq       int
	compact     bool
	pending     string // settings action in flight
	confirmQuit bool
}

func New(svc *Services, version string) Model {
	ctx, cancel := context.WithCancel(context.Background())
	st := svc.Store.Get()
	return Model{
		svc: svc, ctx: ctx, cancel: cancel,
		header: model.NewHeader(), message: model.NewMessage(st.HiddenMessageID),
		conn: model.NewConnection(), ip: model.NewIPInfo(), profiles: model.NewProfiles(),
		footer: model.NewFooter(version), toasts: model.NewToasts(),
		menu: model.NewMenu("Settings"), confirm: model.NewConfirm(),
		auth:   model.NewAuth(svc.Config.BotURL),
		screen: ScreenStartup, keys: DefaultKeyMap(), width: 80, height: 24,
		compact: !st.IsNewUI(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.startup(), m.conn.Init(), m.auth.Init(), tickCmd(), tea.WindowSize())
}

func (m Model) Update(rawMsg tea.Msg) (tea.Model, tea.Cmd) {
	switch v := rawMsg.(type) {
	case tea.WindowSizeMsg:
		m.resize(v.Width, v.Height)
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(v)
	case ProgramReady:
		m.program = v.Program
		m.svc.SetNotifier(teaNotifier(v.Program))
		p := v.Program
		m.svc.Conn.Subscribe(func(prev, next state.ConnectionState) {
			go p.Send(connectionChanged{prev: prev, next: next})
		})
		if m.started {
			cmd := tea.Batch(m.listenEvents(), m.startTraffic())
			return m, cmd
		}
		return m, nil
	case msg.StartupResult:
		return m.handleStartup(v)
	case msg.RetryStartup:
		return m, m.startup()
	case msg.Notice:
		m.toasts.Add(v)
		return m, nil
	case msg.TickMsg:
		m.toasts.Tick()
		m.syncConnection()
		return m, tickCmd()
	case spinner.TickMsg:
		var c1, c2 tea.Cmd
		m.conn, c1 = m.conn.Update(v)
		m.auth, c2 = m.auth.Update(v)
		return m, tea.Batch(c1, c2)

	// connection
	case msg.StateRefreshed:
		if v.Err != nil {
			m.svc.Log.WithError(v.Err).Warn("state refresh")
		}
		m.syncConnection()
		return m, nil
	case connectionChanged:
		m.syncConnection()
		if v.next == state.Connected || v.next == state.Disconnected {
			cmd := m.scheduleIP(5 * time.Second)
			return m, cmd
		}
		return m, nil
	case msg.ActionResult:
		return m.handleAction(v)

	// backend events
	case client.ConnectionStateEvent, client.ConnectionModeEvent, client.VergeRefreshEvent:
		return m, m.applyEvent(v)
	case client.ProxyChangedEvent:
		m.svc.Selector.HandleEvent(v)
		m.syncSelection()
		cmd := m.scheduleIP(time.Second)
		return m, cmd
	case client.StartupCompletedEvent:
		return m, tea.Batch(m.refreshState(), m.loadProxies())
	case client.StreamConnectedEvent:
		m.svc.Log.Info("event stream connected")
		return m, nil
	case client.StreamDisconnectedEvent:
		m.svc.Log.WithError(v.Err).Warn("event stream dropped")
		return m, nil
	case client.StreamReconnectingEvent:
		return m, notice(msg.LevelWarning, "Connection to the core lost. Reconnecting…")
	case client.StreamClosedEvent:
		m.events = nil
		if v.Err != nil && m.ctx.Err() == nil {
			m.svc.Log.WithError(v.Err).Error("event stream closed")
			return m, tea.Batch(
				notice(msg.LevelError, "Lost connection to the core"),
				after(retryDelay, relisten{}),
			)
		}
		return m, nil
	case relisten:
		cmd := m.listenEvents()
		return m, cmd
	case client.ParseWarning:
		m.svc.Log.Warn(v.Message)
		return m, nil

	// home widgets
	case msg.ProfilesLoaded:
		if v.Err != nil {
			m.svc.Log.WithError(v.Err).Warn("load profiles")
		}
		m.header.SetProfile(v)
		return m, nil
	case msg.ProxiesLoaded:
		if v.Err != nil {
			m.svc.Log.WithError(v.Err).Warn("load proxies")
		}
		m.syncProxies()
		return m, nil
	case msg.ForceUpdateProxies:
		if !m.svc.Selector.Initialized() {
			return m, m.forceUpdateProxies()
		}
		return m, nil
	case msg.ProxiesInitTimeout:
		if !m.svc.Selector.Initialized() {
			m.profiles.SetInitialized(true)
			return m, m.markProxiesInitialized()
		}
		return m, nil
	case model.ProxyChoice:
		m.profiles.SetSelected(v.Group, v.Proxy)
		return m, m.selectProxy(v)
	case msg.RefreshIP:
		if v.Seq != m.ipSeq {
			return m, nil
		}
		m.ip.SetPending(true)
		return m, m.lookupIP()
	case msg.IPInfo:
		if v.Err != nil {
			m.svc.Log.WithError(v.Err).Warn("ip lookup")
		}
		m.ip.Set(v)
		cmd := m.scheduleIP(m.svc.Config.IPRefreshInterval)
		return m, cmd
	case msg.LoadServerMessage:
		return m, m.loadServerMessage()
	case msg.ServerMessage:
		if v.Err != nil {
			m.svc.Log.WithError(v.Err).Debug("server message")
		}
		m.message.Set(v)
		return m, nil
	case msg.TrafficSample:
		m.footer.Push(v)
		return m, nil
	case msg.TrafficEnded:
		m.trafficOn = false
		if m.ctx.Err() != nil {
			return m, nil
		}
		if v.Err != nil {
			m.svc.Log.WithError(v.Err).Warn("traffic stream ended")
		}
		return m, after(retryDelay, trafficRetry{})
	case trafficRetry:
		cmd := m.startTraffic()
		return m, cmd

	// authorization
	case msg.AuthStarted:
		m.session = &auth.Session{Token: v.Token, Link: v.Link}
		m.auth.SetWaiting(v.Link)
		return m, m.pollAuth(m.session)
	case model.AuthKeySubmit:
		if err := auth.ValidateKey(v.Key); err != nil {
			m.auth.SetError(err)
			return m, nil
		}
		m.auth.SetWaiting("")
		return m, m.authByKey(v.Key)
	case msg.AuthResult:
		m.session = nil
		if v.Err != nil {
			if m.ctx.Err() == nil {
				m.auth.SetError(v.Err)
			}
			return m, nil
		}
		m.auth.HideKey()
		cmd := m.enterHome()
		return m, cmd

	// settings
	case model.MenuChoice:
		return m.handleMenu(v.ID)
	case model.MenuDismiss:
		m.screen = ScreenHome
		return m, nil
	case model.ConfirmDecision:
		return m.handleConfirm(v)
	case portsLoaded:
		m.pending = ""
		m.refreshMenu()
		if v.err != nil {
			return m, notice(msg.LevelError, "Could not read port settings: "+v.err.Error())
		}
		m.ports = model.NewPorts(v.ports)
		m.ports.SetSize(m.width, m.height)
		m.screen = ScreenPorts
		return m, nil
	case model.PortsSubmit:
		m.ports.SetSaving(true)
		return m, m.savePorts(v.Ports)
	case model.PortsCancel:
		m.screen = ScreenSettings
		return m, nil
	case portsSaved:
		m.ports.SetSaving(false)
		if v.err != nil {
			m.ports.SetErrors(v.err)
			return m, nil
		}
		m.screen = ScreenSettings
		return m, nil
	}
	return m, nil
}

func (m *Model) resize(w, h int) {
	m.width = w
	m.height = h
	m.header.SetWidth(w)
	m.message.SetWidth(w)
	m.footer.SetWidth(w)
	m.profiles.SetWidth(w)
	m.profiles.SetPageSize(h - 18)
	m.menu.SetSize(w, h)
	m.confirm.SetSize(w, h)
	m.ports.SetSize(w, h)
	m.auth.SetSize(w, h)
}

func (m Model) handleStartup(r msg.StartupResult) (tea.Model, tea.Cmd) {
	if r.Err != nil {
		m.startupErr = r.Err
		m.svc.Log.WithError(r.Err).Warn("bridge unreachable")
		return m, after(retryDelay, msg.RetryStartup{})
	}
	m.startupErr = nil
	m.started = true
	cmds := []tea.Cmd{m.listenEvents(), m.startTraffic(), m.refreshState()}
	if r.Authorized {
		cmds = append(cmds, m.enterHome())
	} else {
		m.enterAuth()
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) enterHome() tea.Cmd {
	m.screen = ScreenHome
	initialized := m.svc.Selector.Initialized()
	m.profiles.SetInitialized(initialized)
	cmds := []tea.Cmd{
		m.refreshState(),
		m.loadProfiles(),
		m.loadProxies(),
		m.refreshIPNow(),
		after(messageDelay, msg.LoadServerMessage{}),
	}
	if !initialized {
		cmds = append(cmds,
			after(proxiesDelay, msg.ForceUpdateProxies{}),
			after(proxiesTimeout, msg.ProxiesInitTimeout{}),
		)
	}
	return tea.Batch(cmds...)
}

func (m *Model) enterAuth() {
	m.screen = ScreenAuthorization
	m.session = nil
	m.auth.HideKey()
	m.auth.SetError(nil)
}

// -- keys ---------------------------------------------------------------------

func (m Model) handleKey(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.confirmQuit {
		if key.Matches(k, m.keys.Quit) {
			return m.quit()
		}
		m.confirmQuit = false
		return m, nil
	}
	if k.Type == tea.KeyCtrlC {
		m.confirmQuit = true
		return m, nil
	}
	switch m.screen {
	case ScreenStartup:
		if key.Matches(k, m.keys.Quit) {
			m.confirmQuit = true
		}
		return m, nil
	case ScreenAuthorization:
		return m.handleAuthKey(k)
	case ScreenAuthByKey:
		if key.Matches(k, m.keys.Escape) {
			if m.auth.Waiting() {
				return m, nil
			}
			m.auth.HideKey()
			m.screen = ScreenAuthorization
			return m, nil
		}
		var cmd tea.Cmd
		m.auth, cmd = m.auth.Update(k)
		return m, cmd
	case ScreenHome:
		return m.handleHomeKey(k)
	case ScreenSettings:
		var cmd tea.Cmd
		m.menu, cmd = m.menu.Update(k)
		return m, cmd
	case ScreenPorts:
		var cmd tea.Cmd
		m.ports, cmd = m.ports.Update(k)
		return m, cmd
	case ScreenConfirm:
		var cmd tea.Cmd
		m.confirm, cmd = m.confirm.Update(k)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleAuthKey(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(k, m.keys.Quit):
		m.confirmQuit = true
	case key.Matches(k, m.keys.SignIn):
		if m.auth.Waiting() {
			return m, nil
		}
		m.auth.SetWaiting("")
		return m, m.startAuth()
	case key.Matches(k, m.keys.ByKey):
		if m.auth.Waiting() {
			return m, nil
		}
		m.screen = ScreenAuthByKey
		cmd := m.auth.ShowKey()
		return m, cmd
	}
	return m, nil
}

func (m Model) handleHomeKey(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.profiles.Focused() {
		switch {
		case key.Matches(k, m.keys.Focus), key.Matches(k, m.keys.Escape):
			m.profiles.SetFocused(false)
			return m, nil
		case k.Type == tea.KeyUp, k.Type == tea.KeyDown, k.Type == tea.KeyEnter:
			var cmd tea.Cmd
			m.profiles, cmd = m.profiles.Update(k)
			return m, cmd
		}
	}

	switch {
	case key.Matches(k, m.keys.Quit):
		m.confirmQuit = true
	case key.Matches(k, m.keys.Focus):
		if !m.compact && !m.profiles.Empty() {
			m.profiles.SetFocused(true)
		}
	case key.Matches(k, m.keys.Toggle):
		if m.svc.Controller.Snapshot().Busy {
			return m, nil
		}
		return m, m.toggle()
	case key.Matches(k, m.keys.CycleMode):
		return m, m.changeMode(nextMode(m.svc.Controller.Snapshot().Mode))
	case key.Matches(k, m.keys.ModeTun):
		return m, m.changeMode(client.ModeTun)
	case key.Matches(k, m.keys.ModeSystem):
		return m, m.changeMode(client.ModeSystem)
	case key.Matches(k, m.keys.ModeCombine):
		return m, m.changeMode(client.ModeCombine)
	case key.Matches(k, m.keys.Settings):
		m.openSettings()
	case key.Matches(k, m.keys.RefreshIP):
		cmd := m.refreshIPNow()
		return m, cmd
	case key.Matches(k, m.keys.Update):
		if m.header.Updating() {
			return m, nil
		}
		m.header.SetUpdating(true)
		return m, m.updateSubscription()
	case key.Matches(k, m.keys.ReloadProxies):
		return m, m.forceUpdateProxies()
	case key.Matches(k, m.keys.Dismiss):
		if !m.message.Visible() {
			return m, nil
		}
		id := m.message.Dismiss()
		return m, m.persist(func(s *uistate.State) { s.HiddenMessageID = id })
	case key.Matches(k, m.keys.Compact):
		m.compact = !m.compact
		if m.compact {
			m.profiles.SetFocused(false)
		}
		full := !m.compact
		return m, m.persist(func(s *uistate.State) { s.NewUI = &full })
	}
	return m, nil
}

// nextMode returns the mode after cur in display order.
func nextMode(cur client.Mode) client.Mode {
	i := slices.IndexFunc(model.Modes, func(o model.ModeOption) bool { return o.Value == string(cur) })
	next := model.Modes[(i+1)%len(model.Modes)]
	return client.Mode(next.Value)
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.cancel()
	if m.events != nil {
		m.events.Close()
	}
	return m, tea.Quit
}

// -- results ------------------------------------------------------------------

func (m Model) handleAction(r msg.ActionResult) (tea.Model, tea.Cmd) {
	if r.Action == m.pending {
		m.pending = ""
	}
	m.syncConnection()
	m.refreshMenu()

	if errors.Is(r.Err, connection.ErrMutationPending) {
		return m, nil
	}
	if r.Err != nil {
		m.svc.Log.WithError(r.Err).WithField("action", r.Action).Warn("action failed")
	}

	switch r.Action {
	case "select":
		if r.Err != nil {
			m.syncSelection()
			return m, nil
		}
		cmd := m.scheduleIP(time.Second)
		return m, cmd
	case "update":
		m.header.SetUpdating(false)
		if r.Err != nil {
			return m, notice(msg.LevelError, "Update subscription failed: "+r.Err.Error())
		}
		return m, tea.Batch(
			notice(msg.LevelSuccess, "Update subscription successfully"),
			m.loadProfiles(),
			m.loadProxies(),
		)
	case "logout":
		if r.Err != nil {
			return m, notice(msg.LevelError, "Log out failed: "+r.Err.Error())
		}
		m.enterAuth()
		return m, nil
	case "exit":
		if r.Err != nil {
			return m, nil
		}
		return m.quit()
	case "open":
		if r.Err != nil {
			return m, notice(msg.LevelError, "Could not open the browser: "+r.Err.Error())
		}
	case "restart", "uninstall":
		return m, m.refreshState()
	}
	return m, nil
}

func (m *Model) syncConnection() {
	snap := m.svc.Controller.Snapshot()
	m.conn.Set(model.ConnectionView{
		State:      string(snap.State),
		Mode:       string(snap.Mode),
		Busy:       snap.Busy,
		Installing: snap.Installing,
	})
	m.footer.SetConnected(snap.State == state.Connected)
}

func (m *Model) syncProxies() {
	groups := m.svc.Selector.Groups()
	m.profiles.SetGroups(groupViews(groups))
	m.profiles.SetInitialized(m.svc.Selector.Initialized() || len(groups) > 0)
	m.syncSelection()
}

func (m *Model) syncSelection() {
	sel := m.svc.Selector.Selected()
	m.profiles.SetSelected(sel.Group, sel.Proxy)
}

func groupViews(groups []client.ProxyGroup) []model.ProxyGroupView {
	out := make([]model.ProxyGroupView, 0, len(groups))
	for _, g := range groups {
		v := model.ProxyGroupView{Name: g.Name, Now: g.Now}
		for _, p := range g.All {
			v.Proxies = append(v.Proxies, model.ProxyItem{Name: p.Name, Type: p.Type})
		}
		out = append(out, v)
	}
	return out
}

// -- settings -----------------------------------------------------------------

func (m *Model) openSettings() {
	m.menu.Reset()
	m.refreshMenu()
	m.screen = ScreenSettings
}

func (m *Model) refreshMenu() {
	onOff := func(v bool) string {
		if v {
			return "on"
		}
		return "off"
	}
	items := []model.MenuItem{
		{ID: "ports", Label: "Port settings", Description: "Mixed, socks, HTTP, redir and tproxy ports"},
		{ID: "autostart", Label: "Launch at login", Value: onOff(m.svc.Settings.Autostart())},
		{ID: "theme", Label: "Theme", Value: style.CurrentThemeName},
		{ID: "restart", Label: "Restart core"},
		{ID: "geo", Label: "Update geo data", Description: "Download fresh GeoIP and GeoSite databases"},
	}
	if m.svc.Controller.Snapshot().ServiceAvailable {
		items = append(items, model.MenuItem{ID: "uninstall", Label: "Uninstall VPN service"})
	}
	items = append(items,
		model.MenuItem{ID: "renew", Label: "Extend subscription", Description: "Opens the bot in Telegram"},
		model.MenuItem{ID: "payment", Label: "Payment", Description: "Opens the bot in Telegram"},
		model.MenuItem{ID: "logout", Label: "Log out"},
		model.MenuItem{ID: "exit", Label: "Exit application", Description: "Stops the core and closes Duck VPN"},
	)
	for i := range items {
		items[i].Busy = items[i].ID == m.pending
	}
	m.menu.SetItems(items)
}

func (m Model) handleMenu(id string) (tea.Model, tea.Cmd) {
	set := m.svc.Settings
	var cmd tea.Cmd
	switch id {
	case "ports":
		cmd = m.loadPorts()
	case "autostart":
		on := !set.Autostart()
		cmd = m.action(id, func(ctx context.Context) error { return set.SetAutostart(ctx, on) })
	case "theme":
		i := slices.Index(style.ThemeNames, style.CurrentThemeName)
		name := style.ThemeNames[(i+1)%len(style.ThemeNames)]
		ApplyTheme(name)
		m.svc.Config.Theme = name
		m.refreshMenu()
		return m, m.saveTheme(name)
	case "restart":
		cmd = m.action(id, set.RestartCore)
	case "geo":
		cmd = m.action(id, set.UpdateGeoData)
	case "uninstall":
		m.ask(id, "Uninstall VPN service", "The VPN service mode stops working until the service is installed again.")
		return m, nil
	case "renew":
		return m, m.openBot("subscription")
	case "payment":
		return m, m.openBot("payment")
	case "logout":
		m.ask(id, "Log out", "Your subscription will be removed from this PC.")
		return m, nil
	case "exit":
		m.ask(id, "Exit", "The core stops and the connection is dropped.")
		return m, nil
	default:
		return m, nil
	}
	m.pending = id
	m.refreshMenu()
	return m, cmd
}

// ApplyTheme switches the palette and the matching markdown style. It
// reports false for an unknown theme.
func ApplyTheme(name string) bool {
	if !style.SetTheme(name) {
		return false
	}
	if name == "light" {
		markdown.SetStyle("light")
	} else {
		markdown.SetStyle("dark")
	}
	return true
}

func (m *Model) ask(id, title, body string) {
	m.prev = m.screen
	m.screen = ScreenConfirm
	m.confirm.Ask(id, title, body)
}

func (m Model) handleConfirm(d model.ConfirmDecision) (tea.Model, tea.Cmd) {
	m.screen = m.prev
	if !d.OK {
		return m, nil
	}
	set := m.svc.Settings
	m.pending = d.ID
	m.refreshMenu()
	switch d.ID {
	case "uninstall":
		return m, m.action(d.ID, set.UninstallService)
	case "logout":
		return m, m.logout()
	case "exit":
		return m, m.action(d.ID, set.ExitApp)
	}
	m.pending = ""
	return m, nil
}
