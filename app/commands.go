package app

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/spy-duck/duck-tui/auth"
	"github.com/spy-duck/duck-tui/client"
	"github.com/spy-duck/duck-tui/config"
	"github.com/spy-duck/duck-tui/connection"
	"github.com/spy-duck/duck-tui/model"
	"github.com/spy-duck/duck-tui/msg"
	"github.com/spy-duck/duck-tui/query"
	"github.com/spy-duck/duck-tui/settings"
	"github.com/spy-duck/duck-tui/state"
	"github.com/spy-duck/duck-tui/uistate"
)

const (
	readTimeout    = 15 * time.Second
	ipPace         = 2 * time.Second
	ipRetries      = 3
	ipRetryDelay   = time.Second
	messageDelay   = 5 * time.Second
	proxiesDelay   = 5 * time.Second
	proxiesTimeout = 60 * time.Second
	retryDelay     = 5 * time.Second
)

// errNoSubscription is reported when "update subscription" finds no profile.
var errNoSubscription = errors.New("no active subscription")

// -- local messages -----------------------------------------------------------

// ProgramReady is sent from main once the tea.Program exists, so commands
// can push events into it.
type ProgramReady struct{ Program *tea.Program }

type connectionChanged struct {
	prev, next state.ConnectionState
}

type relisten struct{}
type trafficRetry struct{}

type portsLoaded struct {
	ports settings.Ports
	err   error
}

type portsSaved struct{ err error }

// -- notices ------------------------------------------------------------------

// teaNotifier turns component notices into toasts. Send runs on its own
// goroutine because notices may be raised while a component holds a lock
// that Update also takes.
func teaNotifier(p *tea.Program) connection.Notifier {
	return connection.NotifierFunc(func(level connection.Level, text string) {
		go p.Send(msg.Notice{Level: msg.Level(level), Text: text})
	})
}

func notice(level msg.Level, text string) tea.Cmd {
	return func() tea.Msg { return msg.Notice{Level: level, Text: text} }
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg { return msg.TickMsg{} })
}

func after(d time.Duration, m tea.Msg) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return m })
}

// -- lifecycle ----------------------------------------------------------------

func (m Model) startup() tea.Cmd {
	svc, ctx := m.svc, m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, readTimeout)
		defer cancel()
		if err := handshake(ctx, svc.Client, handshakeDelay, svc.Log); err != nil {
			return msg.StartupResult{Err: err}
		}
		if err := allowOrigins(ctx, svc.Client, svc.Config.CORSOrigins); err != nil {
			svc.Log.WithError(err).Warn("patch controller cors")
		}
		return msg.StartupResult{Authorized: svc.Authz.IsAuthorized()}
	}
}

func (m *Model) listenEvents() tea.Cmd {
	if m.program == nil || m.events != nil {
		return nil
	}
	m.events = m.svc.Client.Events()
	return m.events.ListenCmd(m.program)
}

func (m *Model) startTraffic() tea.Cmd {
	if m.program == nil || m.trafficOn {
		return nil
	}
	m.trafficOn = true
	svc, ctx, p := m.svc, m.ctx, m.program
	return func() tea.Msg {
		rctx, cancel := context.WithTimeout(ctx, readTimeout)
		info, err := svc.Client.ClashInfo(rctx)
		cancel()
		if err != nil {
			return msg.TrafficEnded{Err: err}
		}
		err = client.TrafficStream(ctx, info, func(s client.TrafficSample) {
			p.Send(msg.TrafficSample{Up: s.Up, Down: s.Down})
		})
		return msg.TrafficEnded{Err: err}
	}
}

// -- connection ---------------------------------------------------------------

func (m Model) refreshState() tea.Cmd {
	c, ctx := m.svc.Controller, m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, readTimeout)
		defer cancel()
		return msg.StateRefreshed{Err: c.Refresh(ctx)}
	}
}

func (m Model) applyEvent(ev any) tea.Cmd {
	c, ctx := m.svc.Controller, m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, readTimeout)
		defer cancel()
		c.HandleEvent(ctx, ev)
		return msg.StateRefreshed{}
	}
}

func (m Model) toggle() tea.Cmd {
	c, ctx := m.svc.Controller, m.ctx
	return func() tea.Msg {
		return msg.ActionResult{Action: "toggle", Err: c.Toggle(ctx)}
	}
}

func (m Model) changeMode(mode client.Mode) tea.Cmd {
	c, ctx := m.svc.Controller, m.ctx
	return func() tea.Msg {
		return msg.ActionResult{Action: "mode", Err: c.ChangeMode(ctx, mode)}
	}
}

// -- proxies and profiles -----------------------------------------------------

func (m Model) loadProxies() tea.Cmd {
	s, ctx := m.svc.Selector, m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, readTimeout)
		defer cancel()
		_, err := s.Refresh(ctx)
		return msg.ProxiesLoaded{Err: err}
	}
}

func (m Model) forceUpdateProxies() tea.Cmd {
	s, ctx, log := m.svc.Selector, m.ctx, m.svc.Log
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, readTimeout)
		defer cancel()
		if err := s.ForceUpdate(ctx); err != nil {
			log.WithError(err).Warn("force update proxies")
		}
		_, err := s.Refresh(ctx)
		return msg.ProxiesLoaded{Err: err}
	}
}

func (m Model) markProxiesInitialized() tea.Cmd {
	s, log := m.svc.Selector, m.svc.Log
	return func() tea.Msg {
		if err := s.MarkInitialized(); err != nil {
			log.WithError(err).Warn("persist proxies initialized")
		}
		return nil
	}
}

func (m Model) selectProxy(c model.ProxyChoice) tea.Cmd {
	s, ctx := m.svc.Selector, m.ctx
	return func() tea.Msg {
		return msg.ActionResult{Action: "select", Err: s.Select(ctx, c.Group, c.Proxy)}
	}
}

func (m Model) loadProfiles() tea.Cmd {
	c, ctx := m.svc.Client, m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, readTimeout)
		defer cancel()
		ps, err := c.Profiles(ctx)
		if err != nil {
			return msg.ProfilesLoaded{Err: err}
		}
		return profileSummary(ps)
	}
}

func profileSummary(ps client.Profiles) msg.ProfilesLoaded {
	p, ok := ps.CurrentProfile()
	if !ok {
		return msg.ProfilesLoaded{}
	}
	out := msg.ProfilesLoaded{Name: p.Name}
	if p.Extra != nil {
		out.Expire = p.Extra.Expire
		out.Used = p.Extra.Upload + p.Extra.Download
		out.Total = p.Extra.Total
	}
	return out
}

func (m Model) updateSubscription() tea.Cmd {
	c, ctx, pace := m.svc.Client, m.ctx, m.svc.Config.MinMutationLatency
	return func() tea.Msg {
		err := query.PaceErr(ctx, pace, func(ctx context.Context) error {
			ps, err := c.Profiles(ctx)
			if err != nil {
				return err
			}
			p, ok := ps.CurrentProfile()
			if !ok {
				return errNoSubscription
			}
			return c.UpdateProfile(ctx, p.UID)
		})
		return msg.ActionResult{Action: "update", Err: err}
	}
}

// -- home widgets -------------------------------------------------------------

// scheduleIP replaces any pending IP refresh with one that fires after d.
func (m *Model) scheduleIP(d time.Duration) tea.Cmd {
	m.ipSeq++
	return after(d, msg.RefreshIP{Seq: m.ipSeq})
}

// refreshIPNow drops pending refreshes and looks the address up at once.
func (m *Model) refreshIPNow() tea.Cmd {
	m.ipSeq++
	m.ip.SetPending(true)
	return m.lookupIP()
}

func (m Model) lookupIP() tea.Cmd {
	r, ctx, url := m.svc.Remote, m.ctx, m.svc.Config.IPInfoURL
	return func() tea.Msg {
		info, err := query.Pace(ctx, ipPace, func(ctx context.Context) (*client.IPInfo, error) {
			var out *client.IPInfo
			err := query.Retry(ctx, ipRetries, ipRetryDelay, func(ctx context.Context) error {
				rctx, cancel := context.WithTimeout(ctx, readTimeout)
				defer cancel()
				i, err := r.IPInfo(rctx, url)
				if err != nil {
					return err
				}
				out = i
				return nil
			})
			return out, err
		})
		if err != nil {
			return msg.IPInfo{Err: err}
		}
		return msg.IPInfo{IP: info.IP, Country: info.Country, CountryCode: info.CountryCode}
	}
}

func (m Model) loadServerMessage() tea.Cmd {
	r, ctx, sources := m.svc.Remote, m.ctx, m.svc.Config.ServerMessageSources
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, readTimeout)
		defer cancel()
		sm, err := r.ServerMessage(ctx, sources)
		if err != nil {
			return msg.ServerMessage{Err: err}
		}
		return msg.ServerMessage{ID: sm.ID, Title: sm.Title, Text: sm.Text}
	}
}

func (m Model) persist(fn func(*uistate.State)) tea.Cmd {
	store, log := m.svc.Store, m.svc.Log
	return func() tea.Msg {
		if err := store.Update(fn); err != nil {
			log.WithError(err).Warn("persist ui state")
		}
		return nil
	}
}

// -- authorization ------------------------------------------------------------

func (m Model) startAuth() tea.Cmd {
	f, ctx := m.svc.Auth, m.ctx
	return func() tea.Msg {
		s := f.Start(ctx)
		return msg.AuthStarted{Token: s.Token, Link: s.Link}
	}
}

func (m Model) pollAuth(s *auth.Session) tea.Cmd {
	f, ctx := m.svc.Auth, m.ctx
	return func() tea.Msg {
		res, err := f.Poll(ctx, s)
		if err != nil {
			return msg.AuthResult{Err: err}
		}
		return msg.AuthResult{Err: f.Complete(ctx, res)}
	}
}

func (m Model) authByKey(key string) tea.Cmd {
	f, ctx := m.svc.Auth, m.ctx
	return func() tea.Msg {
		res, err := f.ByKey(ctx, key)
		if err != nil {
			return msg.AuthResult{Err: err}
		}
		return msg.AuthResult{Err: f.Complete(ctx, res)}
	}
}

func (m Model) logout() tea.Cmd {
	f, ctx := m.svc.Auth, m.ctx
	return func() tea.Msg {
		return msg.ActionResult{Action: "logout", Err: f.Logout(ctx)}
	}
}

// -- settings -----------------------------------------------------------------

// action runs fn and reports it as an ActionResult named id.
func (m Model) action(id string, fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return msg.ActionResult{Action: id, Err: fn(ctx)}
	}
}

func (m Model) loadPorts() tea.Cmd {
	c, p, ctx := m.svc.Client, m.svc.Proxy, m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, readTimeout)
		defer cancel()
		cfg, err := p.Verge().Get(ctx)
		if err != nil {
			return portsLoaded{err: err}
		}
		info, err := c.ClashInfo(ctx)
		if err != nil {
			return portsLoaded{err: err}
		}
		return portsLoaded{ports: settings.PortsFrom(cfg, info)}
	}
}

func (m Model) savePorts(p settings.Ports) tea.Cmd {
	s, ctx := m.svc.Settings, m.ctx
	return func() tea.Msg {
		return portsSaved{err: s.SavePorts(ctx, p)}
	}
}

func (m Model) openBot(startapp string) tea.Cmd {
	c, bot := m.svc.Client, m.svc.Config.BotURL
	return m.action("open", func(ctx context.Context) error {
		return c.OpenWebURL(ctx, bot+"?startapp="+startapp)
	})
}

func (m Model) saveTheme(name string) tea.Cmd {
	dir, log := m.svc.Dir, m.svc.Log
	return func() tea.Msg {
		if err := config.SetTheme(dir, name); err != nil {
			log.WithError(err).Warn("save theme")
		}
		return nil
	}
}
