package app

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/spy-duck/duck-tui/auth"
	"github.com/spy-duck/duck-tui/client"
	"github.com/spy-duck/duck-tui/config"
	"github.com/spy-duck/duck-tui/connection"
	"github.com/spy-duck/duck-tui/settings"
	"github.com/spy-duck/duck-tui/state"
	"github.com/spy-duck/duck-tui/uistate"
)

// Services is the wired object graph shared by the TUI and the headless
// commands.
type Services struct {
	Config config.Config
	Dir    string
	Log    logrus.FieldLogger

	Client *client.Client
	Remote *client.RemoteClient
	Store  *uistate.Store
	Conn   *state.Connection
	Authz  *state.Authorization

	Proxy      *connection.ProxyState
	Service    *connection.ServiceFlow
	Controller *connection.Controller
	Selector   *connection.Selector
	Auth       *auth.Flow
	Settings   *settings.Settings

	notify *relay
}

// Wire builds every component from cfg. dir is the profile directory
// holding ui-state.yaml.
func Wire(cfg config.Config, dir string, log logrus.FieldLogger) (*Services, error) {
	c, err := client.New(cfg.BridgeURL)
	if err != nil {
		return nil, fmt.Errorf("bridge client: %w", err)
	}
	n := &relay{target: connection.Discard}
	s := &Services{
		Config: cfg,
		Dir:    dir,
		Log:    log,
		Client: c,
		Remote: client.NewRemote(cfg.APIURL),
		Store:  uistate.Open(dir),
		Conn:   state.NewConnection(state.Disconnected),
		notify: n,
	}
	s.Authz = state.NewAuthorization(s.Store)
	s.Proxy = connection.NewProxyState(c, cfg.MinMutationLatency, log)
	s.Service = connection.NewServiceFlow(c, connection.ServiceOptions{
		PollInterval: cfg.ServicePollInterval,
		Timeout:      cfg.ServiceReadyTimeout,
		MaxAttempts:  cfg.ServiceReadyAttempts,
	}, n, log)
	s.Controller = connection.NewController(connection.Deps{
		Backend:       c,
		Conn:          s.Conn,
		Proxy:         s.Proxy,
		Service:       s.Service,
		Store:         s.Store,
		Notify:        n,
		Log:           log,
		ToggleLatency: cfg.ToggleLatency,
	})
	s.Selector = connection.NewSelector(c, s.Store, n, log)
	s.Auth = auth.New(auth.Deps{
		Backend: c,
		Remote:  s.Remote,
		Store:   s.Store,
		Auth:    s.Authz,
		Conn:    s.Conn,
		Proxy:   s.Proxy,
		Notify:  n,
		Log:     log,
	}, auth.Options{
		BotURL:       cfg.BotURL,
		PollAttempts: cfg.AuthPollAttempts,
		PollDelay:    cfg.AuthPollDelay,
	})
	s.Settings = settings.New(c, s.Proxy, s.Service, n, log)
	return s, nil
}

// SetNotifier routes every component's notices to n.
func (s *Services) SetNotifier(n connection.Notifier) {
	s.notify.set(n)
}

// relay lets the notice sink be swapped after the components were built,
// e.g. once the tea.Program exists.
type relay struct {
	mu     sync.RWMutex
	target connection.Notifier
}

func (r *relay) set(n connection.Notifier) {
	if n == nil {
		n = connection.Discard
	}
	r.mu.Lock()
	r.target = n
	r.mu.Unlock()
}

func (r *relay) Notify(level connection.Level, text string) {
	r.mu.RLock()
	t := r.target
	r.mu.RUnlock()
	t.Notify(level, text)
}
