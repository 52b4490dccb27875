package connection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/spy-duck/duck-tui/client"
	"github.com/spy-duck/duck-tui/query"
	"github.com/spy-duck/duck-tui/state"
	"github.com/spy-duck/duck-tui/uistate"
)

// ErrMutationPending is returned when a connect, disconnect or mode change
// is requested while another one is still running.
var ErrMutationPending = errors.New("another connection change is in progress")

// Backend is everything the controller asks the bridge for.
type Backend interface {
	VergeBackend
	ServiceBackend
	ConnectionMode(ctx context.Context) (client.Mode, error)
	SetConnectionMode(ctx context.Context, mode client.Mode) (client.Mode, error)
	Disconnect(ctx context.Context) error
}

// Snapshot is a consistent view of the controller for rendering.
type Snapshot struct {
	State            state.ConnectionState
	Mode             client.Mode
	Flags            Flags
	ServiceAvailable bool
	RunningMode      client.RunningMode
	Busy             bool
	Installing       bool
}

// Connecting reports whether the UI should show a spinner.
func (s Snapshot) Connecting() bool {
	return s.Busy || s.State == state.Connecting
}

// Deps wires a Controller.
type Deps struct {
	Backend Backend
	Conn    *state.Connection
	Proxy   *ProxyState
	Service *ServiceFlow
	Store   *uistate.Store
	Notify  Notifier
	Log     logrus.FieldLogger

	// ToggleLatency paces Toggle like ProxyState paces flag updates.
	ToggleLatency time.Duration
}

// Controller turns user intents (toggle, connect, disconnect, mode change)
// into flag updates or the install-first detour. Only one intent runs at a
// time.
type Controller struct {
	backend Backend
	conn    *state.Connection
	proxy   *ProxyState
	service *ServiceFlow
	store   *uistate.Store
	notify  Notifier
	log     logrus.FieldLogger
	pace    time.Duration

	mu         sync.Mutex
	mode       client.Mode
	busy       bool
	installing bool
}

func NewController(d Deps) *Controller {
	notify := d.Notify
	if notify == nil {
		notify = Discard
	}
	c := &Controller{
		backend: d.Backend,
		conn:    d.Conn,
		proxy:   d.Proxy,
		service: d.Service,
		store:   d.Store,
		notify:  notify,
		log:     d.Log.WithField("component", "controller"),
		pace:    d.ToggleLatency,
		mode:    client.ModeSystem,
	}
	if d.Store != nil {
		if m, err := client.ParseMode(d.Store.Get().ModeTab); err == nil {
			c.mode = m
		}
	}
	return c
}

// Snapshot returns the current view without I/O.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		State:            c.conn.Read(),
		Mode:             c.mode,
		Flags:            c.proxy.Flags(),
		ServiceAvailable: c.service.Available(),
		RunningMode:      c.service.RunningMode(),
		Busy:             c.busy || c.proxy.Pending(),
		Installing:       c.installing,
	}
}

func (c *Controller) begin() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return false
	}
	c.busy = true
	return true
}

func (c *Controller) end() {
	c.mu.Lock()
	c.busy = false
	c.mu.Unlock()
}

func (c *Controller) currentMode() client.Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

func (c *Controller) setInstalling(v bool) {
	c.mu.Lock()
	c.installing = v
	c.mu.Unlock()
}

// Refresh reads mode, flags and running mode from the backend and, when no
// change is in flight, derives the connection state from the flags.
func (c *Controller) Refresh(ctx context.Context) error {
	var mode client.Mode
	var flags Flags
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m, err := c.backend.ConnectionMode(gctx)
		if err != nil {
			return fmt.Errorf("connection mode: %w", err)
		}
		mode = m
		return nil
	})
	g.Go(func() error {
		f, err := c.proxy.Refresh(gctx)
		if err != nil {
			return fmt.Errorf("verge config: %w", err)
		}
		flags = f
		return nil
	})
	g.Go(func() error {
		if _, err := c.service.Refresh(gctx); err != nil {
			return fmt.Errorf("running mode: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	c.mu.Lock()
	if mode != "" {
		c.mode = mode
	}
	busy := c.busy
	c.mu.Unlock()
	if !busy {
		c.conn.Transition(StateFor(flags))
	}
	return nil
}

// Toggle connects when disconnected and disconnects otherwise.
func (c *Controller) Toggle(ctx context.Context) error {
	if !c.begin() {
		return ErrMutationPending
	}
	defer c.end()

	run := func(ctx context.Context) error {
		if c.conn.Read() == state.Disconnected {
			return c.connect(ctx)
		}
		return c.disconnect(ctx)
	}
	if c.pace > 0 {
		return query.PaceErr(ctx, c.pace, run)
	}
	return run(ctx)
}

// Connect sets the flags for the current mode, installing the service first
// when the mode needs it and it is missing.
func (c *Controller) Connect(ctx context.Context) error {
	if !c.begin() {
		return ErrMutationPending
	}
	defer c.end()
	return c.connect(ctx)
}

// Disconnect clears both flags. It makes no backend call when already
// disconnected with both flags off.
func (c *Controller) Disconnect(ctx context.Context) error {
	if !c.begin() {
		return ErrMutationPending
	}
	defer c.end()
	return c.disconnect(ctx)
}

func (c *Controller) connect(ctx context.Context) error {
	mode := c.currentMode()
	prev := c.conn.Transition(state.Connecting)
	log := c.log.WithField("mode", mode)

	if mode.NeedsService() && !c.service.Available() {
		log.Info("service missing, installing before connect")
		c.setInstalling(true)
		ok, err := c.service.Install(ctx)
		c.setInstalling(false)
		if err != nil || !ok {
			c.conn.Transition(prev)
			if err == nil {
				err = ErrInstallFailed
			}
			c.notify.Notify(LevelError, "Service installation failed: "+err.Error())
			return err
		}
		c.notify.Notify(LevelSuccess, "Service installed")
	}

	target := FlagsFor(mode)
	if err := c.proxy.Update(ctx, target); err != nil {
		c.conn.Transition(prev)
		c.notify.Notify(LevelError, "Connection failed: "+err.Error())
		return err
	}
	c.conn.Transition(StateFor(target))
	log.Info("connected")
	return nil
}

func (c *Controller) disconnect(ctx context.Context) error {
	cur := c.conn.Read()
	if cur == state.Disconnected && !c.proxy.Flags().Any() {
		return nil
	}
	prev := c.conn.Transition(state.Connecting)
	if err := c.proxy.Update(ctx, Flags{}); err != nil {
		c.conn.Transition(prev)
		c.notify.Notify(LevelError, "Disconnect failed: "+err.Error())
		return err
	}
	c.conn.Transition(state.Disconnected)
	c.log.Info("disconnected")
	return nil
}

// ChangeMode stores mode as the preference. While connected it re-derives
// the flags for the new mode, or disconnects and runs the install-first
// connect when the mode needs a service that is missing.
func (c *Controller) ChangeMode(ctx context.Context, mode client.Mode) error {
	if _, err := client.ParseMode(string(mode)); err != nil {
		return err
	}
	if !c.begin() {
		return ErrMutationPending
	}
	defer c.end()

	echoed, err := c.backend.SetConnectionMode(ctx, mode)
	if err != nil {
		c.notify.Notify(LevelError, "Could not change mode: "+err.Error())
		return fmt.Errorf("set connection mode: %w", err)
	}
	if echoed != "" {
		mode = echoed
	}
	c.mu.Lock()
	c.mode = mode
	c.mu.Unlock()
	if c.store != nil {
		if err := c.store.Update(func(s *uistate.State) { s.ModeTab = string(mode) }); err != nil {
			c.log.WithError(err).Warn("persist mode tab")
		}
	}
	log := c.log.WithField("mode", mode)

	if c.conn.Read() == state.Connected {
		if mode.NeedsService() && !c.service.Available() {
			log.Info("mode needs service, disconnecting before install")
			if err := c.backend.Disconnect(ctx); err != nil {
				c.notify.Notify(LevelError, "Disconnect failed: "+err.Error())
				return fmt.Errorf("disconnect: %w", err)
			}
			c.proxy.Verge().Swap(func(cfg client.VergeConfig) client.VergeConfig {
				cfg.EnableSystemProxy, cfg.EnableTunMode = false, false
				return cfg
			})
			c.conn.Transition(state.Disconnected)
			return c.connect(ctx)
		}

		on := c.proxy.Flags().Any()
		target := Flags{
			SystemProxy: mode == client.ModeCombine || (mode == client.ModeSystem && on),
			Tun:         mode.NeedsService() && on,
		}
		prev := c.conn.Transition(state.Connecting)
		if err := c.proxy.Update(ctx, target); err != nil {
			c.conn.Transition(prev)
			c.notify.Notify(LevelError, "Could not apply mode: "+err.Error())
			return err
		}
		c.conn.Transition(StateFor(target))
		log.Info("mode applied while connected")
	}

	if mode.NeedsService() {
		if _, err := c.service.Refresh(ctx); err != nil {
			log.WithError(err).Warn("running mode refresh failed")
		}
	}
	return nil
}

// HandleEvent applies a backend push event. It reports whether the event
// concerned the controller.
func (c *Controller) HandleEvent(ctx context.Context, ev any) bool {
	switch ev := ev.(type) {
	case client.ConnectionStateEvent:
		c.log.WithFields(logrus.Fields{"event": client.EventConnectionState, "state": ev.State}).Info("backend state")
		c.conn.Transition(ev.State)
		return true
	case client.ConnectionModeEvent:
		m, err := c.backend.ConnectionMode(ctx)
		if err != nil {
			c.log.WithError(err).Warn("re-read connection mode")
			return true
		}
		c.mu.Lock()
		c.mode = m
		c.mu.Unlock()
		return true
	case client.VergeRefreshEvent:
		f, err := c.proxy.Refresh(ctx)
		if err != nil {
			c.log.WithError(err).Warn("re-read verge config")
			return true
		}
		c.mu.Lock()
		busy := c.busy
		c.mu.Unlock()
		if !busy {
			c.conn.Transition(StateFor(f))
		}
		return true
	}
	return false
}
