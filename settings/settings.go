// Package settings holds the port form, the autostart switch and the
// maintenance actions of the settings screen.
package settings

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/spy-duck/duck-tui/client"
	"github.com/spy-duck/duck-tui/connection"
	"github.com/spy-duck/duck-tui/query"
)

// Backend is the part of the bridge the settings screen talks to.
type Backend interface {
	PatchClashConfig(ctx context.Context, payload map[string]any) error
	PatchVergeConfig(ctx context.Context, patch client.VergePatch) error
	RestartCore(ctx context.Context) error
	UpdateGeoData(ctx context.Context) error
	ExitApp(ctx context.Context) error
}

// Settings runs settings actions and reports their outcome as notices.
type Settings struct {
	backend Backend
	proxy   *connection.ProxyState
	service *connection.ServiceFlow
	notify  connection.Notifier
	log     logrus.FieldLogger
}

func New(b Backend, proxy *connection.ProxyState, service *connection.ServiceFlow, notify connection.Notifier, log logrus.FieldLogger) *Settings {
	if notify == nil {
		notify = connection.Discard
	}
	return &Settings{
		backend: b,
		proxy:   proxy,
		service: service,
		notify:  notify,
		log:     log.WithField("component", "settings"),
	}
}

// Field names used as ValidationErrors keys.
const (
	FieldMixed  = "mixed_port"
	FieldSocks  = "socks_port"
	FieldHTTP   = "http_port"
	FieldRedir  = "redir_port"
	FieldTProxy = "tproxy_port"
)

// Ports is the port form.
type Ports struct {
	Mixed         int
	Socks         int
	SocksEnabled  bool
	HTTP          int
	HTTPEnabled   bool
	Redir         int
	RedirEnabled  bool
	TProxy        int
	TProxyEnabled bool
}

// DefaultPorts are used for fields the backend has never set.
var DefaultPorts = Ports{Mixed: 7897, Socks: 7898, HTTP: 7899, Redir: 7895, TProxy: 7896}

// PortsFrom fills the form from the application config, falling back to the
// core's mixed port and then to DefaultPorts.
func PortsFrom(cfg client.VergeConfig, info client.ClashInfo) Ports {
	p := DefaultPorts
	or := func(dst *int, v int) {
		if v != 0 {
			*dst = v
		}
	}
	or(&p.Mixed, info.MixedPort)
	or(&p.Mixed, cfg.VergeMixedPort)
	or(&p.Socks, cfg.VergeSocksPort)
	or(&p.HTTP, cfg.VergePort)
	or(&p.Redir, cfg.VergeRedirPort)
	or(&p.TProxy, cfg.VergeTProxyPort)
	p.SocksEnabled = cfg.VergeSocksEnabled
	p.HTTPEnabled = cfg.VergeHTTPEnabled
	p.RedirEnabled = cfg.VergeRedirEnabled
	p.TProxyEnabled = cfg.VergeTProxyEnabled
	return p
}

// ValidationErrors maps a field name to its message.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + v[k]
	}
	return "invalid ports: " + strings.Join(parts, ", ")
}

const msgUnique = "Port must be unique"

// Validate checks ranges and that the mixed port and every enabled port
// differ. Both fields of a colliding pair are reported.
func (p Ports) Validate() error {
	errs := ValidationErrors{}
	type field struct {
		name string
		port int
		on   bool
	}
	fields := []field{
		{FieldMixed, p.Mixed, true},
		{FieldSocks, p.Socks, p.SocksEnabled},
		{FieldHTTP, p.HTTP, p.HTTPEnabled},
		{FieldRedir, p.Redir, p.RedirEnabled},
		{FieldTProxy, p.TProxy, p.TProxyEnabled},
	}
	for _, f := range fields {
		if f.port < 0 || f.port > 65535 {
			errs[f.name] = "Port must be between 0 and 65535"
		}
	}
	for i, a := range fields {
		if !a.on {
			continue
		}
		for _, b := range fields[i+1:] {
			if b.on && a.port == b.port {
				errs[a.name] = msgUnique
				errs[b.name] = msgUnique
			}
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (p Ports) clashPayload() map[string]any {
	return map[string]any{
		"mixed-port":  p.Mixed,
		"socks-port":  p.Socks,
		"port":        p.HTTP,
		"redir-port":  p.Redir,
		"tproxy-port": p.TProxy,
	}
}

func (p Ports) vergePatch() client.VergePatch {
	return client.VergePatch{
		VergeMixedPort:     client.Int(p.Mixed),
		VergeSocksPort:     client.Int(p.Socks),
		VergeSocksEnabled:  client.Bool(p.SocksEnabled),
		VergePort:          client.Int(p.HTTP),
		VergeHTTPEnabled:   client.Bool(p.HTTPEnabled),
		VergeRedirPort:     client.Int(p.Redir),
		VergeRedirEnabled:  client.Bool(p.RedirEnabled),
		VergeTProxyPort:    client.Int(p.TProxy),
		VergeTProxyEnabled: client.Bool(p.TProxyEnabled),
	}
}

// SavePorts validates p and patches the core and the application config
// concurrently. Validation errors never reach the backend.
func (s *Settings) SavePorts(ctx context.Context, p Ports) error {
	if err := p.Validate(); err != nil {
		return err
	}
	patch := p.vergePatch()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.backend.PatchClashConfig(gctx, p.clashPayload()); err != nil {
			return fmt.Errorf("patch clash config: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := s.backend.PatchVergeConfig(gctx, patch); err != nil {
			return fmt.Errorf("patch verge config: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		s.log.WithError(err).Warn("save ports")
		s.notify.Notify(connection.LevelError, "Failed to save settings")
		return err
	}
	s.proxy.Verge().Swap(patch.Apply)
	s.notify.Notify(connection.LevelSuccess, "Port settings saved")
	return nil
}

// Autostart reports the cached autostart flag.
func (s *Settings) Autostart() bool {
	cfg, _ := s.proxy.Verge().Peek()
	return cfg.EnableAutoLaunch
}

// SetAutostart flips autostart optimistically and restores the cached value
// when the backend rejects it.
func (s *Settings) SetAutostart(ctx context.Context, on bool) error {
	err := query.Mutate(ctx, s.proxy.Verge(),
		func(cfg client.VergeConfig) client.VergeConfig {
			cfg.EnableAutoLaunch = on
			return cfg
		},
		func(ctx context.Context, _ client.VergeConfig) error {
			return s.backend.PatchVergeConfig(ctx, client.VergePatch{EnableAutoLaunch: client.Bool(on)})
		},
	)
	if err != nil {
		s.log.WithError(err).WithField("autostart", on).Warn("autostart change rolled back")
		s.notify.Notify(connection.LevelError, err.Error())
		return err
	}
	return nil
}

// RestartCore restarts the proxy core.
func (s *Settings) RestartCore(ctx context.Context) error {
	return s.run(ctx, "restart core", "Core restarted", s.backend.RestartCore)
}

// UpdateGeoData refreshes the geo databases.
func (s *Settings) UpdateGeoData(ctx context.Context) error {
	return s.run(ctx, "update geo data", "GeoData updated", s.backend.UpdateGeoData)
}

// UninstallService removes the helper service.
func (s *Settings) UninstallService(ctx context.Context) error {
	return s.service.Uninstall(ctx)
}

// ExitApp asks the backend to quit.
func (s *Settings) ExitApp(ctx context.Context) error {
	return s.backend.ExitApp(ctx)
}

func (s *Settings) run(ctx context.Context, what, success string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		s.log.WithError(err).Warn(what)
		s.notify.Notify(connection.LevelError, err.Error())
		return fmt.Errorf("%s: %w", what, err)
	}
	s.log.Info(what)
	s.notify.Notify(connection.LevelSuccess, success)
	return nil
}
