// Package connection holds the connect/disconnect decision logic: the proxy
// flag mutation, the controller that turns a toggle or mode change into flag
// updates, the privileged service installation flow and proxy selection.
package connection

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/spy-duck/duck-tui/client"
	"github.com/spy-duck/duck-tui/query"
	"github.com/spy-duck/duck-tui/state"
)

// VergeBackend reads and patches the persisted application config.
type VergeBackend interface {
	VergeConfig(ctx context.Context) (client.VergeConfig, error)
	PatchVergeConfig(ctx context.Context, patch client.VergePatch) error
}

// Flags are the two persisted proxy switches.
type Flags struct {
	SystemProxy bool
	Tun         bool
}

// Any reports whether traffic is routed through the core at all.
func (f Flags) Any() bool { return f.SystemProxy || f.Tun }

// FlagPatch changes the flags that are non-nil and leaves the rest alone.
type FlagPatch struct {
	SystemProxy *bool
	Tun         *bool
}

// Patch returns a FlagPatch setting both flags to f.
func (f Flags) Patch() FlagPatch {
	return FlagPatch{SystemProxy: client.Bool(f.SystemProxy), Tun: client.Bool(f.Tun)}
}

func (fp FlagPatch) verge() client.VergePatch {
	return client.VergePatch{EnableSystemProxy: fp.SystemProxy, EnableTunMode: fp.Tun}
}

func (fp FlagPatch) fields() logrus.Fields {
	out := logrus.Fields{}
	if fp.SystemProxy != nil {
		out["system_proxy"] = *fp.SystemProxy
	}
	if fp.Tun != nil {
		out["tun"] = *fp.Tun
	}
	return out
}

// FlagsFor returns the flags a fresh connect in mode should set.
func FlagsFor(mode client.Mode) Flags {
	switch mode {
	case client.ModeTun:
		return Flags{Tun: true}
	case client.ModeCombine:
		return Flags{SystemProxy: true, Tun: true}
	default:
		return Flags{SystemProxy: true}
	}
}

// StateFor is the connection state implied by settled flags.
func StateFor(f Flags) state.ConnectionState {
	if f.Any() {
		return state.Connected
	}
	return state.Disconnected
}

func flagsOf(cfg client.VergeConfig) Flags {
	return Flags{SystemProxy: cfg.EnableSystemProxy, Tun: cfg.EnableTunMode}
}

// ProxyState owns the cached application config and mutates the proxy flags
// optimistically: the cache changes first, the backend is patched second and
// the cache is restored if the patch fails.
type ProxyState struct {
	backend  VergeBackend
	verge    *query.Query[client.VergeConfig]
	interval time.Duration
	pending  atomic.Int32
	log      logrus.FieldLogger
}

// NewProxyState returns a ProxyState whose updates take at least interval
// (rounded up to a multiple of it). A zero interval disables pacing.
func NewProxyState(b VergeBackend, interval time.Duration, log logrus.FieldLogger) *ProxyState {
	return &ProxyState{
		backend:  b,
		verge:    query.New(b.VergeConfig),
		interval: interval,
		log:      log.WithField("component", "proxy-state"),
	}
}

// Verge exposes the shared config cache to other optimistic callers.
func (p *ProxyState) Verge() *query.Query[client.VergeConfig] { return p.verge }

// Flags returns the cached flags without I/O.
func (p *ProxyState) Flags() Flags {
	cfg, _ := p.verge.Peek()
	return flagsOf(cfg)
}

// Refresh re-reads the config from the backend.
func (p *ProxyState) Refresh(ctx context.Context) (Flags, error) {
	cfg, err := p.verge.Refetch(ctx)
	if err != nil {
		return p.Flags(), err
	}
	return flagsOf(cfg), nil
}

// Pending reports whether an Update is in flight.
func (p *ProxyState) Pending() bool { return p.pending.Load() > 0 }

// Update sets both flags. It returns the backend error after restoring the
// cached config.
func (p *ProxyState) Update(ctx context.Context, f Flags) error {
	return p.Patch(ctx, f.Patch())
}

// Patch sets the flags fp names. A patch naming neither flag makes no
// backend call.
func (p *ProxyState) Patch(ctx context.Context, fp FlagPatch) error {
	if fp.SystemProxy == nil && fp.Tun == nil {
		return nil
	}
	p.pending.Add(1)
	defer p.pending.Add(-1)

	vp := fp.verge()
	mutate := func(ctx context.Context) error {
		return query.Mutate(ctx, p.verge, vp.Apply,
			func(ctx context.Context, _ client.VergeConfig) error {
				return p.backend.PatchVergeConfig(ctx, vp)
			},
		)
	}

	var err error
	if p.interval > 0 {
		err = query.PaceErr(ctx, p.interval, mutate)
	} else {
		err = mutate(ctx)
	}
	if err != nil {
		p.log.WithError(err).WithFields(fp.fields()).Warn("flag update failed, cache restored")
		return err
	}
	p.log.WithFields(fp.fields()).Debug("flags updated")
	return nil
}
