// Package auth signs the device in with the provider, imports the
// subscription that comes back and signs out again.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/spy-duck/duck-tui/client"
	"github.com/spy-duck/duck-tui/connection"
	"github.com/spy-duck/duck-tui/query"
	"github.com/spy-duck/duck-tui/state"
	"github.com/spy-duck/duck-tui/sysinfo"
	"github.com/spy-duck/duck-tui/uistate"
)

var (
	// ErrNoProfile is returned by Logout when no profile is active.
	ErrNoProfile = errors.New("no active profile")
	// ErrInvalidKey is returned for a subscription key that is not an
	// absolute http(s) URL.
	ErrInvalidKey = errors.New("subscription key must be a valid URL")
)

// Backend is the part of the bridge used for sign-in and sign-out.
type Backend interface {
	OpenWebURL(ctx context.Context, url string) error
	ImportProfile(ctx context.Context, url string, opt *client.ImportOption) error
	EnhanceProfiles(ctx context.Context) error
	Profiles(ctx context.Context) (client.Profiles, error)
	PatchProfilesConfig(ctx context.Context, current string) error
	DeleteProfile(ctx context.Context, uid string) error
	SystemInfo(ctx context.Context) (string, error)
	SystemHostname(ctx context.Context) (string, error)
}

// Remote is the provider API.
type Remote interface {
	Auth(ctx context.Context, req client.AuthRequest) (*client.AuthResult, error)
	AuthByKey(ctx context.Context, req client.KeyAuthRequest) (*client.AuthResult, error)
	SetToken(token string)
}

// Options configure the deep-link poll.
type Options struct {
	BotURL       string
	PollAttempts int
	PollDelay    time.Duration
}

// Deps wires a Flow.
type Deps struct {
	Backend Backend
	Remote  Remote
	Store   *uistate.Store
	Auth    *state.Authorization
	Conn    *state.Connection
	Proxy   *connection.ProxyState
	Notify  connection.Notifier
	Log     logrus.FieldLogger
}

// Flow runs the sign-in and sign-out sequences.
type Flow struct {
	backend Backend
	remote  Remote
	store   *uistate.Store
	auth    *state.Authorization
	conn    *state.Connection
	proxy   *connection.ProxyState
	notify  connection.Notifier
	log     logrus.FieldLogger
	opts    Options

	collect func(ctx context.Context) (sysinfo.Info, error)
}

func New(d Deps, opts Options) *Flow {
	notify := d.Notify
	if notify == nil {
		notify = connection.Discard
	}
	f := &Flow{
		backend: d.Backend,
		remote:  d.Remote,
		store:   d.Store,
		auth:    d.Auth,
		conn:    d.Conn,
		proxy:   d.Proxy,
		notify:  notify,
		log:     d.Log.WithField("component", "auth"),
		opts:    opts,
		collect: sysinfo.Collect,
	}
	if tok := d.Store.Get().AccessToken; tok != "" {
		d.Remote.SetToken(tok)
	}
	return f
}

// Session is a started deep-link sign-in.
type Session struct {
	Token string
	Link  string
}

// Start creates a one-time token and opens the bot deep link for it.
func (f *Flow) Start(ctx context.Context) *Session {
	token := uuid.NewString()
	s := &Session{Token: token, Link: f.DeepLink(token)}
	if err := f.backend.OpenWebURL(ctx, s.Link); err != nil {
		// The link is still shown to the user, so this is not fatal.
		f.log.WithError(err).Warn("open deep link")
	}
	f.log.Info("sign-in started")
	return s
}

// DeepLink builds the bot URL for token.
func (f *Flow) DeepLink(token string) string {
	return fmt.Sprintf("%s?start=desktop-auth-%s", f.opts.BotURL, token)
}

// Poll asks the provider whether the session was confirmed, retrying every
// PollDelay for PollAttempts retries.
func (f *Flow) Poll(ctx context.Context, s *Session) (*client.AuthResult, error) {
	dev, err := f.DeviceInfo(ctx)
	if err != nil {
		return nil, err
	}
	var res *client.AuthResult
	attempt := 0
	err = query.Retry(ctx, f.opts.PollAttempts, f.opts.PollDelay, func(ctx context.Context) error {
		attempt++
		r, err := f.remote.Auth(ctx, client.AuthRequest{AuthToken: s.Token, DeviceInfo: dev})
		if err != nil {
			f.log.WithError(err).WithField("attempt", attempt).Debug("auth not confirmed yet")
			return err
		}
		res = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ValidateKey checks a subscription key locally.
func ValidateKey(key string) error {
	u, err := url.Parse(key)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ErrInvalidKey
	}
	return nil
}

// ByKey signs in with a subscription key.
func (f *Flow) ByKey(ctx context.Context, key string) (*client.AuthResult, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	dev, err := f.DeviceInfo(ctx)
	if err != nil {
		return nil, err
	}
	return f.remote.AuthByKey(ctx, client.KeyAuthRequest{Key: key, DeviceInfo: dev})
}

// DeviceInfo combines the backend's system report with locally collected
// host facts and adds the hardware fingerprint.
func (f *Flow) DeviceInfo(ctx context.Context) (client.DeviceInfo, error) {
	var info sysinfo.Info
	if report, err := f.backend.SystemInfo(ctx); err == nil {
		info = sysinfo.ParseReport(report)
	} else {
		f.log.WithError(err).Debug("backend system info unavailable")
	}
	if host, err := f.backend.SystemHostname(ctx); err == nil {
		info.Hostname = host
	}
	if local, err := f.collect(ctx); err == nil {
		info = info.Merge(local)
	} else if info.Platform == "" {
		return client.DeviceInfo{}, fmt.Errorf("collect device info: %w", err)
	}
	return client.DeviceInfo{
		Platform:      info.Platform,
		SystemVersion: info.SystemVersion,
		KernelVersion: info.KernelVersion,
		Arch:          info.Arch,
		AppVersion:    info.AppVersion,
		HWID:          info.Fingerprint(),
	}, nil
}

// Complete stores the access token, imports and activates the subscription
// and marks the device as authorized.
func (f *Flow) Complete(ctx context.Context, res *client.AuthResult) error {
	if err := f.store.Update(func(s *uistate.State) { s.AccessToken = res.AccessToken }); err != nil {
		f.log.WithError(err).Warn("persist access token")
	}
	f.remote.SetToken(res.AccessToken)

	if err := f.importSubscription(ctx, res.Subscription); err != nil {
		f.notify.Notify(connection.LevelError, "Subscription import failed: "+err.Error())
		return err
	}
	if err := f.activate(ctx); err != nil {
		f.log.WithError(err).Warn("activate imported profile")
	}
	if err := f.auth.Set(true); err != nil {
		f.log.WithError(err).Warn("persist authorization")
	}
	f.log.Info("signed in")
	return nil
}

func (f *Flow) importSubscription(ctx context.Context, sub string) error {
	if err := f.backend.ImportProfile(ctx, sub, nil); err != nil {
		f.log.WithError(err).Warn("direct import failed, retrying through the core")
		if err := f.backend.ImportProfile(ctx, sub, &client.ImportOption{WithProxy: false, SelfProxy: true}); err != nil {
			return fmt.Errorf("import profile: %w", err)
		}
	}
	if err := f.backend.EnhanceProfiles(ctx); err != nil {
		f.notify.Notify(connection.LevelError, err.Error())
		return nil
	}
	f.notify.Notify(connection.LevelSuccess, "Profile imported")
	return nil
}

// activate makes the newest remote profile current.
func (f *Flow) activate(ctx context.Context) error {
	profiles, err := f.backend.Profiles(ctx)
	if err != nil {
		return err
	}
	p, ok := profiles.Remote()
	if !ok || p.UID == profiles.Current {
		return nil
	}
	return f.backend.PatchProfilesConfig(ctx, p.UID)
}

// Logout turns both proxy flags off, deletes the active profile and forgets
// the access token.
func (f *Flow) Logout(ctx context.Context) error {
	profiles, err := f.backend.Profiles(ctx)
	if err != nil {
		return fmt.Errorf("profiles: %w", err)
	}
	cur, ok := profiles.CurrentProfile()
	if !ok {
		return ErrNoProfile
	}
	if err := f.proxy.Update(ctx, connection.Flags{}); err != nil {
		return fmt.Errorf("disable proxy: %w", err)
	}
	f.conn.Transition(state.Disconnected)
	if err := f.backend.DeleteProfile(ctx, cur.UID); err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	if err := f.store.Update(func(s *uistate.State) { s.AccessToken = "" }); err != nil {
		f.log.WithError(err).Warn("clear access token")
	}
	f.remote.SetToken("")
	if err := f.auth.Set(false); err != nil {
		f.log.WithError(err).Warn("persist authorization")
	}
	f.log.Info("signed out")
	return nil
}
