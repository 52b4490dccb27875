package client

import "fmt"

// Mode is the user-chosen connection mode.
type Mode string

const (
	ModeSystem  Mode = "system"
	ModeTun     Mode = "tun"
	ModeCombine Mode = "combine"
)

// Modes lists every mode in display order.
var Modes = []Mode{ModeTun, ModeSystem, ModeCombine}

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeSystem, ModeTun, ModeCombine:
		return m, nil
	}
	return "", fmt.Errorf("unknown connection mode %q", s)
}

// NeedsService reports whether the mode routes traffic through the tun
// device, which requires the privileged service.
func (m Mode) NeedsService() bool {
	return m == ModeTun || m == ModeCombine
}

// RunningMode is how the proxy core is currently hosted.
type RunningMode string

const (
	RunningService    RunningMode = "Service"
	RunningSidecar    RunningMode = "Sidecar"
	RunningNotRunning RunningMode = "NotRunning"
)

// VergeConfig is the subset of the application configuration the client
// reads. Unknown fields are preserved by the backend.
type VergeConfig struct {
	EnableSystemProxy  bool   `json:"enable_system_proxy"`
	EnableTunMode      bool   `json:"enable_tun_mode"`
	EnableAutoLaunch   bool   `json:"enable_auto_launch"`
	VergeMixedPort     int    `json:"verge_mixed_port,omitempty"`
	VergeSocksPort     int    `json:"verge_socks_port,omitempty"`
	VergeSocksEnabled  bool   `json:"verge_socks_enabled"`
	VergePort          int    `json:"verge_port,omitempty"`
	VergeHTTPEnabled   bool   `json:"verge_http_enabled"`
	VergeRedirPort     int    `json:"verge_redir_port,omitempty"`
	VergeRedirEnabled  bool   `json:"verge_redir_enabled"`
	VergeTProxyPort    int    `json:"verge_tproxy_port,omitempty"`
	VergeTProxyEnabled bool   `json:"verge_tproxy_enabled"`
	Language           string `json:"language,omitempty"`
}

// VergePatch is a partial VergeConfig. Nil fields are left untouched.
type VergePatch struct {
	EnableSystemProxy  *bool `json:"enable_system_proxy,omitempty"`
	EnableTunMode      *bool `json:"enable_tun_mode,omitempty"`
	EnableAutoLaunch   *bool `json:"enable_auto_launch,omitempty"`
	VergeMixedPort     *int  `json:"verge_mixed_port,omitempty"`
	VergeSocksPort     *int  `json:"verge_socks_port,omitempty"`
	VergeSocksEnabled  *bool `json:"verge_socks_enabled,omitempty"`
	VergePort          *int  `json:"verge_port,omitempty"`
	VergeHTTPEnabled   *bool `json:"verge_http_enabled,omitempty"`
	VergeRedirPort     *int  `json:"verge_redir_port,omitempty"`
	VergeRedirEnabled  *bool `json:"verge_redir_enabled,omitempty"`
	VergeTProxyPort    *int  `json:"verge_tproxy_port,omitempty"`
	VergeTProxyEnabled *bool `json:"verge_tproxy_enabled,omitempty"`
}

// Apply merges the non-nil fields of p into cfg and returns the result.
func (p VergePatch) Apply(cfg VergeConfig) VergeConfig {
	setB := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	setI := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	setB(&cfg.EnableSystemProxy, p.EnableSystemProxy)
	setB(&cfg.EnableTunMode, p.EnableTunMode)
	setB(&cfg.EnableAutoLaunch, p.EnableAutoLaunch)
	setI(&cfg.VergeMixedPort, p.VergeMixedPort)
	setI(&cfg.VergeSocksPort, p.VergeSocksPort)
	setB(&cfg.VergeSocksEnabled, p.VergeSocksEnabled)
	setI(&cfg.VergePort, p.VergePort)
	setB(&cfg.VergeHTTPEnabled, p.VergeHTTPEnabled)
	setI(&cfg.VergeRedirPort, p.VergeRedirPort)
	setB(&cfg.VergeRedirEnabled, p.VergeRedirEnabled)
	setI(&cfg.VergeTProxyPort, p.VergeTProxyPort)
	setB(&cfg.VergeTProxyEnabled, p.VergeTProxyEnabled)
	return cfg
}

// Bool and Int return pointers for building patches.
func Bool(v bool) *bool { return &v }
func Int(v int) *int { return &v }

// ClashInfo describes how to reach the core's controller.
type ClashInfo struct {
	MixedPort int    `json:"mixed_port"`
	SocksPort int    `json:"socks_port"`
	Port      int    `json:"port"`
	Server    string `json:"server"`
	Secret    string `json:"secret,omitempty"`
}

// Proxy is one selectable endpoint.
type Proxy struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Type  string `json:"type"`
	Alive bool   `json:"alive"`
	UDP   bool   `json:"udp"`
}

// ProxyGroup is a selector over proxies.
type ProxyGroup struct {
	Name   string  `json:"name"`
	Type   string  `json:"type"`
	Now    string  `json:"now"`
	Hidden bool    `json:"hidden"`
	Alive  bool    `json:"alive"`
	All    []Proxy `json:"all"`
}

// Proxies is the result of get_proxies.
type Proxies struct {
	Groups []ProxyGroup `json:"groups"`
}

// Visible returns the groups that are not marked hidden.
func (p Proxies) Visible() []ProxyGroup {
	out := make([]ProxyGroup, 0, len(p.Groups))
	for _, g := range p.Groups {
		if !g.Hidden {
			out = append(out, g)
		}
	}
	return out
}

// SubscriptionExtra carries subscription-userinfo values.
type SubscriptionExtra struct {
	Upload   int64 `json:"upload"`
	Download int64 `json:"download"`
	Total    int64 `json:"total"`
	Expire   int64 `json:"expire"`
}

// Profile is one imported subscription.
type Profile struct {
	UID     string             `json:"uid"`
	Type    string             `json:"type,omitempty"`
	Name    string             `json:"name,omitempty"`
	URL     string             `json:"url,omitempty"`
	Updated int64              `json:"updated,omitempty"`
	Extra   *SubscriptionExtra `json:"extra,omitempty"`
}

// Profiles is the result of get_profiles.
type Profiles struct {
	Current string    `json:"current,omitempty"`
	Items   []Profile `json:"items"`
}

// CurrentProfile returns the active profile, if any.
func (p Profiles) CurrentProfile() (Profile, bool) {
	for _, it := range p.Items {
		if it.UID == p.Current && it.UID != "" {
			return it, true
		}
	}
	return Profile{}, false
}

// Remote returns the most recently updated remote profile.
func (p Profiles) Remote() (Profile, bool) {
	var best Profile
	found := false
	for _, it := range p.Items {
		if it.Type != "remote" {
			continue
		}
		if !found || it.Updated > best.Updated {
			best, found = it, true
		}
	}
	return best, found
}

// ImportOption tweaks how a subscription is downloaded.
type ImportOption struct {
	WithProxy bool `json:"with_proxy"`
	SelfProxy bool `json:"self_proxy"`
}

// UIStage is a startup handshake stage reported by the front-end.
type UIStage string

const (
	StageLoading         UIStage = "Loading"
	StageDomReady        UIStage = "DomReady"
	StageResourcesLoaded UIStage = "ResourcesLoaded"
)

// TrafficSample is one reading of the core's throughput, in bytes/s.
type TrafficSample struct {
	Up   int64 `json:"up"`
	Down int64 `json:"down"`
}
