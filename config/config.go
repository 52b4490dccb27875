package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds persistent client settings stored at <profileDir>/config.yaml.
type Config struct {
	BridgeURL            string        `yaml:"bridge_url"`
	APIURL               string        `yaml:"api_url"`
	BotURL               string        `yaml:"bot_url"`
	IPInfoURL            string        `yaml:"ip_info_url"`
	ServerMessageSources []string      `yaml:"server_message_sources"`
	CORSOrigins          []string      `yaml:"cors_origins,omitempty"`
	Theme                string        `yaml:"theme"`
	MinMutationLatency   time.Duration `yaml:"min_mutation_latency"`
	ToggleLatency        time.Duration `yaml:"toggle_latency"`
	ServicePollInterval  time.Duration `yaml:"service_poll_interval"`
	ServiceReadyTimeout  time.Duration `yaml:"service_ready_timeout"`
	ServiceReadyAttempts int           `yaml:"service_ready_attempts"`
	AuthPollAttempts     int           `yaml:"auth_poll_attempts"`
	AuthPollDelay        time.Duration `yaml:"auth_poll_delay"`
	IPRefreshInterval    time.Duration `yaml:"ip_refresh_interval"`
}

const filename = "config.yaml"

// Environment overrides, applied after the file.
const (
	EnvBridgeURL = "DUCK_BRIDGE_URL"
	EnvAPIURL    = "DUCK_API_URL"
	EnvProfile   = "DUCK_PROFILE"
)

// ProfileDir returns ~/.duck, or ~/.duck/profiles/<profile> for a named
// profile.
func ProfileDir(profile string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	if profile == "" {
		return filepath.Join(home, ".duck")
	}
	return filepath.Join(home, ".duck", "profiles", profile)
}

// Load reads <profileDir>/config.yaml on top of the defaults and applies the
// environment overrides. A missing file is not an error; a malformed one is.
func Load(profileDir string) (Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(filepath.Join(profileDir, filename))
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Defaults().withEnv(), fmt.Errorf("parse %s: %w", filename, err)
		}
	}
	cfg.fill()
	return cfg.withEnv(), nil
}

// SetTheme stores theme in <profileDir>/config.yaml, creating the file and
// directory if needed. Only the theme key is touched: other keys and comments
// stay as written, and environment or flag overrides never reach the file.
// A malformed file is left alone and reported.
func SetTheme(profileDir, theme string) error {
	path := filepath.Join(profileDir, filename)
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read config: %w", err)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse %s: %w", filename, err)
	}
	root, err := mapping(&doc)
	if err != nil {
		return err
	}
	setScalar(root, "theme", theme)

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(profileDir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o644)
}

// mapping returns the top-level mapping of doc, turning an empty or null
// document into an empty mapping.
func mapping(doc *yaml.Node) (*yaml.Node, error) {
	empty := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		*doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{empty}}
		return empty, nil
	}
	root := doc.Content[0]
	switch {
	case root.Kind == yaml.MappingNode:
		return root, nil
	case root.Kind == yaml.ScalarNode && root.Tag == "!!null":
		doc.Content[0] = empty
		return empty, nil
	}
	return nil, fmt.Errorf("parse %s: top level is not a mapping", filename)
}

func setScalar(m *yaml.Node, key, value string) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			m.Content[i+1] = &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
			return
		}
	}
	m.Content = append(m.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value},
	)
}

func Defaults() Config {
	return Config{
		BridgeURL:            "http://127.0.0.1:33331",
		APIURL:               "https://spy-duck.com/api/desktop-app",
		BotURL:               "https://t.me/spy_duck_vpn_bot",
		IPInfoURL:            "https://api.ip.sb/geoip",
		ServerMessageSources: []string{"server-message"},
		CORSOrigins:          []string{"https://spy-duck.com"},
		Theme:                "dark",
		MinMutationLatency:   2 * time.Second,
		ToggleLatency:        4 * time.Second,
		ServicePollInterval:  time.Second,
		ServiceReadyTimeout:  90 * time.Second,
		ServiceReadyAttempts: 90,
		AuthPollAttempts:     90,
		AuthPollDelay:        2 * time.Second,
		IPRefreshInterval:    3 * time.Minute,
	}
}

// fill restores defaults for fields a file zeroed out.
func (c *Config) fill() {
	d := Defaults()
	str := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	dur := func(dst *time.Duration, def time.Duration) {
		if *dst <= 0 {
			*dst = def
		}
	}
	num := func(dst *int, def int) {
		if *dst <= 0 {
			*dst = def
		}
	}
	str(&c.BridgeURL, d.BridgeURL)
	str(&c.APIURL, d.APIURL)
	str(&c.BotURL, d.BotURL)
	str(&c.IPInfoURL, d.IPInfoURL)
	str(&c.Theme, d.Theme)
	if len(c.ServerMessageSources) == 0 {
		c.ServerMessageSources = d.ServerMessageSources
	}
	if len(c.CORSOrigins) == 0 {
		c.CORSOrigins = d.CORSOrigins
	}
	dur(&c.MinMutationLatency, d.MinMutationLatency)
	dur(&c.ToggleLatency, d.ToggleLatency)
	dur(&c.ServicePollInterval, d.ServicePollInterval)
	dur(&c.ServiceReadyTimeout, d.ServiceReadyTimeout)
	dur(&c.AuthPollDelay, d.AuthPollDelay)
	dur(&c.IPRefreshInterval, d.IPRefreshInterval)
	num(&c.ServiceReadyAttempts, d.ServiceReadyAttempts)
	num(&c.AuthPollAttempts, d.AuthPollAttempts)
}

func (c Config) withEnv() Config {
	if v := os.Getenv(EnvBridgeURL); v != "" {
		c.BridgeURL = v
	}
	if v := os.Getenv(EnvAPIURL); v != "" {
		c.APIURL = v
	}
	return c
}
