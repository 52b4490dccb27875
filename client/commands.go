package client

import "context"

// -- Connection ---------------------------------------------------------------

func (c *Client) ConnectionMode(ctx context.Context) (Mode, error) {
	var m Mode
	err := c.Invoke(ctx, "get_connection_mode", nil, &m)
	return m, err
}

// SetConnectionMode stores the mode preference and returns the mode the
// backend echoed back.
func (c *Client) SetConnectionMode(ctx context.Context, mode Mode) (Mode, error) {
	var m Mode
	err := c.Invoke(ctx, "set_connection_mode", map[string]any{"mode": mode}, &m)
	return m, err
}

func (c *Client) ToggleConnection(ctx context.Context) error {
	return c.Invoke(ctx, "toggle_connection", nil, nil)
}

func (c *Client) Disconnect(ctx context.Context) error {
	return c.Invoke(ctx, "disconnect", nil, nil)
}

func (c *Client) SetCurrentProxy(ctx context.Context, group, proxy string) error {
	return c.Invoke(ctx, "set_current_proxy", map[string]any{"group": group, "proxy": proxy}, nil)
}

// -- Configuration ------------------------------------------------------------

func (c *Client) VergeConfig(ctx context.Context) (VergeConfig, error) {
	var cfg VergeConfig
	err := c.Invoke(ctx, "get_verge_config", nil, &cfg)
	return cfg, err
}

func (c *Client) PatchVergeConfig(ctx context.Context, patch VergePatch) error {
	return c.Invoke(ctx, "patch_verge_config", map[string]any{"payload": patch}, nil)
}

func (c *Client) ClashInfo(ctx context.Context) (ClashInfo, error) {
	var info ClashInfo
	err := c.Invoke(ctx, "get_clash_info", nil, &info)
	return info, err
}

// ClashConfig returns the raw runtime configuration of the core.
func (c *Client) ClashConfig(ctx context.Context) (map[string]any, error) {
	var cfg map[string]any
	err := c.Invoke(ctx, "get_runtime_config", nil, &cfg)
	return cfg, err
}

func (c *Client) PatchClashConfig(ctx context.Context, payload map[string]any) error {
	return c.Invoke(ctx, "patch_clash_config", map[string]any{"payload": payload}, nil)
}

// -- Service and core ---------------------------------------------------------

func (c *Client) RunningMode(ctx context.Context) (RunningMode, error) {
	var m RunningMode
	err := c.Invoke(ctx, "get_running_mode", nil, &m)
	return m, err
}

func (c *Client) IsServiceAvailable(ctx context.Context) (bool, error) {
	var ok bool
	err := c.Invoke(ctx, "is_service_available", nil, &ok)
	return ok, err
}

func (c *Client) InstallService(ctx context.Context) error {
	return c.Invoke(ctx, "install_service", nil, nil)
}

func (c *Client) UninstallService(ctx context.Context) error {
	return c.Invoke(ctx, "uninstall_service", nil, nil)
}

func (c *Client) RestartCore(ctx context.Context) error {
	return c.Invoke(ctx, "restart_core", nil, nil)
}

func (c *Client) StopCore(ctx context.Context) error {
	return c.Invoke(ctx, "stop_core", nil, nil)
}

// -- Proxies and profiles -----------------------------------------------------

func (c *Client) Proxies(ctx context.Context) (Proxies, error) {
	var p Proxies
	err := c.Invoke(ctx, "get_proxies", nil, &p)
	return p, err
}

func (c *Client) ForceUpdateProxies(ctx context.Context) error {
	return c.Invoke(ctx, "force_refresh_proxies", nil, nil)
}

func (c *Client) Profiles(ctx context.Context) (Profiles, error) {
	var p Profiles
	err := c.Invoke(ctx, "get_profiles", nil, &p)
	return p, err
}

// ImportProfile downloads a subscription. opt may be nil.
func (c *Client) ImportProfile(ctx context.Context, url string, opt *ImportOption) error {
	args := map[string]any{"url": url}
	if opt != nil {
		args["option"] = opt
	}
	return c.Invoke(ctx, "import_profile", args, nil)
}

func (c *Client) EnhanceProfiles(ctx context.Context) error {
	return c.Invoke(ctx, "enhance_profiles", nil, nil)
}

// PatchProfilesConfig activates the profile with uid current.
func (c *Client) PatchProfilesConfig(ctx context.Context, current string) error {
	return c.Invoke(ctx, "patch_profiles_config", map[string]any{"profiles": Profiles{Current: current}}, nil)
}

func (c *Client) UpdateProfile(ctx context.Context, uid string) error {
	return c.Invoke(ctx, "update_profile", map[string]any{"index": uid}, nil)
}

func (c *Client) DeleteProfile(ctx context.Context, uid string) error {
	return c.Invoke(ctx, "delete_profile", map[string]any{"index": uid}, nil)
}

// -- System -------------------------------------------------------------------

// SystemInfo returns the backend's multi-line system description
// ("System Name: ...\nSystem Version: ...").
func (c *Client) SystemInfo(ctx context.Context) (string, error) {
	var s string
	err := c.Invoke(ctx, "get_system_info", nil, &s)
	return s, err
}

func (c *Client) SystemHostname(ctx context.Context) (string, error) {
	var s string
	err := c.Invoke(ctx, "get_system_hostname", nil, &s)
	return s, err
}

func (c *Client) OpenWebURL(ctx context.Context, url string) error {
	return c.Invoke(ctx, "open_web_url", map[string]any{"url": url}, nil)
}

func (c *Client) UpdateUIStage(ctx context.Context, stage UIStage) error {
	return c.Invoke(ctx, "update_ui_stage", map[string]any{"stage": stage}, nil)
}

func (c *Client) NotifyUIReady(ctx context.Context) error {
	return c.Invoke(ctx, "notify_ui_ready", nil, nil)
}

func (c *Client) UpdateGeoData(ctx context.Context) error {
	return c.Invoke(ctx, "update_geo_data", nil, nil)
}

func (c *Client) ExitApp(ctx context.Context) error {
	return c.Invoke(ctx, "exit_app", nil, nil)
}
