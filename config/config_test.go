package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv(EnvBridgeURL, "")
	t.Setenv(EnvAPIURL, "")
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	d := Defaults()
	if cfg.BridgeURL != d.BridgeURL || cfg.ToggleLatency != 4*time.Second || cfg.ServiceReadyAttempts != 90 {
		t.Errorf("unexpected config %+v", cfg)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	body := "bridge_url: unix:///run/duck.sock\ntoggle_latency: 1500ms\nservice_ready_attempts: 5\n"
	if err := os.WriteFile(filepath.Join(dir, filename), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvBridgeURL, "")
	t.Setenv(EnvAPIURL, "http://localhost:8090/api/desktop-app")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BridgeURL != "unix:///run/duck.sock" {
		t.Errorf("want bridge from file, got %s", cfg.BridgeURL)
	}
	if cfg.ToggleLatency != 1500*time.Millisecond {
		t.Errorf("want 1.5s, got %v", cfg.ToggleLatency)
	}
	if cfg.ServiceReadyAttempts != 5 {
		t.Errorf("want 5 attempts, got %d", cfg.ServiceReadyAttempts)
	}
	if cfg.APIURL != "http://localhost:8090/api/desktop-app" {
		t.Errorf("env should override api url, got %s", cfg.APIURL)
	}
	if cfg.MinMutationLatency != 2*time.Second {
		t.Errorf("missing field should keep default, got %v", cfg.MinMutationLatency)
	}

	t.Setenv(EnvBridgeURL, "http://127.0.0.1:9")
	cfg, _ = Load(dir)
	if cfg.BridgeURL != "http://127.0.0.1:9" {
		t.Errorf("env should override file, got %s", cfg.BridgeURL)
	}
}

func TestLoad_Malformed(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, filename), []byte("bridge_url: [unclosed"), 0o644)
	cfg, err := Load(dir)
	if err == nil {
		t.Fatal("want parse error")
	}
	if cfg.BridgeURL == "" {
		t.Error("defaults should still be returned")
	}
}

func TestSetTheme_CreatesFile(t *testing.T) {
	t.Setenv(EnvBridgeURL, "")
	t.Setenv(EnvAPIURL, "")
	dir := filepath.Join(t.TempDir(), "nested")
	if err := SetTheme(dir, "light"); err != nil {
		t.Fatalf("SetTheme: %v", err)
	}
	got, err := Load(dir)
	if err != nil || got.Theme != "light" {
		t.Errorf("want light theme, got %q (%v)", got.Theme, err)
	}
	if got.ToggleLatency != 4*time.Second {
		t.Errorf("other settings should keep defaults, got %v", got.ToggleLatency)
	}
}

func TestSetTheme_DoesNotPersistOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvBridgeURL, "http://10.0.0.9:1")
	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.BridgeURL != "http://10.0.0.9:1" {
		t.Fatalf("env override not applied: %s", cfg.BridgeURL)
	}
	if err := SetTheme(dir, "light"); err != nil {
		t.Fatalf("SetTheme: %v", err)
	}

	t.Setenv(EnvBridgeURL, "")
	got, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if want := Defaults().BridgeURL; got.BridgeURL != want {
		t.Errorf("bridge after env removed: want %s, got %s", want, got.BridgeURL)
	}
	if got.Theme != "light" {
		t.Errorf("want light theme, got %q", got.Theme)
	}
}

func TestSetTheme_KeepsOtherKeys(t *testing.T) {
	t.Setenv(EnvBridgeURL, "")
	dir := t.TempDir()
	src := "# local bridge\nbridge_url: http://127.0.0.1:4000\ntheme: dark\ntoggle_latency: 1s\n"
	os.WriteFile(filepath.Join(dir, filename), []byte(src), 0o644)

	if err := SetTheme(dir, "light"); err != nil {
		t.Fatalf("SetTheme: %v", err)
	}
	data, _ := os.ReadFile(filepath.Join(dir, filename))
	if !strings.Contains(string(data), "# local bridge") {
		t.Errorf("comment dropped:\n%s", data)
	}
	got, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if got.Theme != "light" || got.BridgeURL != "http://127.0.0.1:4000" || got.ToggleLatency != time.Second {
		t.Errorf("got theme=%q bridge=%s toggle=%v", got.Theme, got.BridgeURL, got.ToggleLatency)
	}
}

func TestSetTheme_MalformedFileUntouched(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, filename)
	src := []byte("bridge_url: [unclosed")
	os.WriteFile(path, src, 0o644)

	if err := SetTheme(dir, "light"); err == nil {
		t.Fatal("want parse error")
	}
	data, _ := os.ReadFile(path)
	if string(data) != string(src) {
		t.Errorf("file rewritten:\n%s", data)
	}
}

func TestProfileDir(t *testing.T) {
	if !strings.HasSuffix(ProfileDir(""), ".duck") {
		t.Errorf("unexpected default dir %s", ProfileDir(""))
	}
	if !strings.HasSuffix(ProfileDir("dev"), filepath.Join(".duck", "profiles", "dev")) {
		t.Errorf("unexpected profile dir %s", ProfileDir("dev"))
	}
}
