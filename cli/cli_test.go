package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spy-duck/duck-tui/client"
	"github.com/spy-duck/duck-tui/connection"
	"github.com/spy-duck/duck-tui/state"
)

// ---------------------------------------------------------------------------
// status
// ---------------------------------------------------------------------------

func TestPrintStatus(t *testing.T) {
	var buf bytes.Buffer
	snap := connection.Snapshot{
		State:            state.Connected,
		Mode:             client.ModeTun,
		ServiceAvailable: true,
		RunningMode:      client.RunningService,
	}
	profiles := client.Profiles{
		Current: "p1",
		Items: []client.Profile{{
			UID: "p1", Name: "Duck Premium",
			Extra: &client.SubscriptionExtra{Upload: 512, Download: 512, Total: 2048, Expire: 1},
		}},
	}
	printStatus(&buf, snap, connection.Selection{Group: "Auto", Proxy: "de-1"}, profiles)
	out := buf.String()

	for _, want := range []string{
		"State:        connected",
		"Mode:         tun",
		"installed (core: Service)",
		"Auto / de-1",
		"Duck Premium",
		"(expired)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("want %q in output:\n%s", want, out)
		}
	}
}

func TestPrintStatus_NoSubscription(t *testing.T) {
	var buf bytes.Buffer
	printStatus(&buf, connection.Snapshot{}, connection.Selection{}, client.Profiles{})
	out := buf.String()
	if !strings.Contains(out, "Subscription: none") {
		t.Errorf("got:\n%s", out)
	}
	if !strings.Contains(out, "not installed") {
		t.Errorf("want service not installed, got:\n%s", out)
	}
	if strings.Contains(out, "Proxy:") {
		t.Errorf("proxy row without a selection:\n%s", out)
	}
}

// ---------------------------------------------------------------------------
// proxy
// ---------------------------------------------------------------------------

func TestPrintProxies_MarksSelection(t *testing.T) {
	groups := []client.ProxyGroup{
		{Name: "Auto", Type: "Selector", Now: "de-1", All: []client.Proxy{{Name: "de-1"}, {Name: "nl-1"}}},
		{Name: "Media", Type: "URLTest", Now: "us-1", All: []client.Proxy{{Name: "us-1"}, {Name: "uk-1"}}},
	}
	var buf bytes.Buffer
	printProxies(&buf, groups, connection.Selection{Group: "Auto", Proxy: "nl-1"})
	want := "Auto (selector)\n" +
		"    de-1\n" +
		"  * nl-1\n" +
		"Media (urltest)\n" +
		"  * us-1\n" +
		"    uk-1\n"
	if got := buf.String(); got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

// ---------------------------------------------------------------------------
// notices
// ---------------------------------------------------------------------------

func TestStderrNotifier(t *testing.T) {
	var buf bytes.Buffer
	stderrNotifier(&buf).Notify(connection.LevelWarning, "Service is not ready")
	if got := buf.String(); got != "warning: Service is not ready\n" {
		t.Errorf("got %q", got)
	}
}
