package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/spy-duck/duck-tui/state"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

// ---------------------------------------------------------------------------
// Invoke
// ---------------------------------------------------------------------------

func TestInvoke_PostsArgsAndDecodesResult(t *testing.T) {
	var gotPath string
	var gotArgs map[string]any
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if r.Method != http.MethodPost {
			t.Errorf("want POST, got %s", r.Method)
		}
		json.NewDecoder(r.Body).Decode(&gotArgs)
		fmt.Fprint(w, `"tun"`)
	}))

	m, err := c.SetConnectionMode(context.Background(), ModeTun)
	if err != nil {
		t.Fatalf("SetConnectionMode: %v", err)
	}
	if m != ModeTun {
		t.Errorf("want echo tun, got %q", m)
	}
	if gotPath != "/invoke/set_connection_mode" {
		t.Errorf("want /invoke/set_connection_mode, got %s", gotPath)
	}
	if gotArgs["mode"] != "tun" {
		t.Errorf("want mode arg tun, got %v", gotArgs)
	}
}

func TestInvoke_NullResult(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "null")
	}))
	if err := c.ToggleConnection(context.Background()); err != nil {
		t.Errorf("want nil, got %v", err)
	}
}

func TestInvoke_APIError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":"core not running","code":"E_CORE","details":{"pid":0}}`)
	}))
	err := c.RestartCore(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("want *APIError, got %T %v", err, err)
	}
	if apiErr.Status != 500 || apiErr.Message != "core not running" || apiErr.Code != "E_CORE" {
		t.Errorf("unexpected error fields: %+v", apiErr)
	}
	if string(apiErr.Details) != `{"pid":0}` {
		t.Errorf("want details kept, got %s", apiErr.Details)
	}
}

func TestInvoke_PlainTextError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	err := c.Disconnect(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "nope" {
		t.Errorf("want APIError nope, got %v", err)
	}
}

func TestInvoke_BridgeUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c, err := New(base)
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.IsServiceAvailable(context.Background())
	if !errors.Is(err, ErrBridgeUnavailable) {
		t.Errorf("want ErrBridgeUnavailable, got %v", err)
	}
}

func TestNew_UnsupportedScheme(t *testing.T) {
	if _, err := New("ftp://host"); err == nil {
		t.Error("want error for ftp scheme")
	}
}

func TestNew_UnixSocket(t *testing.T) {
	dir, err := shortTempDir(t)
	if err != nil {
		t.Skip("no temp dir for socket:", err)
	}
	sock := filepath.Join(dir, "b.sock")
	ln, err := net.Listen("unix", sock)
	if err != nil {
		t.Skip("unix sockets unavailable:", err)
	}
	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `"Service"`)
	})}
	go srv.Serve(ln)
	t.Cleanup(func() { srv.Close() })

	c, err := New("unix://" + sock)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	m, err := c.RunningMode(context.Background())
	if err != nil {
		t.Fatalf("RunningMode: %v", err)
	}
	if m != RunningService {
		t.Errorf("want Service, got %q", m)
	}
}

// shortTempDir keeps socket paths under the platform length limit.
func shortTempDir(t *testing.T) (string, error) {
	dir, err := os.MkdirTemp("", "duck")
	if err != nil {
		return "", err
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir, nil
}

func TestPipeName(t *testing.T) {
	u, _ := url.Parse("npipe:////./pipe/duck-bridge")
	if got := pipeName(u); got != `\\.\pipe\duck-bridge` {
		t.Errorf(`want \\.\pipe\duck-bridge, got %s`, got)
	}
}

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

func TestVergePatch_ApplyOnlySetFields(t *testing.T) {
	cfg := VergeConfig{EnableSystemProxy: true, EnableTunMode: true, VergeMixedPort: 7897}
	got := VergePatch{EnableTunMode: Bool(false)}.Apply(cfg)
	if !got.EnableSystemProxy || got.EnableTunMode || got.VergeMixedPort != 7897 {
		t.Errorf("unexpected merge result %+v", got)
	}
}

func TestProxies_VisibleSkipsHidden(t *testing.T) {
	p := Proxies{Groups: []ProxyGroup{{Name: "GLOBAL", Hidden: true}, {Name: "Auto"}}}
	v := p.Visible()
	if len(v) != 1 || v[0].Name != "Auto" {
		t.Errorf("want [Auto], got %+v", v)
	}
}

func TestParseMode(t *testing.T) {
	for _, s := range []string{"system", "tun", "combine"} {
		if _, err := ParseMode(s); err != nil {
			t.Errorf("ParseMode(%q): %v", s, err)
		}
	}
	if _, err := ParseMode("direct"); err == nil {
		t.Error("want error for unknown mode")
	}
}

// ---------------------------------------------------------------------------
// Event stream
// ---------------------------------------------------------------------------

func TestParseEvent(t *testing.T) {
	cases := []struct {
		name string
		data string
		want any
	}{
		{EventConnectionState, `{"state":"connected"}`, ConnectionStateEvent{State: state.Connected}},
		{EventConnectionMode, ``, ConnectionModeEvent{}},
		{EventChangeProxy, `{"group":"Auto","proxy":"nl-1"}`, ProxyChangedEvent{Group: "Auto", Proxy: "nl-1"}},
		{EventRefreshVerge, `null`, VergeRefreshEvent{}},
		{EventStartupDone, ``, StartupCompletedEvent{}},
	}
	for _, c := range cases {
		if got := parseEvent(c.name, []byte(c.data)); got != c.want {
			t.Errorf("parseEvent(%s): want %#v, got %#v", c.name, c.want, got)
		}
	}
}

func TestParseEvent_Warnings(t *testing.T) {
	for _, c := range []struct{ name, data string }{
		{EventConnectionState, `{"state":"sleeping"}`},
		{EventConnectionState, `not json`},
		{"duck:unknown", `{}`},
	} {
		if _, ok := parseEvent(c.name, []byte(c.data)).(ParseWarning); !ok {
			t.Errorf("parseEvent(%s, %s): want ParseWarning", c.name, c.data)
		}
	}
}

func TestEventStream_DeliversEventsInOrder(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/events" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ": keepalive\n\n")
		fmt.Fprint(w, "event: duck:change_connection_state\ndata: {\"state\":\"connecting\"}\n\n")
		fmt.Fprint(w, "event: duck:change_connection_state\ndata: {\"state\":\"connected\"}\n\n")
		fmt.Fprint(w, "event: duck:change_connection_mode\n\n")
	}))

	s := c.Events()
	s.Backoff = func(int) time.Duration { return time.Millisecond }

	var mu sync.Mutex
	var got []any
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(ev any) {
			mu.Lock()
			got = append(got, ev)
			n := len(got)
			mu.Unlock()
			if n >= 4 {
				s.Close()
			}
		})
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not finish")
	}

	mu.Lock()
	defer mu.Unlock()
	want := []any{
		StreamConnectedEvent{},
		ConnectionStateEvent{State: state.Connecting},
		ConnectionStateEvent{State: state.Connected},
		ConnectionModeEvent{},
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: want %#v, got %#v", i, want[i], got[i])
		}
	}
}

func TestEventStream_GivesUpAfterMaxReconnects(t *testing.T) {
	var hits int
	var mu sync.Mutex
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	s := c.Events()
	s.Backoff = func(int) time.Duration { return time.Millisecond }

	var reconnects int
	err := s.Run(context.Background(), func(ev any) {
		if _, ok := ev.(StreamReconnectingEvent); ok {
			reconnects++
		}
	})
	if err == nil {
		t.Fatal("want error after giving up")
	}
	if reconnects != MaxReconnects {
		t.Errorf("want %d reconnect events, got %d", MaxReconnects, reconnects)
	}
	mu.Lock()
	defer mu.Unlock()
	if hits != MaxReconnects+1 {
		t.Errorf("want %d requests, got %d", MaxReconnects+1, hits)
	}
}

func TestDefaultBackoff_Capped(t *testing.T) {
	if got := DefaultBackoff(1); got != 2*time.Second {
		t.Errorf("attempt 1: want 2s, got %v", got)
	}
	if got := DefaultBackoff(9); got != 30*time.Second {
		t.Errorf("attempt 9: want 30s, got %v", got)
	}
}

// ---------------------------------------------------------------------------
// Remote API
// ---------------------------------------------------------------------------

func TestRemote_AuthSendsDeviceInfo(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth" {
			t.Errorf("want /auth, got %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&body)
		fmt.Fprint(w, `{"accessToken":"tok","subscription":"https://sub"}`)
	}))
	defer srv.Close()

	rc := NewRemote(srv.URL + "/")
	res, err := rc.Auth(context.Background(), AuthRequest{
		AuthToken:  "abc",
		DeviceInfo: DeviceInfo{Platform: "linux", HWID: "h"},
	})
	if err != nil {
		t.Fatalf("Auth: %v", err)
	}
	if res.AccessToken != "tok" || res.Subscription != "https://sub" {
		t.Errorf("unexpected result %+v", res)
	}
	if body["authToken"] != "abc" || body["platform"] != "linux" || body["hwid"] != "h" {
		t.Errorf("unexpected body %v", body)
	}
}

func TestRemote_AuthByKeyErrorCarriesCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"message":"bad key","code":4001,"error":"KEY_INVALID"}`)
	}))
	defer srv.Close()

	_, err := NewRemote(srv.URL).AuthByKey(context.Background(), KeyAuthRequest{Key: "https://k"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("want APIError, got %v", err)
	}
	if apiErr.Code != "4001" {
		t.Errorf("want code 4001, got %q", apiErr.Code)
	}
}

func TestRemote_ServerMessageFirstSuccessWins(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/broken":
			w.WriteHeader(http.StatusBadGateway)
		case "/slow":
			time.Sleep(300 * time.Millisecond)
			fmt.Fprint(w, `{"msgId":"slow","msg":"late"}`)
		default:
			fmt.Fprint(w, `{"msgId":"m1","title":"Hi","msg":"hello"}`)
		}
	}))
	defer srv.Close()

	rc := NewRemote(srv.URL)
	m, err := rc.ServerMessage(context.Background(), []string{"broken", "/slow", srv.URL + "/fast"})
	if err != nil {
		t.Fatalf("ServerMessage: %v", err)
	}
	if m.ID != "m1" || m.Title != "Hi" {
		t.Errorf("want m1 from fast source, got %+v", m)
	}
}

func TestRemote_ServerMessageAllFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()
	if _, err := NewRemote(srv.URL).ServerMessage(context.Background(), []string{"a", "b"}); err == nil {
		t.Error("want error when every source fails")
	}
}

// ---------------------------------------------------------------------------
// Traffic websocket
// ---------------------------------------------------------------------------

func TestTrafficStream_ReadsSamples(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/traffic" || r.URL.Query().Get("token") != "s3cret" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for i := int64(1); i <= 3; i++ {
			conn.WriteJSON(TrafficSample{Up: i, Down: i * 10})
		}
		// Keep the socket open until the client leaves.
		conn.ReadMessage()
	}))
	defer srv.Close()

	u, _ := url.Parse(srv.URL)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var got []TrafficSample
	err := TrafficStream(ctx, ClashInfo{Server: u.Host, Secret: "s3cret"}, func(s TrafficSample) {
		got = append(got, s)
		if len(got) == 3 {
			cancel()
		}
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("want context.Canceled, got %v", err)
	}
	if len(got) != 3 || got[2].Down != 30 {
		t.Errorf("unexpected samples %+v", got)
	}
}

func TestTrafficStream_HandshakeRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "no")
	}))
	defer srv.Close()
	u, _ := url.Parse(srv.URL)
	if err := TrafficStream(context.Background(), ClashInfo{Server: u.Host}, func(TrafficSample) {}); err == nil {
		t.Error("want handshake error")
	}
}
