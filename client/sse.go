package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/spy-duck/duck-tui/state"
)

// Backend push event names.
const (
	EventConnectionState = "duck:change_connection_state"
	EventConnectionMode  = "duck:change_connection_mode"
	EventChangeProxy     = "duck:change_proxy"
	EventRefreshVerge    = "verge://refresh-verge-config"
	EventStartupDone     = "verge://startup-completed"
)

// -- Event types --------------------------------------------------------------

// ConnectionStateEvent reports the authoritative connection state.
type ConnectionStateEvent struct {
	State state.ConnectionState `json:"state"`
}

// ConnectionModeEvent says the mode changed elsewhere (e.g. the tray menu);
// it carries no payload and the receiver should re-read the mode.
type ConnectionModeEvent struct{}

// ProxyChangedEvent reports a proxy selection made outside this client.
type ProxyChangedEvent struct {
	Group string `json:"group"`
	Proxy string `json:"proxy"`
}

// VergeRefreshEvent asks the client to re-read the application config.
type VergeRefreshEvent struct{}

// StartupCompletedEvent is sent once the backend finished booting.
type StartupCompletedEvent struct{}

// StreamConnectedEvent is dispatched when the event stream is established.
type StreamConnectedEvent struct{}

// StreamDisconnectedEvent is dispatched when the stream drops or closes.
type StreamDisconnectedEvent struct {
	Err error
}

// StreamReconnectingEvent is dispatched before each reconnect attempt.
type StreamReconnectingEvent struct {
	Attempt int
}

// StreamClosedEvent ends a ListenCmd: the stream was closed or gave up.
type StreamClosedEvent struct {
	Err error
}

// ParseWarning is emitted when an event cannot be parsed.
// The TUI surfaces it as a toast instead of writing to stderr.
type ParseWarning struct {
	Message string
}

// -- EventStream --------------------------------------------------------------

// MaxReconnects is the maximum number of reconnect attempts before giving up.
const MaxReconnects = 10

// EventStream reads the bridge's Server-Sent Events channel.
type EventStream struct {
	baseURL   string
	httpCli   *http.Client
	done      chan struct{}
	closeOnce sync.Once

	// Backoff returns the wait before reconnect attempt n (1-based).
	Backoff func(attempt int) time.Duration
}

// Events returns a stream bound to the same transport as c.
func (c *Client) Events() *EventStream {
	return &EventStream{
		baseURL: c.BaseURL,
		httpCli: &http.Client{Transport: c.HTTPClient.Transport, Timeout: 0},
		done:    make(chan struct{}),
		Backoff: DefaultBackoff,
	}
}

// DefaultBackoff doubles from 2s and caps at 30s.
func DefaultBackoff(attempt int) time.Duration {
	shift := attempt
	if shift > 5 {
		shift = 5
	}
	backoff := time.Duration(1<<uint(shift)) * time.Second
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	return backoff
}

// Close stops the stream. Safe to call more than once.
func (s *EventStream) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// IsClosed reports whether the stream has been intentionally closed.
func (s *EventStream) IsClosed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Run delivers events to emit until ctx ends, Close is called, or
// MaxReconnects consecutive reconnects fail. The attempt counter resets
// whenever a connection is established.
func (s *EventStream) Run(ctx context.Context, emit func(any)) error {
	attempt := 0
	for {
		connected, err := s.stream(ctx, emit)
		if s.IsClosed() {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		emit(StreamDisconnectedEvent{Err: err})
		if connected {
			attempt = 0
		}
		if attempt >= MaxReconnects {
			return fmt.Errorf("event stream reconnect failed after %d attempts", MaxReconnects)
		}
		attempt++
		select {
		case <-time.After(s.Backoff(attempt)):
		case <-s.done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
		emit(StreamReconnectingEvent{Attempt: attempt})
	}
}

// ListenCmd returns a tea.Cmd that runs the stream and sends every event to
// p. The command's own message is a StreamClosedEvent.
func (s *EventStream) ListenCmd(p *tea.Program) tea.Cmd {
	return func() tea.Msg {
		err := s.Run(context.Background(), func(ev any) { p.Send(ev) })
		return StreamClosedEvent{Err: err}
	}
}

// stream holds one connection open. connected reports whether the server
// accepted the request.
func (s *EventStream) stream(ctx context.Context, emit func(any)) (connected bool, err error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/events", nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := s.httpCli.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrBridgeUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("event stream returned %d", resp.StatusCode)
	}
	emit(StreamConnectedEvent{})

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0), 1024*1024) // 1 MB

	var eventType string
	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if eventType != "" {
				if m := parseEvent(eventType, []byte(data.String())); m != nil {
					emit(m)
				}
			}
			eventType = ""
			data.Reset()
		case strings.HasPrefix(line, ":"):
			// keepalive comment
		case strings.HasPrefix(line, "event:"):
			eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return true, err
	}
	return true, nil
}

// parseEvent converts an event name and its JSON data into a typed event.
func parseEvent(eventType string, data []byte) any {
	switch eventType {
	case EventConnectionState:
		var ev ConnectionStateEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return ParseWarning{Message: fmt.Sprintf("[events] parse %s: %v", eventType, err)}
		}
		if !ev.State.Valid() {
			return ParseWarning{Message: fmt.Sprintf("[events] %s: unknown state %q", eventType, ev.State)}
		}
		return ev
	case EventConnectionMode:
		return ConnectionModeEvent{}
	case EventChangeProxy:
		var ev ProxyChangedEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return ParseWarning{Message: fmt.Sprintf("[events] parse %s: %v", eventType, err)}
		}
		return ev
	case EventRefreshVerge:
		return VergeRefreshEvent{}
	case EventStartupDone:
		return StartupCompletedEvent{}
	default:
		return ParseWarning{Message: fmt.Sprintf("[events] unknown event type: %s", eventType)}
	}
}
