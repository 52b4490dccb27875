package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// TrafficStream reads throughput samples from the core's controller
// websocket (ws://{server}/traffic) and passes them to emit until ctx ends
// or the connection fails.
func TrafficStream(ctx context.Context, info ClashInfo, emit func(TrafficSample)) error {
	u := url.URL{Scheme: "ws", Host: info.Server, Path: "/traffic"}
	if info.Secret != "" {
		u.RawQuery = url.Values{"token": {info.Secret}}.Encode()
	}
	header := http.Header{}
	if info.Secret != "" {
		header.Set("Authorization", "Bearer "+info.Secret)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("traffic stream: handshake %d: %w", resp.StatusCode, err)
		}
		return fmt.Errorf("traffic stream: %w", err)
	}
	defer conn.Close()

	// Unblock ReadJSON when the context ends.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
		case <-stop:
		}
	}()

	for {
		var s TrafficSample
		if err := conn.ReadJSON(&s); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("traffic stream: %w", err)
		}
		emit(s)
	}
}
