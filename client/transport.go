package client

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
)

// localHost is the placeholder host used for socket and pipe transports,
// where the dialer ignores the request address.
const localHost = "http://duck.local"

// newTransport maps a bridge URL onto a base URL for requests plus the
// round tripper that reaches it.
func newTransport(raw string) (string, http.RoundTripper, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", nil, fmt.Errorf("parse bridge url: %w", err)
	}
	switch u.Scheme {
	case "http", "https":
		return strings.TrimRight(raw, "/"), http.DefaultTransport, nil
	case "unix":
		path := u.Path
		if path == "" {
			path = u.Opaque
		}
		if path == "" {
			return "", nil, fmt.Errorf("unix bridge url %q has no socket path", raw)
		}
		return localHost, socketTransport(func(ctx context.Context) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", path)
		}), nil
	case "npipe":
		name := pipeName(u)
		return localHost, socketTransport(func(ctx context.Context) (net.Conn, error) {
			return dialPipe(ctx, name)
		}), nil
	default:
		return "", nil, fmt.Errorf("unsupported bridge scheme %q", u.Scheme)
	}
}

func socketTransport(dial func(ctx context.Context) (net.Conn, error)) *http.Transport {
	return &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			return dial(ctx)
		},
		MaxIdleConns: 4,
	}
}

// pipeName turns npipe:////./pipe/duck into \\.\pipe\duck.
func pipeName(u *url.URL) string {
	p := strings.TrimLeft(u.Host+u.Path, "/")
	return `\\` + strings.ReplaceAll(p, "/", `\`)
}
