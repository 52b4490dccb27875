package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// DeviceInfo identifies the machine to the remote API.
type DeviceInfo struct {
	Platform      string `json:"platform,omitempty"`
	SystemVersion string `json:"systemVersion,omitempty"`
	KernelVersion string `json:"kernelVersion,omitempty"`
	Arch          string `json:"arch,omitempty"`
	AppVersion    string `json:"vergeVersion,omitempty"`
	HWID          string `json:"hwid"`
}

// AuthRequest polls for a completed deep-link sign-in.
type AuthRequest struct {
	AuthToken string `json:"authToken"`
	DeviceInfo
}

// KeyAuthRequest signs in with a subscription key.
type KeyAuthRequest struct {
	Key string `json:"key"`
	DeviceInfo
}

// AuthResult is returned by both sign-in endpoints.
type AuthResult struct {
	AccessToken  string `json:"accessToken"`
	Subscription string `json:"subscription"`
}

// ServerMessage is an announcement shown on the home screen.
type ServerMessage struct {
	ID    string `json:"msgId"`
	Title string `json:"title"`
	Text  string `json:"msg"`
}

// IPInfo describes the public address traffic currently leaves from.
type IPInfo struct {
	IP           string `json:"ip"`
	Country      string `json:"country"`
	CountryCode  string `json:"country_code"`
	City         string `json:"city,omitempty"`
	Organization string `json:"organization,omitempty"`
}

// RemoteClient talks to the provider's HTTP API.
type RemoteClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

func NewRemote(baseURL string) *RemoteClient {
	return &RemoteClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *RemoteClient) SetToken(token string) {
	c.Token = token
}

// Auth asks whether the deep-link token has been confirmed. The server
// answers with an error until the user finishes in the bot.
func (c *RemoteClient) Auth(ctx context.Context, req AuthRequest) (*AuthResult, error) {
	var result AuthResult
	if err := c.postJSON(ctx, "/auth", req, &result); err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}
	return &result, nil
}

func (c *RemoteClient) AuthByKey(ctx context.Context, req KeyAuthRequest) (*AuthResult, error) {
	var result AuthResult
	if err := c.postJSON(ctx, "/auth/by-key", req, &result); err != nil {
		return nil, fmt.Errorf("auth by key: %w", err)
	}
	return &result, nil
}

// ServerMessage queries every source concurrently and returns the first
// successful answer. Relative sources are resolved against BaseURL.
func (c *RemoteClient) ServerMessage(ctx context.Context, sources []string) (*ServerMessage, error) {
	if len(sources) == 0 {
		return nil, errors.New("server message: no sources")
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		msg *ServerMessage
		err error
	}
	results := make(chan result, len(sources))
	for _, src := range sources {
		go func(src string) {
			var m ServerMessage
			err := c.getJSON(ctx, c.resolve(src), &m)
			results <- result{&m, err}
		}(src)
	}

	var errs []error
	for range sources {
		r := <-results
		if r.err == nil {
			return r.msg, nil
		}
		errs = append(errs, r.err)
	}
	return nil, fmt.Errorf("server message: %w", errors.Join(errs...))
}

// IPInfo queries an absolute geo-IP endpoint.
func (c *RemoteClient) IPInfo(ctx context.Context, url string) (*IPInfo, error) {
	var info IPInfo
	if err := c.getJSON(ctx, url, &info); err != nil {
		return nil, fmt.Errorf("ip info: %w", err)
	}
	return &info, nil
}

func (c *RemoteClient) resolve(src string) string {
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		return src
	}
	return c.BaseURL + "/" + strings.TrimLeft(src, "/")
}

func (c *RemoteClient) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *RemoteClient) postJSON(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *RemoteClient) do(req *http.Request, out any) error {
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
