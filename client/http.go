package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrBridgeUnavailable is returned when the backend cannot be reached at all.
var ErrBridgeUnavailable = errors.New("backend bridge unavailable")

// APIError is a non-2xx response from the bridge or the remote API.
type APIError struct {
	Status  int
	Message string
	Code    string
	Details json.RawMessage
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("API %d [%s]: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("API %d: %s", e.Status, e.Message)
}

// Client talks to the Backend Command Bridge.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// New returns a client for bridgeURL. Supported schemes are http, https,
// unix and, on Windows, npipe.
func New(bridgeURL string) (*Client, error) {
	base, tr, err := newTransport(bridgeURL)
	if err != nil {
		return nil, err
	}
	return &Client{
		BaseURL: base,
		HTTPClient: &http.Client{
			Timeout:   300 * time.Second,
			Transport: tr,
		},
	}, nil
}

// Invoke calls a bridge command with args and decodes the result into out.
// out may be nil when the result is not needed.
func (c *Client) Invoke(ctx context.Context, command string, args, out any) error {
	if args == nil {
		args = struct{}{}
	}
	resp, err := c.postJSON(ctx, "/invoke/"+command, args)
	if err != nil {
		return fmt.Errorf("%s: %w", command, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s: %w", command, parseError(resp))
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode %s: %w", command, err)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrBridgeUnavailable, err)
	}
	return resp, nil
}

// parseError decodes {"error","code","details"} bridge bodies as well as the
// remote API's {"message","code",...} bodies.
func parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	apiErr := &APIError{Status: resp.StatusCode}
	var raw struct {
		Error   string          `json:"error"`
		Message string          `json:"message"`
		Code    json.RawMessage `json:"code"`
		Details json.RawMessage `json:"details"`
	}
	if json.Unmarshal(body, &raw) == nil && (raw.Error != "" || raw.Message != "") {
		apiErr.Message = raw.Error
		if apiErr.Message == "" {
			apiErr.Message = raw.Message
		}
		apiErr.Code = rawCode(raw.Code)
		apiErr.Details = raw.Details
		if len(apiErr.Details) == 0 {
			apiErr.Details = body
		}
		return apiErr
	}
	apiErr.Message = string(bytes.TrimSpace(body))
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

// rawCode accepts both string and numeric codes.
func rawCode(b json.RawMessage) string {
	if len(b) == 0 || string(b) == "null" {
		return ""
	}
	var s string
	if json.Unmarshal(b, &s) == nil {
		return s
	}
	return string(b)
}
