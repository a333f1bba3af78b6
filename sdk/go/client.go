package sdk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"ratekit/core"
)

// Option configures the Client.
type Option func(*Client)

// Client provides typed access to the ratekit HTTP + WebSocket API.
type Client struct {
	baseURL    string
	wsURL      string
	httpClient *http.Client
	headers    http.Header
}

// NewClient constructs a new SDK client targeting the given baseURL (e.g., http://localhost:8080/api).
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("baseURL is required")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	c := &Client{
		baseURL:    baseURL,
		wsURL:      deriveWSURL(baseURL),
		httpClient: http.DefaultClient,
		headers:    make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithAuthToken adds an Authorization: Bearer token header to all requests (HTTP + WS).
func WithAuthToken(token string) Option {
	return func(c *Client) {
		if strings.TrimSpace(token) != "" {
			c.headers.Set("Authorization", "Bearer "+token)
		}
	}
}

// WithAPIKey adds an X-API-Key header.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		if strings.TrimSpace(key) != "" {
			c.headers.Set("X-API-Key", key)
		}
	}
}

// WithHeader sets an arbitrary header applied to HTTP and WS calls.
func WithHeader(k, v string) Option {
	return func(c *Client) {
		if k != "" {
			c.headers.Set(k, v)
		}
	}
}

// CreateInstall registers a new installation and returns its server-assigned id.
func (c *Client) CreateInstall(ctx context.Context) (InstallState, error) {
	var st InstallState
	err := c.do(ctx, http.MethodPost, c.baseURL+"/installs", &st)
	return st, err
}

// StartSession records one app launch for the installation.
func (c *Client) StartSession(ctx context.Context, installID string) (InstallState, error) {
	var st InstallState
	u, err := c.installURL(installID, "sessions")
	if err != nil {
		return st, err
	}
	err = c.do(ctx, http.MethodPost, u, &st)
	return st, err
}

// GetInstall fetches the stored counters and whether the prompt is due.
func (c *Client) GetInstall(ctx context.Context, installID string) (InstallState, error) {
	var st InstallState
	u, err := c.installURL(installID)
	if err != nil {
		return st, err
	}
	err = c.do(ctx, http.MethodGet, u, &st)
	return st, err
}

// Prompt asks the server whether to show the rating dialog now. With force the
// dialog text is returned even when the criteria are not met.
func (c *Client) Prompt(ctx context.Context, installID string, force bool) (PromptResponse, error) {
	var pr PromptResponse
	u, err := c.installURL(installID, "prompt")
	if err != nil {
		return pr, err
	}
	if force {
		u += "?force=true"
	}
	err = c.do(ctx, http.MethodPost, u, &pr)
	return pr, err
}

// Choose reports the user's answer to the dialog.
func (c *Client) Choose(ctx context.Context, installID string, choice Choice) (InstallState, error) {
	var st InstallState
	if !choice.valid() {
		return st, fmt.Errorf("unknown choice %q", choice)
	}
	u, err := c.installURL(installID, "choices", string(choice))
	if err != nil {
		return st, err
	}
	err = c.do(ctx, http.MethodPost, u, &st)
	return st, err
}

// Stats fetches the prompt funnel.
func (c *Client) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := c.do(ctx, http.MethodGet, c.baseURL+"/stats", &s)
	return s, err
}

// Health probes /healthz and returns status + storage check.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	u := c.baseURL + "/healthz"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return HealthStatus{}, err
	}
	c.applyHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return HealthStatus{}, err
	}
	defer resp.Body.Close()

	var hs HealthStatus
	if err := decodeJSON(resp, &hs); err != nil {
		return HealthStatus{}, err
	}
	return hs, nil
}

// SubscribeEvents connects to the WebSocket stream and emits core.Event values.
// A non-empty installID narrows the stream to one installation.
// The returned channel closes when ctx is done or the connection drops.
func (c *Client) SubscribeEvents(ctx context.Context, installID string) (<-chan core.Event, error) {
	if c.wsURL == "" {
		return nil, errors.New("wsURL is not set; ensure baseURL is http/https")
	}
	target := c.wsURL
	if installID != "" {
		target += "?install_id=" + url.QueryEscape(installID)
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, target, c.headers)
	if err != nil {
		return nil, err
	}

	out := make(chan core.Event, 32)
	go func() {
		// unblocks ReadJSON when ctx ends
		<-ctx.Done()
		_ = conn.Close()
	}()
	go func() {
		defer close(out)
		defer conn.Close()
		for {
			select {
			case <-ctx.Done():
				return
			default:
				var evt core.Event
				if err := conn.ReadJSON(&evt); err != nil {
					return
				}
				select {
				case out <- evt:
				default:
					// drop if consumer is slow
				}
			}
		}
	}()
	return out, nil
}

func (c *Client) installURL(installID string, rest ...string) (string, error) {
	if strings.TrimSpace(installID) == "" {
		return "", ErrEmptyInstallID
	}
	u := c.baseURL + "/installs/" + url.PathEscape(installID)
	for _, p := range rest {
		u += "/" + p
	}
	return u, nil
}

func (c *Client) do(ctx context.Context, method, u string, target any) error {
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return err
	}
	c.applyHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeJSON(resp, target)
}

func (c *Client) applyHeaders(r *http.Request) {
	for k, vals := range c.headers {
		for _, v := range vals {
			r.Header.Add(k, v)
		}
	}
}

func deriveWSURL(httpBase string) string {
	u, err := url.Parse(httpBase)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		// leave as-is for custom schemes
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String()
}
