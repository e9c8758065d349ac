// Package sdk provides typed access to the rewardkit HTTP + WebSocket API.
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

	"rewardkit/core"
)

// Option configures the Client.
type Option func(*Client)

// Client talks to a rewardkit server.
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

// CreateUser registers a user with zero XP. Calling it again is a no-op.
func (c *Client) CreateUser(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrEmptyUserID
	}
	u := fmt.Sprintf("%s/users/%s", c.baseURL, url.PathEscape(userID))
	var body struct {
		OK bool `json:"ok"`
	}
	if err := c.do(ctx, http.MethodPut, u, &body); err != nil {
		return err
	}
	if !body.OK {
		return errors.New("user not created")
	}
	return nil
}

// Progress fetches the current XP and level for a user.
func (c *Client) Progress(ctx context.Context, userID string) (Progress, error) {
	if strings.TrimSpace(userID) == "" {
		return Progress{}, ErrEmptyUserID
	}
	u := fmt.Sprintf("%s/users/%s", c.baseURL, url.PathEscape(userID))
	var p Progress
	if err := c.do(ctx, http.MethodGet, u, &p); err != nil {
		return Progress{}, err
	}
	return p, nil
}

// Grant awards a raw XP amount with a free-form reason label.
func (c *Client) Grant(ctx context.Context, userID string, amount int64, reason string) (Grant, error) {
	q := url.Values{}
	q.Set("amount", fmt.Sprintf("%d", amount))
	if reason != "" {
		q.Set("reason", reason)
	}
	return c.grant(ctx, userID, "", q)
}

// GrantForAction awards the catalog value for a platform action.
func (c *Client) GrantForAction(ctx context.Context, userID, action string) (Grant, error) {
	q := url.Values{}
	q.Set("action", action)
	return c.grant(ctx, userID, "", q)
}

// GrantOnce awards an action at most once per (scopeKind, scopeID) pair.
// A duplicate call succeeds with Granted=false.
func (c *Client) GrantOnce(ctx context.Context, userID, action, scopeKind, scopeID string) (Grant, error) {
	q := url.Values{}
	q.Set("action", action)
	q.Set("scope_kind", scopeKind)
	q.Set("scope_id", scopeID)
	return c.grant(ctx, userID, "once", q)
}

// GrantThrottled awards an action at most once per window for the scope.
// A zero window uses the server default.
func (c *Client) GrantThrottled(ctx context.Context, userID, action, scopeKind, scopeID string, window time.Duration) (Grant, error) {
	q := url.Values{}
	q.Set("action", action)
	q.Set("scope_kind", scopeKind)
	q.Set("scope_id", scopeID)
	if window > 0 {
		q.Set("window", window.String())
	}
	return c.grant(ctx, userID, "throttled", q)
}

func (c *Client) grant(ctx context.Context, userID, variant string, q url.Values) (Grant, error) {
	if strings.TrimSpace(userID) == "" {
		return Grant{}, ErrEmptyUserID
	}
	u := fmt.Sprintf("%s/users/%s/grants", c.baseURL, url.PathEscape(userID))
	if variant != "" {
		u += "/" + variant
	}
	u += "?" + q.Encode()

	var g Grant
	if err := c.do(ctx, http.MethodPost, u, &g); err != nil {
		return Grant{}, err
	}
	return g, nil
}

// Health probes /healthz and returns status + storage check.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	var hs HealthStatus
	err := c.do(ctx, http.MethodGet, c.baseURL+"/healthz", &hs)
	// /healthz answers with a body even on 503
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusServiceUnavailable {
		return HealthStatus{Status: "unhealthy"}, nil
	}
	if err != nil {
		return HealthStatus{}, err
	}
	return hs, nil
}

// SubscribeEvents connects to the WebSocket stream and emits core.Event values.
// Pass a non-empty userID to receive only that user's events. The returned
// channel closes when ctx is done or the connection drops.
func (c *Client) SubscribeEvents(ctx context.Context, userID string) (<-chan core.Event, error) {
	if c.wsURL == "" {
		return nil, errors.New("wsURL is not set; ensure baseURL is http/https")
	}
	wsURL := c.wsURL
	if userID != "" {
		wsURL += "?user=" + url.QueryEscape(userID)
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, wsURL, c.headers)
	if err != nil {
		return nil, err
	}

	out := make(chan core.Event, 32)
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
