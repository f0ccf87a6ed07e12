// Package sdk provides typed access to the progresskit HTTP + WebSocket API.
package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"progresskit/core"
)

// Option configures the Client.
type Option func(*Client)

// Client provides typed access to the progression HTTP + WebSocket API.
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

// ReportActivity submits one activity event and returns the progression
// outcome. Replaying the same TransactionID is safe; the result reports
// Duplicate=true with zero awarded XP.
func (c *Client) ReportActivity(ctx context.Context, userID string, activity ActivityRequest) (ActivityResult, error) {
	if strings.TrimSpace(userID) == "" {
		return ActivityResult{}, ErrEmptyUserID
	}
	body, err := json.Marshal(activity)
	if err != nil {
		return ActivityResult{}, err
	}

	u := fmt.Sprintf("%s/users/%s/activity", c.baseURL, url.PathEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return ActivityResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.applyHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ActivityResult{}, err
	}
	defer resp.Body.Close()

	var res ActivityResult
	if err := decodeJSON(resp, &res); err != nil {
		return ActivityResult{}, err
	}
	return res, nil
}

// GrantLoot rolls a loot reward for the user.
func (c *Client) GrantLoot(ctx context.Context, userID string) (LootGrant, error) {
	if strings.TrimSpace(userID) == "" {
		return LootGrant{}, ErrEmptyUserID
	}
	u := fmt.Sprintf("%s/users/%s/loot", c.baseURL, url.PathEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return LootGrant{}, err
	}
	c.applyHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return LootGrant{}, err
	}
	defer resp.Body.Close()

	var grant LootGrant
	if err := decodeJSON(resp, &grant); err != nil {
		return LootGrant{}, err
	}
	return grant, nil
}

// GetUser fetches the full progression summary for a user.
func (c *Client) GetUser(ctx context.Context, userID string) (UserSummary, error) {
	if strings.TrimSpace(userID) == "" {
		return UserSummary{}, ErrEmptyUserID
	}
	u := fmt.Sprintf("%s/users/%s", c.baseURL, url.PathEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return UserSummary{}, err
	}
	c.applyHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return UserSummary{}, err
	}
	defer resp.Body.Close()

	var summary UserSummary
	if err := decodeJSON(resp, &summary); err != nil {
		return UserSummary{}, err
	}
	return summary, nil
}

// Leaderboard fetches the live top-n ranking.
func (c *Client) Leaderboard(ctx context.Context, n int) ([]LeaderboardEntry, error) {
	u, err := url.Parse(c.baseURL + "/leaderboard")
	if err != nil {
		return nil, err
	}
	if n > 0 {
		q := u.Query()
		q.Set("n", strconv.Itoa(n))
		u.RawQuery = q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	c.applyHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body struct {
		Entries []LeaderboardEntry `json:"entries"`
	}
	if err := decodeJSON(resp, &body); err != nil {
		return nil, err
	}
	return body.Entries, nil
}

// LeaderboardSnapshot fetches a ranked snapshot for a period
// ("weekly", "monthly" or "all-time").
func (c *Client) LeaderboardSnapshot(ctx context.Context, period string) (Snapshot, error) {
	u, err := url.Parse(c.baseURL + "/leaderboard/snapshot")
	if err != nil {
		return Snapshot{}, err
	}
	if period != "" {
		q := u.Query()
		q.Set("period", period)
		u.RawQuery = q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Snapshot{}, err
	}
	c.applyHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Snapshot{}, err
	}
	defer resp.Body.Close()

	var snap Snapshot
	if err := decodeJSON(resp, &snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
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
// The returned channel closes when ctx is done or the connection drops.
func (c *Client) SubscribeEvents(ctx context.Context) (<-chan core.Event, error) {
	if c.wsURL == "" {
		return nil, errors.New("wsURL is not set; ensure baseURL is http/https")
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, c.wsURL, c.headers)
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
