package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"ecorewards/core"
)

// Option configures the Client.
type Option func(*Client)

// Client provides typed access to the ecorewards HTTP + WebSocket API.
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
		httpClient: &http.Client{Timeout: 10 * time.Second},
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

func userPath(userID string, rest ...string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", ErrEmptyUserID
	}
	p := "/users/" + url.PathEscape(userID)
	for _, r := range rest {
		p += "/" + url.PathEscape(r)
	}
	return p, nil
}

// EarnPoints awards points for an activity and returns the resulting outcome.
func (c *Client) EarnPoints(ctx context.Context, userID string, req EarnRequest) (Outcome, error) {
	p, err := userPath(userID, "points")
	if err != nil {
		return Outcome{}, err
	}
	var out Outcome
	return out, c.do(ctx, http.MethodPost, p, req, &out)
}

// Redeem exchanges points for a catalog reward.
func (c *Client) Redeem(ctx context.Context, userID, rewardID string) (Outcome, error) {
	p, err := userPath(userID, "redemptions", rewardID)
	if err != nil {
		return Outcome{}, err
	}
	var out Outcome
	return out, c.do(ctx, http.MethodPost, p, nil, &out)
}

// EvaluateAchievements asks the server to unlock any achievement the profile now satisfies.
func (c *Client) EvaluateAchievements(ctx context.Context, userID string) (Outcome, error) {
	p, err := userPath(userID, "achievements", "evaluate")
	if err != nil {
		return Outcome{}, err
	}
	var out Outcome
	return out, c.do(ctx, http.MethodPost, p, nil, &out)
}

// GetUser fetches the render view of a user's profile.
func (c *Client) GetUser(ctx context.Context, userID string) (core.View, error) {
	p, err := userPath(userID)
	if err != nil {
		return core.View{}, err
	}
	var v core.View
	return v, c.do(ctx, http.MethodGet, p, nil, &v)
}

func (c *Client) Impact(ctx context.Context, userID string) (core.ImpactStats, error) {
	p, err := userPath(userID, "impact")
	if err != nil {
		return core.ImpactStats{}, err
	}
	var s core.ImpactStats
	return s, c.do(ctx, http.MethodGet, p, nil, &s)
}

func (c *Client) Progress(ctx context.Context, userID string) ([]core.AchievementProgress, error) {
	p, err := userPath(userID, "progress")
	if err != nil {
		return nil, err
	}
	var rows []core.AchievementProgress
	return rows, c.do(ctx, http.MethodGet, p, nil, &rows)
}

func (c *Client) Catalog(ctx context.Context) (core.Catalog, error) {
	var cat core.Catalog
	return cat, c.do(ctx, http.MethodGet, "/catalog", nil, &cat)
}

// Leaderboard returns the top limit profiles; zero lets the server choose.
func (c *Client) Leaderboard(ctx context.Context, limit int) (Leaderboard, error) {
	p := "/leaderboard"
	if limit > 0 {
		p += "?limit=" + strconv.Itoa(limit)
	}
	var lb Leaderboard
	return lb, c.do(ctx, http.MethodGet, p, nil, &lb)
}

// Health probes /healthz and returns status + storage check. An unhealthy
// server answers 503, which is reported as the status rather than an error.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
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
	if resp.StatusCode == http.StatusServiceUnavailable {
		if err := json.NewDecoder(resp.Body).Decode(&hs); err == nil {
			return hs, nil
		}
	}
	if err := decodeJSON(resp, &hs); err != nil {
		return HealthStatus{}, err
	}
	return hs, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.applyHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeJSON(resp, out)
}

// SubscribeEvents connects to the WebSocket stream and emits core.Event values.
// A non-empty userID restricts the stream to that user.
// The returned channel closes when ctx is done or the connection drops.
func (c *Client) SubscribeEvents(ctx context.Context, userID string) (<-chan core.Event, error) {
	if c.wsURL == "" {
		return nil, errors.New("wsURL is not set; ensure baseURL is http/https")
	}
	target := c.wsURL
	if userID != "" {
		target += "?user=" + url.QueryEscape(userID)
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
		<-ctx.Done()
		_ = conn.Close()
	}()
	go func() {
		defer close(out)
		defer conn.Close()
		for {
			var evt core.Event
			if err := conn.ReadJSON(&evt); err != nil {
				return
			}
			select {
			case out <- evt:
			case <-ctx.Done():
				return
			default:
				// drop if consumer is slow
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
