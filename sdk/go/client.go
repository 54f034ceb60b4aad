package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"travelkit/core"
)

// Option configures the Client.
type Option func(*Client)

// Client provides typed access to the travelkit HTTP + WebSocket API.
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

// GetProfile fetches the traveler's score, level, milestone and achievements.
func (c *Client) GetProfile(ctx context.Context, userID string) (Profile, error) {
	var p Profile
	path, err := userPath(userID, "")
	if err != nil {
		return p, err
	}
	err = c.do(ctx, http.MethodGet, path, nil, nil, &p)
	return p, err
}

// RecordActivity reports one activity and returns the updated profile.
func (c *Client) RecordActivity(ctx context.Context, userID string, act Activity) (Profile, error) {
	var p Profile
	path, err := userPath(userID, "/activity")
	if err != nil {
		return p, err
	}
	err = c.do(ctx, http.MethodPost, path, nil, act, &p)
	return p, err
}

// VisitDestination is RecordActivity for a destination_visited activity.
func (c *Client) VisitDestination(ctx context.Context, userID, destinationID string) (Profile, error) {
	return c.RecordActivity(ctx, userID, Activity{Kind: "destination_visited", DestinationID: destinationID})
}

// UpdateProfile changes verification or preferences.
func (c *Client) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (Profile, error) {
	var p Profile
	path, err := userPath(userID, "")
	if err != nil {
		return p, err
	}
	err = c.do(ctx, http.MethodPatch, path, nil, upd, &p)
	return p, err
}

// ImportSnapshot replaces the traveler's stored snapshot.
func (c *Client) ImportSnapshot(ctx context.Context, userID string, snap Snapshot) (Profile, error) {
	var p Profile
	path, err := userPath(userID, "")
	if err != nil {
		return p, err
	}
	err = c.do(ctx, http.MethodPut, path, nil, snap, &p)
	return p, err
}

// Simulate scores a snapshot without storing it.
func (c *Client) Simulate(ctx context.Context, snap Snapshot) (Profile, error) {
	var p Profile
	err := c.do(ctx, http.MethodPost, "/score/simulate", nil, snap, &p)
	return p, err
}

// Levels returns the level ladder.
func (c *Client) Levels(ctx context.Context) ([]core.Level, error) {
	var out []core.Level
	err := c.do(ctx, http.MethodGet, "/levels", nil, nil, &out)
	return out, err
}

// Achievements returns every badge the server can award.
func (c *Client) Achievements(ctx context.Context) ([]core.Achievement, error) {
	var out []core.Achievement
	err := c.do(ctx, http.MethodGet, "/achievements", nil, nil, &out)
	return out, err
}

// RecommendDestinations ranks destinations for userID. An empty userID asks for the
// anonymous ranking; limit <= 0 lets the server pick its default.
func (c *Client) RecommendDestinations(ctx context.Context, userID string, limit int) ([]RankedDestination, error) {
	var out []RankedDestination
	err := c.do(ctx, http.MethodGet, "/recommendations/destinations", listQuery(userID, limit), nil, &out)
	return out, err
}

// RecommendPlans ranks plans for userID, like RecommendDestinations.
func (c *Client) RecommendPlans(ctx context.Context, userID string, limit int) ([]RankedPlan, error) {
	var out []RankedPlan
	err := c.do(ctx, http.MethodGet, "/recommendations/plans", listQuery(userID, limit), nil, &out)
	return out, err
}

func (c *Client) TrendingDestinations(ctx context.Context, limit int) ([]RankedDestination, error) {
	var out []RankedDestination
	err := c.do(ctx, http.MethodGet, "/trending/destinations", listQuery("", limit), nil, &out)
	return out, err
}

func (c *Client) TrendingPlans(ctx context.Context, limit int) ([]RankedPlan, error) {
	var out []RankedPlan
	err := c.do(ctx, http.MethodGet, "/trending/plans", listQuery("", limit), nil, &out)
	return out, err
}

// Leaderboard returns the top travelers.
func (c *Client) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	var out []LeaderboardEntry
	err := c.do(ctx, http.MethodGet, "/leaderboard", listQuery("", limit), nil, &out)
	return out, err
}

// Standing returns the traveler's leaderboard neighbourhood. radius < 0 uses the
// server default.
func (c *Client) Standing(ctx context.Context, userID string, radius int) ([]LeaderboardEntry, error) {
	var out []LeaderboardEntry
	path, err := userPath(userID, "")
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	if radius >= 0 {
		q.Set("radius", strconv.Itoa(radius))
	}
	err = c.do(ctx, http.MethodGet, "/leaderboard"+strings.TrimPrefix(path, "/users"), q, nil, &out)
	return out, err
}

// Health calls /healthz and returns status + storage check. An unhealthy server
// answers 503 with a body, which is returned alongside the error.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	var hs HealthStatus
	err := c.do(ctx, http.MethodGet, "/healthz", nil, nil, &hs)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusServiceUnavailable {
		hs.Status = "unhealthy"
	}
	return hs, err
}

// EventFilter narrows a realtime subscription.
type EventFilter struct {
	UserID string
	Types  []core.EventType
}

// SubscribeEvents connects to the WebSocket stream and emits core.Event values.
// The returned channel closes when ctx is done or the connection drops.
func (c *Client) SubscribeEvents(ctx context.Context, filter EventFilter) (<-chan core.Event, error) {
	if c.wsURL == "" {
		return nil, errors.New("wsURL is not set; ensure baseURL is http/https")
	}
	u, err := url.Parse(c.wsURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	if filter.UserID != "" {
		q.Set("user", filter.UserID)
	}
	if len(filter.Types) > 0 {
		types := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			types[i] = string(t)
		}
		q.Set("types", strings.Join(types, ","))
	}
	u.RawQuery = q.Encode()

	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, u.String(), c.headers)
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

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, target any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var payload io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, payload)
	if err != nil {
		return err
	}
	c.applyHeaders(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeJSON(resp, target)
}

func userPath(userID, suffix string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", ErrEmptyUserID
	}
	return "/users/" + url.PathEscape(userID) + suffix, nil
}

func listQuery(userID string, limit int) url.Values {
	q := url.Values{}
	if userID != "" {
		q.Set("user", userID)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return q
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
