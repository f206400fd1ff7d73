package mbta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// DefaultBaseURL is the public v3 API endpoint.
const DefaultBaseURL = "https://api-v3.mbta.com"

// ErrDecode wraps response bodies that are not valid JSON:API documents.
var ErrDecode = errors.New("malformed api response")

// StatusError is returned when the API answers with a non-200 status.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d from %s", e.Code, e.URL)
}

// Client is an HTTP client for the v3 transit API.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	cache   *Cache
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sends key in the x-api-key header on every request.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithCacheTTL overrides the response cache TTL. Zero disables it.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) { c.cache = NewCache(ttl) }
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// NewClient creates an API client.
func NewClient(baseURL string, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		cache:  NewCache(10 * time.Second),
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Schedules fetches the schedule rows of a route with their stops, trips,
// predictions and route included, sorted by arrival time.
func (c *Client) Schedules(ctx context.Context, routeID string) (*Document, error) {
	q := url.Values{
		"sort":          {"arrival_time"},
		"include":       {"stop,trip,prediction,route"},
		"filter[route]": {routeID},
	}
	doc, err := c.getDocument(ctx, "/schedules", q)
	if err != nil {
		return nil, fmt.Errorf("schedules for route %s: %w", routeID, err)
	}
	return doc, nil
}

// Predictions fetches the predictions of a route with their schedules
// included, so both record kinds arrive in one combined response.
func (c *Client) Predictions(ctx context.Context, routeID string) (*Document, error) {
	q := url.Values{
		"include":       {"schedule,stop,trip"},
		"filter[route]": {routeID},
	}
	doc, err := c.getDocument(ctx, "/predictions", q)
	if err != nil {
		return nil, fmt.Errorf("predictions for route %s: %w", routeID, err)
	}
	return doc, nil
}

// Routes fetches the route catalogue.
func (c *Client) Routes(ctx context.Context) (*Document, error) {
	doc, err := c.getDocument(ctx, "/routes", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch routes: %w", err)
	}
	return doc, nil
}

// Raw fetches an arbitrary URL and returns the body. It is used for binary
// feeds such as GTFS-Realtime trip updates and is never cached.
func (c *Client) Raw(ctx context.Context, rawURL string) ([]byte, error) {
	resp, err := c.doGet(ctx, rawURL, "application/x-protobuf")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

func (c *Client) getDocument(ctx context.Context, path string, q url.Values) (*Document, error) {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	if cached, ok := c.cache.Get(u); ok {
		c.logger.Debug("api cache hit", "url", u)
		return cached, nil
	}

	c.logger.Debug("requesting api", "url", u)
	resp, err := c.doGet(ctx, u, "application/vnd.api+json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var doc Document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	c.cache.Set(u, &doc)
	return &doc, nil
}

func (c *Client) doGet(ctx context.Context, url, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", accept)
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &StatusError{Code: resp.StatusCode, URL: url}
	}
	return resp, nil
}
