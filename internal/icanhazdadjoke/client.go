// Package icanhazdadjoke is a small client for the icanhazdadjoke.com API.
package icanhazdadjoke

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	app_errors "github.com/IMax153/netlify-ai-gateway/internal/errors"
)

const (
	DefaultBaseURL = "https://icanhazdadjoke.com"
	userAgent      = "netlify-ai-gateway (https://github.com/IMax153/netlify-ai-gateway)"
)

type Joke struct {
	ID   string `json:"id"`
	Joke string `json:"joke"`
}

type searchResponse struct {
	Results []Joke `json:"results"`
}

// Client calls the API, waiting on a shared limiter before every request.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
}

// NewClient returns a client allowing requestsPerSecond requests per second.
// A non-positive rate disables limiting.
func NewClient(baseURL string, requestsPerSecond float64) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		limiter:    rate.NewLimiter(limit, 1),
	}
}

// Random fetches a random joke.
func (c *Client) Random(ctx context.Context) (Joke, error) {
	var joke Joke
	if err := c.get(ctx, "/", nil, &joke); err != nil {
		return Joke{}, fmt.Errorf("failed to fetch random dad joke: %w", err)
	}
	return joke, nil
}

// Search returns the jokes matching term, best match first.
func (c *Client) Search(ctx context.Context, term string) ([]Joke, error) {
	var resp searchResponse
	if err := c.get(ctx, "/search", url.Values{"term": {term}}, &resp); err != nil {
		return nil, fmt.Errorf("failed to search dad jokes for %q: %w", term, err)
	}
	return resp.Results, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", app_errors.ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%w: api returned status %d: %s", app_errors.ErrUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
