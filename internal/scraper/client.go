package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/rs/zerolog/log"

	"gardenshop-tracker/config"
	"gardenshop-tracker/internal/model"
)

// maxErrorBody caps how much of a failed response is kept in the error.
const maxErrorBody = 512

// TransportError reports a failed request or a non-2xx response.
type TransportError struct {
	URL        string
	StatusCode int // zero when no response was received
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("GET %s: received status code %d: %s", e.URL, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("GET %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Client fetches the shop payload from the upstream API.
type Client struct {
	url     string
	headers map[string]string
	client  *http.Client
}

// NewClient creates a Client from the scraper configuration.
func NewClient(cfg config.ScraperConfig) *Client {
	var transport http.RoundTripper = http.DefaultTransport
	if cfg.HTTPProxy != "" {
		proxyURL, err := url.Parse(cfg.HTTPProxy)
		if err != nil {
			log.Warn().Err(err).Str("proxy", cfg.HTTPProxy).Msg("invalid proxy URL; fetching without a proxy")
		} else {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}

	return &Client{
		url:     cfg.URL,
		headers: cfg.Headers,
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
	}
}

// Fetch performs one GET against the upstream API and decodes the payload.
func (c *Client) Fetch(ctx context.Context) (*model.Payload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &TransportError{URL: c.url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &TransportError{
			URL:        c.url,
			StatusCode: resp.StatusCode,
			Body:       string(body),
			Err:        fmt.Errorf("non-success status %s", resp.Status),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{URL: c.url, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	var payload model.Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &model.ShapeError{Path: "$", Err: err}
	}
	return &payload, nil
}
