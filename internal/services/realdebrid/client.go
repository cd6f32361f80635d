package realdebrid

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/amaumene/gostreamarr/internal/config"
	"github.com/amaumene/gostreamarr/internal/services"
)

const realDebridAPIBase = "https://api.real-debrid.com/rest/1.0"

// Client is a Real-Debrid API client bound to one account token
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a client using the configured default token, which may be
// empty when every request brings its own
func NewClient(cfg *config.Config, logger zerolog.Logger) *Client {
	return &Client{
		apiKey:     cfg.RealDebridAPIKey,
		baseURL:    realDebridAPIBase,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger.With().Str("component", "realdebrid").Logger(),
	}
}

// WithToken returns a client acting for another account. An empty token keeps
// the current one.
func (c *Client) WithToken(token string) *Client {
	if token == "" || token == c.apiKey {
		return c
	}
	clone := *c
	clone.apiKey = token
	return &clone
}

// HasToken reports whether the client can authenticate
func (c *Client) HasToken() bool {
	return c.apiKey != ""
}

// doRequest performs an authenticated request. form is sent url-encoded when
// not nil; result is decoded from JSON when not nil.
func (c *Client) doRequest(ctx context.Context, method, path string, form url.Values, result interface{}) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	c.logger.Debug().Str("method", method).Str("path", path).Msg("Making Real-Debrid API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := services.CheckResponse("real-debrid", resp); err != nil {
		return err
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
