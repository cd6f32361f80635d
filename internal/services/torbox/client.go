package torbox

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/amaumene/gostreamarr/internal/config"
	"github.com/amaumene/gostreamarr/internal/services"
)

const torboxAPIBase = "https://api.torbox.app/v1/api"

// Client talks to the TorBox API. It is only used to list the files of
// cached torrents.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a new TorBox client
func NewClient(cfg *config.Config, logger zerolog.Logger) (*Client, error) {
	if cfg.TorBoxAPIKey == "" {
		return nil, fmt.Errorf("TorBox API key is required")
	}

	return &Client{
		apiKey:     cfg.TorBoxAPIKey,
		baseURL:    torboxAPIBase,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger.With().Str("component", "torbox").Logger(),
	}, nil
}

// get performs an authenticated GET and decodes the JSON answer into result
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	fullURL := c.baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if err := services.CheckResponse("torbox", resp); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
