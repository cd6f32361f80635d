package trakt

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/amaumene/gostreamarr/internal/config"
	"github.com/amaumene/gostreamarr/internal/retry"
	"github.com/amaumene/gostreamarr/internal/services"
)

const (
	baseURL    = "https://api.trakt.tv"
	apiVersion = "2"

	metadataTTL = 24 * time.Hour
)

// Client handles communication with Trakt API
type Client struct {
	clientID   string
	baseURL    string
	httpClient *http.Client
	policy     retry.Policy
	cache      *gocache.Cache
	logger     zerolog.Logger
}

// NewClient creates a new Trakt API client
func NewClient(cfg *config.Config, logger zerolog.Logger) (*Client, error) {
	if cfg.TraktClientID == "" {
		return nil, fmt.Errorf("trakt client id is required")
	}

	return &Client{
		clientID:   cfg.TraktClientID,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		policy:     cfg.SearchPolicy,
		cache:      gocache.New(metadataTTL, time.Hour),
		logger:     logger.With().Str("component", "trakt").Logger(),
	}, nil
}

// doRequest performs a GET request to Trakt API, retrying transient failures
func (c *Client) doRequest(ctx context.Context, path string, result interface{}) error {
	fullURL := c.baseURL + path
	c.logger.Debug().Str("url", fullURL).Msg("Making Trakt API request")

	return retry.Do(ctx, c.policy, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return retry.Permanent(fmt.Errorf("failed to create request: %w", err))
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("trakt-api-version", apiVersion)
		req.Header.Set("trakt-api-key", c.clientID)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		if err := services.CheckResponse("trakt", resp); err != nil {
			return err
		}

		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return retry.Permanent(fmt.Errorf("failed to decode response: %w", err))
		}
		return nil
	}, func(err error, attempt int, wait time.Duration) {
		c.logger.Warn().Err(err).Int("attempt", attempt).Dur("wait", wait).Msg("Trakt request failed, retrying")
	})
}
