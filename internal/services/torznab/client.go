package torznab

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/amaumene/gostreamarr/internal/config"
	"github.com/amaumene/gostreamarr/internal/metrics"
	"github.com/amaumene/gostreamarr/internal/retry"
	"github.com/amaumene/gostreamarr/internal/services"
)

// Response represents the XML RSS response from a Torznab API
type Response struct {
	XMLName xml.Name `xml:"rss"`
	Channel Channel  `xml:"channel"`
}

// Channel represents the channel element in RSS
type Channel struct {
	Title string `xml:"title"`
	Items []Item `xml:"item"`
}

// Item represents a single search result
type Item struct {
	Title      string      `xml:"title"`
	Link       string      `xml:"link"` // .torrent download or magnet URI
	GUID       string      `xml:"guid"`
	PubDate    string      `xml:"pubDate"`
	Size       int64       `xml:"size"`
	Enclosure  Enclosure   `xml:"enclosure"`
	Attributes []Attribute `xml:"attr"`
}

// Enclosure represents the enclosure element
type Enclosure struct {
	URL    string `xml:"url,attr"`
	Length int64  `xml:"length,attr"`
	Type   string `xml:"type,attr"` // usually "application/x-bittorrent"
}

// Attribute represents a torznab:attr element (seeders, peers, infohash, ...)
type Attribute struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// Client wraps direct Torznab API HTTP calls
type Client struct {
	baseURL    string
	apiKey     string
	minSeeders int
	httpClient *http.Client
	limiter    *rate.Limiter
	policy     retry.Policy
	metrics    *metrics.Metrics
	logger     zerolog.Logger
}

// NewClient creates a new Torznab client. m may be nil.
func NewClient(cfg *config.Config, logger zerolog.Logger, m *metrics.Metrics) (*Client, error) {
	if cfg.TorznabURL == "" {
		return nil, fmt.Errorf("torznab URL is required")
	}
	if cfg.TorznabKey == "" {
		return nil, fmt.Errorf("torznab API key is required")
	}

	limit := rate.Inf
	if cfg.SearchRatePerSecond > 0 {
		limit = rate.Limit(cfg.SearchRatePerSecond)
	}

	return &Client{
		baseURL:    cfg.TorznabURL,
		apiKey:     cfg.TorznabKey,
		minSeeders: cfg.MinSeeders,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(limit, 1),
		policy:  cfg.SearchPolicy,
		metrics: m,
		logger:  logger.With().Str("component", "torznab").Logger(),
	}, nil
}

// search performs a Torznab API query, retrying transient failures
func (c *Client) search(ctx context.Context, params url.Values) ([]Item, error) {
	apiURL, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid torznab URL: %w", err)
	}

	// Ensure path is /api
	if apiURL.Path == "" || apiURL.Path == "/" {
		apiURL.Path = "/api"
	}

	params.Set("apikey", c.apiKey)
	apiURL.RawQuery = params.Encode()

	c.logger.Debug().
		Str("search_type", params.Get("t")).
		Str("imdb_id", params.Get("imdbid")).
		Str("season", params.Get("season")).
		Str("episode", params.Get("ep")).
		Msg("Performing Torznab search")

	items, err := retry.Value(ctx, c.policy, func() ([]Item, error) {
		return c.fetch(ctx, apiURL.String())
	}, func(err error, attempt int, wait time.Duration) {
		c.logger.Warn().Err(err).Int("attempt", attempt).Dur("wait", wait).Msg("Torznab search failed, retrying")
	})

	if c.metrics != nil {
		result := "ok"
		if err != nil {
			result = "error"
		}
		c.metrics.SearchRequests.WithLabelValues(result).Inc()
	}
	if err != nil {
		return nil, err
	}

	c.logger.Debug().Int("count", len(items)).Msg("Torznab search completed")
	return items, nil
}

func (c *Client) fetch(ctx context.Context, finalURL string) ([]Item, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, finalURL, nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("User-Agent", "gostreamarr/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("torznab API request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := services.CheckResponse("torznab", resp); err != nil {
		return nil, err
	}

	var response Response
	if err := xml.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, retry.Permanent(fmt.Errorf("failed to parse XML response: %w", err))
	}

	return response.Channel.Items, nil
}

// GetAttributeValue extracts an attribute value by name from an Item
func GetAttributeValue(item Item, attrName string) string {
	for _, attr := range item.Attributes {
		if attr.Name == attrName {
			return attr.Value
		}
	}
	return ""
}

// GetAttributeValues returns every value of a repeated attribute such as category
func GetAttributeValues(item Item, attrName string) []string {
	var values []string
	for _, attr := range item.Attributes {
		if attr.Name == attrName {
			values = append(values, attr.Value)
		}
	}
	return values
}

// GetAttributeInt extracts an attribute value as integer
func GetAttributeInt(item Item, attrName string) *int {
	value := GetAttributeValue(item, attrName)
	if value == "" {
		return nil
	}

	intVal, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return nil
	}

	return &intVal
}

// GetAttributeInt64 extracts an attribute value as int64
func GetAttributeInt64(item Item, attrName string) int64 {
	value := GetAttributeValue(item, attrName)
	if value == "" {
		return 0
	}

	intVal, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0
	}

	return intVal
}
