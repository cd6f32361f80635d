package trakt

import (
	"context"
	"fmt"
	"net/url"

	"github.com/amaumene/gostreamarr/internal/models"
)

// Metadata is the canonical identity of a movie or show
type Metadata struct {
	Title string
	Year  int
	IMDB  string
}

type media struct {
	Title string `json:"title"`
	Year  int    `json:"year"`
	IDs   struct {
		IMDB  string `json:"imdb"`
		Trakt int    `json:"trakt"`
	} `json:"ids"`
}

// searchResult represents one entry of /search/imdb/{id}
type searchResult struct {
	Type  string `json:"type"` // "movie" or "show"
	Movie *media `json:"movie,omitempty"`
	Show  *media `json:"show,omitempty"`
}

// Lookup returns the canonical title and year for an IMDB id. Answers are
// cached for a day.
func (c *Client) Lookup(ctx context.Context, mediaType models.MediaType, imdbID string) (*Metadata, error) {
	traktType := "movie"
	if mediaType == models.MediaTypeSeries {
		traktType = "show"
	}

	key := traktType + ":" + imdbID
	if cached, ok := c.cache.Get(key); ok {
		meta := cached.(Metadata)
		return &meta, nil
	}

	path := fmt.Sprintf("/search/imdb/%s?type=%s", url.PathEscape(imdbID), traktType)

	var results []searchResult
	if err := c.doRequest(ctx, path, &results); err != nil {
		return nil, fmt.Errorf("failed to look up %s: %w", imdbID, err)
	}

	for _, r := range results {
		m := r.Movie
		if r.Type == "show" {
			m = r.Show
		}
		if r.Type != traktType || m == nil || m.Title == "" {
			continue
		}

		meta := Metadata{Title: m.Title, Year: m.Year, IMDB: imdbID}
		c.cache.SetDefault(key, meta)
		c.logger.Debug().Str("imdb_id", imdbID).Str("title", meta.Title).Int("year", meta.Year).Msg("Resolved metadata")
		return &meta, nil
	}

	return nil, fmt.Errorf("no %s found for %s: %w", traktType, imdbID, models.ErrNotFound)
}
