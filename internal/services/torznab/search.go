package torznab

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/anacrolix/torrent/metainfo"

	"github.com/amaumene/gostreamarr/internal/models"
)

// Top level Torznab categories
const (
	CategoryMovies = 2000
	CategoryTV     = 5000
)

// Query describes what to search for. Episode 0 searches a whole season.
type Query struct {
	Type    models.MediaType
	IMDBID  string
	Title   string // free text fallback when the indexer ignores imdbid
	Season  int
	Episode int
}

// QueryFor builds the query for a media request
func QueryFor(req models.MediaRequest, title string) Query {
	return Query{
		Type:    req.Type,
		IMDBID:  req.IMDBID,
		Title:   title,
		Season:  req.Season,
		Episode: req.Episode,
	}
}

// Search returns the candidates for a movie, or for an episode plus the packs
// of its season. Results are deduplicated by info hash.
func (c *Client) Search(ctx context.Context, q Query) ([]models.TorrentCandidate, error) {
	if q.Type == models.MediaTypeMovie {
		return c.searchMovie(ctx, q)
	}

	c.logger.Debug().
		Str("imdb_id", q.IMDBID).
		Int("season", q.Season).
		Int("episode", q.Episode).
		Msg("Searching for TV episode and season packs")

	episodes, epErr := c.searchTV(ctx, q)
	if epErr != nil {
		c.logger.Warn().Err(epErr).Str("imdb_id", q.IMDBID).Msg("Episode search failed")
	}

	season := q
	season.Episode = 0
	packs, packErr := c.searchTV(ctx, season)
	if packErr != nil {
		c.logger.Warn().Err(packErr).Str("imdb_id", q.IMDBID).Msg("Season search failed")
	}

	if epErr != nil && packErr != nil {
		return nil, fmt.Errorf("series search failed: %w", errors.Join(epErr, packErr))
	}

	return dedupe(append(episodes, packs...)), nil
}

func (c *Client) searchMovie(ctx context.Context, q Query) ([]models.TorrentCandidate, error) {
	params := url.Values{}
	params.Set("t", "movie")
	params.Set("cat", strconv.Itoa(CategoryMovies))
	params.Set("imdbid", q.IMDBID)

	items, err := c.search(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("movie search failed: %w", err)
	}

	if len(items) == 0 && q.Title != "" {
		params.Del("imdbid")
		params.Set("t", "search")
		params.Set("q", q.Title)
		if items, err = c.search(ctx, params); err != nil {
			return nil, fmt.Errorf("movie search failed: %w", err)
		}
	}

	return dedupe(c.convertResults(items, CategoryMovies)), nil
}

func (c *Client) searchTV(ctx context.Context, q Query) ([]models.TorrentCandidate, error) {
	params := url.Values{}
	params.Set("t", "tvsearch")
	params.Set("cat", strconv.Itoa(CategoryTV))
	params.Set("imdbid", q.IMDBID)
	params.Set("season", strconv.Itoa(q.Season))
	if q.Episode > 0 {
		params.Set("ep", strconv.Itoa(q.Episode))
	}

	items, err := c.search(ctx, params)
	if err != nil {
		return nil, err
	}

	if len(items) == 0 && q.Title != "" {
		params.Del("imdbid")
		params.Set("q", q.Title)
		if items, err = c.search(ctx, params); err != nil {
			return nil, err
		}
	}

	return c.convertResults(items, CategoryTV), nil
}

// convertResults converts Torznab Items to candidates, dropping items without
// an info hash, below the seeder floor, or outside the category
func (c *Client) convertResults(items []Item, category int) []models.TorrentCandidate {
	results := make([]models.TorrentCandidate, 0, len(items))

	for _, item := range items {
		if !inCategory(item, category) {
			continue
		}

		hash, magnet := infoHash(item)
		if hash == "" {
			c.logger.Debug().Str("title", item.Title).Msg("Skipping result without info hash")
			continue
		}

		candidate := models.TorrentCandidate{
			Name:     item.Title,
			InfoHash: hash,
			Magnet:   magnet,
			Size:     GetAttributeInt64(item, "size"),
		}
		if candidate.Size == 0 {
			candidate.Size = item.Size
		}
		if candidate.Size == 0 {
			candidate.Size = item.Enclosure.Length
		}

		if seeders := GetAttributeInt(item, "seeders"); seeders != nil {
			candidate.Seeders = *seeders
		}
		if peers := GetAttributeInt(item, "peers"); peers != nil && *peers > candidate.Seeders {
			candidate.Leechers = *peers - candidate.Seeders
		}
		if candidate.Seeders < c.minSeeders {
			continue
		}

		for _, lang := range strings.Split(GetAttributeValue(item, "language"), ",") {
			if lang = strings.TrimSpace(lang); lang != "" {
				candidate.Languages = append(candidate.Languages, lang)
			}
		}

		results = append(results, candidate)
	}

	return results
}

// inCategory accepts items without category attributes, or with at least one
// in the top level category's range (5000-5999 for TV)
func inCategory(item Item, category int) bool {
	values := GetAttributeValues(item, "category")
	if len(values) == 0 {
		return true
	}
	for _, v := range values {
		cat, err := strconv.Atoi(strings.TrimSpace(v))
		if err == nil && cat >= category && cat < category+1000 {
			return true
		}
	}
	return false
}

// infoHash returns the lowercase hex info hash and the magnet URI, if any
func infoHash(item Item) (string, string) {
	magnet := GetAttributeValue(item, "magneturl")
	if magnet == "" {
		for _, link := range []string{item.Link, item.Enclosure.URL, item.GUID} {
			if strings.HasPrefix(link, "magnet:") {
				magnet = link
				break
			}
		}
	}

	if raw := GetAttributeValue(item, "infohash"); raw != "" {
		var h metainfo.Hash
		if err := h.FromHexString(strings.TrimSpace(raw)); err == nil {
			return h.HexString(), magnet
		}
	}

	if magnet != "" {
		m, err := metainfo.ParseMagnetUri(magnet)
		if err == nil {
			return m.InfoHash.HexString(), magnet
		}
	}

	return "", ""
}

// dedupe keeps the best seeded entry per info hash, in first seen order
func dedupe(candidates []models.TorrentCandidate) []models.TorrentCandidate {
	index := make(map[string]int, len(candidates))
	out := make([]models.TorrentCandidate, 0, len(candidates))
	for _, c := range candidates {
		if i, ok := index[c.InfoHash]; ok {
			if c.Seeders > out[i].Seeders {
				out[i] = c
			}
			continue
		}
		index[c.InfoHash] = len(out)
		out = append(out, c)
	}
	return out
}
