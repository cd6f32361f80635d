package controllers

import (
	"context"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/amaumene/gostreamarr/internal/models"
	"github.com/amaumene/gostreamarr/internal/ranker"
	"github.com/amaumene/gostreamarr/internal/services/torznab"
	"github.com/amaumene/gostreamarr/internal/services/trakt"
)

// Searcher queries the indexer
type Searcher interface {
	Search(ctx context.Context, q torznab.Query) ([]models.TorrentCandidate, error)
}

// MetadataSource resolves an IMDB id to a canonical title
type MetadataSource interface {
	Lookup(ctx context.Context, mediaType models.MediaType, imdbID string) (*trakt.Metadata, error)
}

// SearchController turns a media request into a ranked candidate list
type SearchController struct {
	searcher Searcher
	metadata MetadataSource
	ranker   *ranker.Ranker
	streams  *gocache.Cache
	group    singleflight.Group
	logger   zerolog.Logger
}

// NewSearchController creates a new search controller. Ranked lists are kept
// for ttl so the play endpoint finds the candidate the user picked.
func NewSearchController(searcher Searcher, metadata MetadataSource, rk *ranker.Ranker, ttl time.Duration, logger zerolog.Logger) *SearchController {
	return &SearchController{
		searcher: searcher,
		metadata: metadata,
		ranker:   rk,
		streams:  gocache.New(ttl, 2*ttl),
		logger:   logger.With().Str("component", "search").Logger(),
	}
}

// Streams returns the ranked candidates for req, best first
func (c *SearchController) Streams(ctx context.Context, req models.MediaRequest) ([]ranker.ScoredCandidate, error) {
	key := string(req.Type) + ":" + req.ID()
	if cached, ok := c.streams.Get(key); ok {
		return cached.([]ranker.ScoredCandidate), nil
	}

	// the search runs detached so callers sharing the flight are not failed
	// by the one that started it going away
	ch := c.group.DoChan(key, func() (interface{}, error) {
		ranked, err := c.search(context.WithoutCancel(ctx), req)
		if err == nil && len(ranked) > 0 {
			c.streams.SetDefault(key, ranked)
		}
		return ranked, err
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]ranker.ScoredCandidate), nil
	}
}

// Candidate finds a ranked candidate by info hash
func (c *SearchController) Candidate(ctx context.Context, req models.MediaRequest, infoHash string) (ranker.ScoredCandidate, bool, error) {
	ranked, err := c.Streams(ctx, req)
	if err != nil {
		return ranker.ScoredCandidate{}, false, err
	}
	for _, sc := range ranked {
		if strings.EqualFold(sc.Candidate.InfoHash, infoHash) {
			return sc, true, nil
		}
	}
	return ranker.ScoredCandidate{}, false, nil
}

// CachedLists returns how many ranked lists are currently kept
func (c *SearchController) CachedLists() int {
	return c.streams.ItemCount()
}

func (c *SearchController) search(ctx context.Context, req models.MediaRequest) ([]ranker.ScoredCandidate, error) {
	log := c.logger.With().Str("media_id", req.ID()).Logger()

	meta, err := c.metadata.Lookup(ctx, req.Type, req.IMDBID)
	if err != nil {
		return nil, fmt.Errorf("metadata lookup failed: %w", err)
	}

	log.Info().Str("title", meta.Title).Int("year", meta.Year).Msg("Starting media search")

	candidates, err := c.searcher.Search(ctx, torznab.QueryFor(req, meta.Title))
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	result := c.ranker.Rank(ctx, candidates, ranker.Target{
		Type:    req.Type,
		Title:   meta.Title,
		Year:    meta.Year,
		Season:  req.Season,
		Episode: req.Episode,
	})

	for _, r := range result.Rejected {
		log.Debug().Str("hash", r.Candidate.InfoHash).Str("reason", r.Reason).Str("detail", r.Detail).Msg("Candidate rejected")
	}
	log.Info().
		Int("candidates", len(candidates)).
		Int("ranked", len(result.Ranked)).
		Msg("Search completed")

	return result.Ranked, nil
}
