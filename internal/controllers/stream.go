package controllers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/amaumene/gostreamarr/internal/cache"
	"github.com/amaumene/gostreamarr/internal/models"
	"github.com/amaumene/gostreamarr/internal/ranker"
	"github.com/amaumene/gostreamarr/internal/resolver"
)

// ErrNoStream is returned when no candidate could be turned into a link
var ErrNoStream = errors.New("no stream available")

// maxCandidates bounds how many ranked candidates ResolveBest tries
const maxCandidates = 3

// ProviderFactory returns the provider acting for an account token
type ProviderFactory func(token string) resolver.Provider

// StreamController resolves ranked candidates into direct links
type StreamController struct {
	search    *SearchController
	cache     *cache.Cache
	workflow  *resolver.Workflow
	providers ProviderFactory
	logger    zerolog.Logger
}

// NewStreamController creates a new stream controller. providers may be nil,
// in which case the workflow's own provider is used for every token.
func NewStreamController(search *SearchController, c *cache.Cache, workflow *resolver.Workflow, providers ProviderFactory, logger zerolog.Logger) *StreamController {
	return &StreamController{
		search:    search,
		cache:     c,
		workflow:  workflow,
		providers: providers,
		logger:    logger.With().Str("component", "stream").Logger(),
	}
}

// Play returns the direct link for the candidate identified by infoHash
func (c *StreamController) Play(ctx context.Context, req models.MediaRequest, infoHash, token string) (string, error) {
	sc, ok, err := c.search.Candidate(ctx, req, infoHash)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoStream, err)
	}
	if !ok {
		return "", fmt.Errorf("%w: %s is not a candidate for %s", ErrNoStream, infoHash, req.ID())
	}

	record, err := c.resolve(ctx, req, sc, token)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoStream, err)
	}
	return record.DirectLink, nil
}

// ResolveBest resolves the best candidate, falling back to the next ones when
// the provider fails
func (c *StreamController) ResolveBest(ctx context.Context, req models.MediaRequest, token string) (*models.ResolutionRecord, error) {
	ranked, err := c.search.Streams(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoStream, err)
	}
	if len(ranked) == 0 {
		return nil, ErrNoStream
	}

	var errs []error
	for i, sc := range ranked {
		if i == maxCandidates {
			break
		}
		record, err := c.resolve(ctx, req, sc, token)
		if err == nil {
			return record, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		errs = append(errs, err)
		c.logger.Warn().Err(err).Str("hash", sc.Candidate.InfoHash).Int("rank", i+1).Msg("Candidate failed, trying next")
	}
	return nil, fmt.Errorf("%w: %w", ErrNoStream, errors.Join(errs...))
}

func (c *StreamController) resolve(ctx context.Context, req models.MediaRequest, sc ranker.ScoredCandidate, token string) (*models.ResolutionRecord, error) {
	wf := c.workflow
	if c.providers != nil {
		wf = wf.WithProvider(c.providers(token))
	}

	job := resolver.Job{
		Key: models.ResolutionKey{
			InfoHash:  strings.ToLower(sc.Candidate.InfoHash),
			MediaType: req.Type,
			MediaID:   req.ID(),
		},
		Candidate: sc.Candidate,
		FileIndex: sc.FileIndex,
		FilePath:  sc.FilePath,
		Language:  sc.Language,
		Quality:   sc.Descriptor.Resolution,
	}

	return c.cache.Resolve(ctx, cache.Request{
		Key:      job.Key,
		FilePath: sc.FilePath,
		Rederive: wf.Rederive,
	}, func(ctx context.Context) (*models.ResolutionRecord, error) {
		return wf.Run(ctx, job)
	})
}
