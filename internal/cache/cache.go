package cache

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/amaumene/gostreamarr/internal/metrics"
	"github.com/amaumene/gostreamarr/internal/models"
)

// Store is the persistent side of the cache
type Store interface {
	GetRecord(ctx context.Context, key models.ResolutionKey) (*models.ResolutionRecord, error)
	FindCompatible(ctx context.Context, infoHash string, mediaType models.MediaType) ([]*models.ResolutionRecord, error)
	UpsertRecord(ctx context.Context, record *models.ResolutionRecord) error
	TouchRecord(ctx context.Context, id uint) error
}

// ProduceFunc runs the resolution workflow
type ProduceFunc func(ctx context.Context) (*models.ResolutionRecord, error)

// RederiveFunc maps a stored record onto another file of the same torrent.
// It returns models.ErrNotFound when the record does not cover the file.
type RederiveFunc func(ctx context.Context, record *models.ResolutionRecord, filePath string) (*models.ResolutionRecord, error)

// Request describes one lookup
type Request struct {
	Key      models.ResolutionKey
	FilePath string       // file inside the torrent, empty for single-file matches
	Rederive RederiveFunc // optional, enables reuse of records for other files
}

// Cache answers resolution requests from the store, or runs the workflow once
// per key no matter how many callers ask concurrently
type Cache struct {
	store   Store
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  zerolog.Logger

	mu      sync.Mutex
	waiting map[string]int
}

// New creates a cache over store. m may be nil.
func New(store Store, logger zerolog.Logger, m *metrics.Metrics) *Cache {
	return &Cache{
		store:   store,
		metrics: m,
		logger:  logger,
		waiting: make(map[string]int),
	}
}

// Resolve returns the stored record for the key, a record re-derived from a
// compatible one, or the result of produce. Re-derivation and produce run
// once per key, detached from the caller's cancellation so that other waiters
// still get the outcome; a failed run is not remembered and the next request
// tries again.
func (c *Cache) Resolve(ctx context.Context, req Request, produce ProduceFunc) (*models.ResolutionRecord, error) {
	if record := c.exact(ctx, req.Key); record != nil {
		c.count("exact")
		return record, nil
	}

	key := req.Key.String()
	c.attach(key)
	defer c.detach(key)

	ch := c.group.DoChan(key, func() (interface{}, error) {
		bg := context.WithoutCancel(ctx)

		// another flight may have stored the record since our lookup
		if record := c.exact(bg, req.Key); record != nil {
			c.count("exact")
			return record, nil
		}
		if record := c.compatible(bg, req); record != nil {
			c.count("compatible")
			return record, nil
		}

		if c.metrics != nil {
			c.metrics.InFlight.Inc()
			defer c.metrics.InFlight.Dec()
		}
		record, err := produce(bg)
		if err != nil {
			c.count("failed")
			return nil, err
		}
		c.count("produced")

		record.InfoHash = req.Key.InfoHash
		record.MediaType = req.Key.MediaType
		record.MediaID = req.Key.MediaID
		if err := c.store.UpsertRecord(bg, record); err != nil {
			c.logger.Error().Err(err).Str("key", key).Msg("Failed to persist resolution record")
		}
		return record, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			c.count("shared")
		}
		record := *res.Val.(*models.ResolutionRecord)
		return &record, nil
	}
}

// Waiting returns the number of callers attached to an in-flight key
func (c *Cache) Waiting(key models.ResolutionKey) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.waiting[key.String()]
}

func (c *Cache) attach(key string) {
	c.mu.Lock()
	c.waiting[key]++
	c.mu.Unlock()
}

func (c *Cache) detach(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.waiting[key]--
	if c.waiting[key] <= 0 {
		delete(c.waiting, key)
	}
}

// exact returns the stored record for the key when it carries a link
func (c *Cache) exact(ctx context.Context, key models.ResolutionKey) *models.ResolutionRecord {
	record, err := c.store.GetRecord(ctx, key)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			c.logger.Error().Err(err).Str("key", key.String()).Msg("Failed to read resolution record")
		}
		return nil
	}
	if record.DirectLink == "" {
		return nil
	}
	if err := c.store.TouchRecord(ctx, record.ID); err != nil {
		c.logger.Warn().Err(err).Str("key", key.String()).Msg("Failed to touch resolution record")
	}
	return record
}

// compatible re-derives the requested file from a stored record of the same
// torrent and persists it under the request key
func (c *Cache) compatible(ctx context.Context, req Request) *models.ResolutionRecord {
	if req.FilePath == "" || req.Rederive == nil {
		return nil
	}
	log := c.logger.With().Str("key", req.Key.String()).Logger()

	compatible, err := c.store.FindCompatible(ctx, req.Key.InfoHash, req.Key.MediaType)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read compatible records")
		return nil
	}
	for _, candidate := range compatible {
		if candidate.MediaID == req.Key.MediaID {
			continue
		}
		derived, err := req.Rederive(ctx, candidate, req.FilePath)
		if errors.Is(err, models.ErrNotFound) {
			continue
		}
		if err != nil {
			log.Warn().Err(err).Uint("record", candidate.ID).Msg("Failed to re-derive link from compatible record")
			continue
		}

		derived.InfoHash = req.Key.InfoHash
		derived.MediaType = req.Key.MediaType
		derived.MediaID = req.Key.MediaID
		if err := c.store.UpsertRecord(ctx, derived); err != nil {
			log.Warn().Err(err).Msg("Failed to persist re-derived record")
		}
		log.Debug().Uint("from_record", candidate.ID).Msg("Re-derived link from compatible record")
		return derived
	}
	return nil
}

func (c *Cache) count(result string) {
	if c.metrics != nil {
		c.metrics.CacheLookups.WithLabelValues(result).Inc()
	}
}
