package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/amaumene/gostreamarr/internal/metrics"
)

// RecordCounter counts persisted resolution records
type RecordCounter interface {
	CountByMediaType(ctx context.Context) (map[string]int64, error)
}

// ListCache reports the number of cached ranked lists
type ListCache interface {
	CachedLists() int
}

// Scheduler manages scheduled tasks
type Scheduler struct {
	cron    *cron.Cron
	records RecordCounter
	lists   ListCache
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewScheduler creates a new scheduler. lists and m may be nil.
func NewScheduler(records RecordCounter, lists ListCache, m *metrics.Metrics, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		records: records,
		lists:   lists,
		metrics: m,
		logger:  logger.With().Str("component", "scheduler").Logger(),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.logger.Info().Msg("Starting scheduler")

	// Every 5 minutes: refresh record gauges and log cache stats
	_, err := s.cron.AddFunc("*/5 * * * *", s.runStats)
	if err != nil {
		return fmt.Errorf("failed to add stats job: %w", err)
	}

	s.cron.Start()
	s.logger.Info().Msg("Scheduler started")

	go s.runStats()
	return nil
}

// Stop stops the scheduler and waits for a running job
func (s *Scheduler) Stop() {
	s.logger.Info().Msg("Stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runStats() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.RefreshStats(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Stats job failed")
	}
}

// RefreshStats updates the record gauges from the store
func (s *Scheduler) RefreshStats(ctx context.Context) error {
	counts, err := s.records.CountByMediaType(ctx)
	if err != nil {
		return fmt.Errorf("failed to count records: %w", err)
	}

	var total int64
	for mediaType, n := range counts {
		total += n
		if s.metrics != nil {
			s.metrics.Records.WithLabelValues(mediaType).Set(float64(n))
		}
	}

	event := s.logger.Debug().Int64("records", total)
	if s.lists != nil {
		event = event.Int("cached_lists", s.lists.CachedLists())
	}
	event.Msg("Refreshed stats")
	return nil
}
