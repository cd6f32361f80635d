package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/amaumene/gostreamarr/internal/api"
	"github.com/amaumene/gostreamarr/internal/cache"
	"github.com/amaumene/gostreamarr/internal/config"
	"github.com/amaumene/gostreamarr/internal/controllers"
	"github.com/amaumene/gostreamarr/internal/metrics"
	"github.com/amaumene/gostreamarr/internal/models"
	"github.com/amaumene/gostreamarr/internal/ranker"
	"github.com/amaumene/gostreamarr/internal/resolver"
	"github.com/amaumene/gostreamarr/internal/scheduler"
	"github.com/amaumene/gostreamarr/internal/services/realdebrid"
	"github.com/amaumene/gostreamarr/internal/services/torbox"
	"github.com/amaumene/gostreamarr/internal/services/torznab"
	"github.com/amaumene/gostreamarr/internal/services/trakt"
	"github.com/amaumene/gostreamarr/internal/utils"
)

// App is the wired application
type App struct {
	Server    *api.Server
	Scheduler *scheduler.Scheduler
	Streams   *controllers.StreamController
	Logger    zerolog.Logger
}

func provideDatabase(cfg *config.Config, logger zerolog.Logger) (*models.Database, func(), error) {
	db, err := models.NewDatabase(cfg.DatabaseFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	logger.Info().Str("config_dir", filepath.Dir(cfg.DatabaseFile)).Msg("Database initialized")

	return db, func() {
		if err := db.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close database")
		}
	}, nil
}

func provideBlacklist(cfg *config.Config, logger zerolog.Logger) *utils.Blacklist {
	blacklist, err := utils.LoadBlacklist(cfg.BlacklistFile)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to load blacklist, continuing without it")
		return utils.NewBlacklist()
	}
	logger.Info().Int("terms", blacklist.Len()).Msg("Blacklist loaded")
	return blacklist
}

func provideTracer(logger zerolog.Logger) (trace.Tracer, func()) {
	tp := utils.NewTracerProvider(logger)
	return tp.Tracer("github.com/amaumene/gostreamarr"), func() {
		_ = tp.Shutdown(context.Background())
	}
}

// provideFileLister returns nil when no TorBox key is configured; the ranker
// then relies on file lists embedded by the indexer
func provideFileLister(cfg *config.Config, logger zerolog.Logger) (ranker.FileLister, error) {
	if cfg.TorBoxAPIKey == "" {
		logger.Info().Msg("TorBox not configured, season packs need indexer file lists")
		return nil, nil
	}
	client, err := torbox.NewClient(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize TorBox client: %w", err)
	}
	return client, nil
}

func provideRanker(cfg *config.Config, blacklist *utils.Blacklist, lister ranker.FileLister, m *metrics.Metrics, logger zerolog.Logger) *ranker.Ranker {
	return ranker.New(ranker.Options{
		PreferredLanguages: cfg.PreferredLanguages,
		MinSimilarity:      cfg.MinSimilarity,
		Blacklist:          blacklist,
		FileLister:         lister,
		FileListPolicy:     cfg.SearchPolicy,
		Metrics:            m,
		Logger:             logger.With().Str("component", "ranker").Logger(),
	})
}

func provideWorkflow(cfg *config.Config, rd *realdebrid.Client, tracer trace.Tracer, m *metrics.Metrics, logger zerolog.Logger) *resolver.Workflow {
	return resolver.NewWorkflow(rd, cfg.ProviderPolicy, cfg.PollPolicy,
		resolver.WithLogger(logger.With().Str("component", "resolver").Logger()),
		resolver.WithTracer(tracer),
		resolver.WithMetrics(m),
	)
}

func provideProviders(rd *realdebrid.Client) controllers.ProviderFactory {
	return func(token string) resolver.Provider {
		return rd.WithToken(token)
	}
}

func provideCache(db *models.Database, m *metrics.Metrics, logger zerolog.Logger) *cache.Cache {
	return cache.New(db, logger.With().Str("component", "cache").Logger(), m)
}

func provideSearchController(cfg *config.Config, tz *torznab.Client, tr *trakt.Client, rk *ranker.Ranker, logger zerolog.Logger) *controllers.SearchController {
	return controllers.NewSearchController(tz, tr, rk, cfg.StreamCacheTTL, logger)
}

func provideScheduler(db *models.Database, search *controllers.SearchController, m *metrics.Metrics, logger zerolog.Logger) *scheduler.Scheduler {
	return scheduler.NewScheduler(db, search, m, logger)
}

func provideServer(cfg *config.Config, db *models.Database, search *controllers.SearchController, streams *controllers.StreamController, m *metrics.Metrics, logger zerolog.Logger) *api.Server {
	return api.NewServer(cfg, api.Deps{
		Records: db,
		Lists:   search,
		Streams: search,
		Player:  streams,
		Metrics: m,
	}, logger)
}

func newApp(server *api.Server, sched *scheduler.Scheduler, streams *controllers.StreamController, logger zerolog.Logger) *App {
	return &App{Server: server, Scheduler: sched, Streams: streams, Logger: logger}
}
