//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"
	"github.com/rs/zerolog"

	"github.com/amaumene/gostreamarr/internal/config"
	"github.com/amaumene/gostreamarr/internal/controllers"
	"github.com/amaumene/gostreamarr/internal/metrics"
	"github.com/amaumene/gostreamarr/internal/services/realdebrid"
	"github.com/amaumene/gostreamarr/internal/services/torznab"
	"github.com/amaumene/gostreamarr/internal/services/trakt"
)

func initializeApp(cfg *config.Config, logger zerolog.Logger) (*App, func(), error) {
	wire.Build(
		metrics.New,
		provideDatabase,
		provideBlacklist,
		provideTracer,
		provideFileLister,
		provideRanker,
		torznab.NewClient,
		trakt.NewClient,
		realdebrid.NewClient,
		provideWorkflow,
		provideProviders,
		provideCache,
		provideSearchController,
		controllers.NewStreamController,
		provideScheduler,
		provideServer,
		newApp,
	)
	return nil, nil, nil
}
