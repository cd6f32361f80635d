package api

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/rs/zerolog"

	"github.com/amaumene/gostreamarr/internal/api/handlers"
	"github.com/amaumene/gostreamarr/internal/api/middleware"
	"github.com/amaumene/gostreamarr/internal/config"
	"github.com/amaumene/gostreamarr/internal/metrics"
)

// Deps are the collaborators the HTTP routes need
type Deps struct {
	Records handlers.RecordCounter
	Lists   handlers.ListCache
	Streams handlers.StreamLister
	Player  handlers.Player
	Metrics *metrics.Metrics // optional, enables /metrics
}

// Server represents the HTTP server
type Server struct {
	app    *fiber.App
	addr   string
	logger zerolog.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.Config, deps Deps, logger zerolog.Logger) *Server {
	logger = logger.With().Str("component", "api").Logger()

	s := &Server{
		app: fiber.New(fiber.Config{
			DisableStartupMessage: true,
			ReadTimeout:           15 * time.Second,
			// play requests wait for the provider
			WriteTimeout: 5 * time.Minute,
			IdleTimeout:  60 * time.Second,
		}),
		addr:   ":" + cfg.ServerPort,
		logger: logger,
	}

	s.app.Use(middleware.Logging(logger))
	s.setupRoutes(deps)
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(deps Deps) {
	s.app.Get("/health", handlers.NewHealthHandler().Handle)
	s.app.Get("/status", handlers.NewStatusHandler(deps.Records, deps.Lists, s.logger).Handle)

	if deps.Metrics != nil {
		s.app.Get("/metrics", adaptor.HTTPHandler(deps.Metrics.Handler()))
	}

	streams := handlers.NewStreamHandler(deps.Streams, deps.Player, s.logger)
	s.app.Get("/stream/:type/:id", streams.List)
	s.app.Get("/:token/stream/:type/:id", streams.List)
	s.app.Get("/:token/play/:type/:id/:hash", streams.Play)
}

// App exposes the fiber application
func (s *Server) App() *fiber.App {
	return s.app
}

// Start serves until ctx is done, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info().Str("addr", s.addr).Msg("Starting HTTP server")

	errChan := make(chan error, 1)
	go func() {
		if err := s.app.Listen(s.addr); err != nil {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown() error {
	s.logger.Info().Msg("Shutting down HTTP server")
	return s.app.ShutdownWithTimeout(10 * time.Second)
}
