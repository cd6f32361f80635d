package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/amaumene/gostreamarr/internal/config"
	"github.com/amaumene/gostreamarr/internal/matcher"
	"github.com/amaumene/gostreamarr/internal/models"
	"github.com/amaumene/gostreamarr/internal/parser"
	"github.com/amaumene/gostreamarr/internal/utils"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "gostreamarr",
		Short:         "Find, rank and resolve torrents into direct streaming links",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	_ = viper.BindPFlag("LOG_LEVEL", root.PersistentFlags().Lookup("log-level"))

	root.AddCommand(newServeCmd(), newResolveCmd(), newParseCmd())
	return root
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
	cmd.Flags().String("port", "", "HTTP listen port")
	_ = viper.BindPFlag("SERVER_PORT", cmd.Flags().Lookup("port"))
	return cmd
}

func serve(ctx context.Context) error {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// 2. Setup logger
	logger := utils.NewLogger(cfg.LogLevel)
	logger.Info().Msg("Starting Gostreamarr")

	// 3. Wire services, controllers and server
	app, cleanup, err := initializeApp(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	// 4. Start scheduler
	if err := app.Scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer app.Scheduler.Stop()

	// 5. Serve until a shutdown signal arrives
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info().Msg("Gostreamarr is running")
	if err := app.Server.Start(ctx); err != nil {
		return err
	}

	logger.Info().Msg("Gostreamarr stopped")
	return nil
}

func newResolveCmd() *cobra.Command {
	var mediaType, id, token string

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Search, rank and resolve one movie or episode, printing the record",
		Example: "  gostreamarr resolve --type movie --id tt0133093\n" +
			"  gostreamarr resolve --type series --id tt0903747:1:5 --token $RD_TOKEN",
		RunE: func(cmd *cobra.Command, args []string) error {
			mt, err := models.ParseMediaType(mediaType)
			if err != nil {
				return err
			}
			req, err := models.ParseMediaRequest(mt, id)
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			logger := utils.NewLogger(cfg.LogLevel)

			app, cleanup, err := initializeApp(cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			record, err := app.Streams.ResolveBest(ctx, req, token)
			if err != nil {
				return err
			}
			return printJSON(cmd, record)
		},
	}
	cmd.Flags().StringVar(&mediaType, "type", "movie", "media type (movie or series)")
	cmd.Flags().StringVar(&id, "id", "", "IMDB id, imdb:season:episode for series")
	cmd.Flags().StringVar(&token, "token", "", "Real-Debrid token, defaults to REALDEBRID_API_KEY")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newParseCmd() *cobra.Command {
	var season, episode int

	cmd := &cobra.Command{
		Use:   "parse <name>",
		Short: "Show how a release name is parsed and whether it matches an episode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := parser.Parse(args[0])
			out := struct {
				parser.Descriptor
				Verdict string `json:"verdict,omitempty"`
			}{Descriptor: d}
			if season > 0 {
				out.Verdict = matcher.MatchTorrent(d, season, episode).String()
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().IntVar(&season, "season", 0, "target season")
	cmd.Flags().IntVar(&episode, "episode", 0, "target episode")
	return cmd
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
