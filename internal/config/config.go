package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/amaumene/gostreamarr/internal/retry"
)

// Config holds all application configuration
type Config struct {
	// Trakt
	TraktClientID string

	// Torznab
	TorznabURL          string
	TorznabKey          string
	SearchRatePerSecond float64

	// Debrid
	RealDebridAPIKey string // default token when the request carries none
	TorBoxAPIKey     string // optional file lister

	// Ranking
	MinSeeders         int
	MinSimilarity      float64
	PreferredLanguages []string

	// Retry schedules
	SearchPolicy   retry.Policy
	ProviderPolicy retry.Policy
	PollPolicy     retry.Policy

	// Server
	ServerPort     string
	StreamCacheTTL time.Duration

	// Paths
	BlacklistFile string // $CONFIG_DIR/blacklist.txt
	DatabaseFile  string // $CONFIG_DIR/gostreamarr.db

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	v := viper.GetViper()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	// Load .env file if it exists (ignore if not found)
	_ = v.ReadInConfig()

	return LoadFrom(v)
}

// SetDefaults registers the default value of every optional key
func SetDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("MIN_SEEDERS", 1)
	v.SetDefault("MIN_SIMILARITY", 0.5)
	v.SetDefault("PREFERRED_LANGUAGES", "en")
	v.SetDefault("SEARCH_RATE_PER_SECOND", 2)
	v.SetDefault("STREAM_CACHE_MINUTES", 30)

	v.SetDefault("RETRY_MULTIPLIER", 2)
	v.SetDefault("SEARCH_MAX_ATTEMPTS", 3)
	v.SetDefault("SEARCH_INITIAL_DELAY", "500ms")
	v.SetDefault("SEARCH_MAX_DELAY", "5s")
	v.SetDefault("PROVIDER_MAX_ATTEMPTS", 4)
	v.SetDefault("PROVIDER_INITIAL_DELAY", "1s")
	v.SetDefault("PROVIDER_MAX_DELAY", "10s")
	v.SetDefault("POLL_MAX_ATTEMPTS", 30)
	v.SetDefault("POLL_INITIAL_DELAY", "2s")
	v.SetDefault("POLL_MAX_DELAY", "20s")
	v.SetDefault("POLL_MULTIPLIER", 1.5)
}

// LoadFrom builds the configuration from an already populated viper instance
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	configDir := v.GetString("CONFIG_DIR")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config", "gostreamarr")
	} else {
		absPath, err := filepath.Abs(configDir)
		if err != nil {
			return nil, fmt.Errorf("failed to get absolute path for CONFIG_DIR: %w", err)
		}
		configDir = absPath
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	multiplier := v.GetFloat64("RETRY_MULTIPLIER")

	config := &Config{
		TraktClientID: v.GetString("TRAKT_CLIENT_ID"),

		TorznabURL:          strings.TrimRight(v.GetString("TORZNAB_URL"), "/"),
		TorznabKey:          v.GetString("TORZNAB_KEY"),
		SearchRatePerSecond: v.GetFloat64("SEARCH_RATE_PER_SECOND"),

		RealDebridAPIKey: v.GetString("REALDEBRID_API_KEY"),
		TorBoxAPIKey:     v.GetString("TORBOX_API_KEY"),

		MinSeeders:         v.GetInt("MIN_SEEDERS"),
		MinSimilarity:      v.GetFloat64("MIN_SIMILARITY"),
		PreferredLanguages: splitList(v.GetString("PREFERRED_LANGUAGES")),

		SearchPolicy: retry.Policy{
			MaxAttempts:  v.GetInt("SEARCH_MAX_ATTEMPTS"),
			InitialDelay: v.GetDuration("SEARCH_INITIAL_DELAY"),
			MaxDelay:     v.GetDuration("SEARCH_MAX_DELAY"),
			Multiplier:   multiplier,
		},
		ProviderPolicy: retry.Policy{
			MaxAttempts:  v.GetInt("PROVIDER_MAX_ATTEMPTS"),
			InitialDelay: v.GetDuration("PROVIDER_INITIAL_DELAY"),
			MaxDelay:     v.GetDuration("PROVIDER_MAX_DELAY"),
			Multiplier:   multiplier,
		},
		PollPolicy: retry.Policy{
			MaxAttempts:  v.GetInt("POLL_MAX_ATTEMPTS"),
			InitialDelay: v.GetDuration("POLL_INITIAL_DELAY"),
			MaxDelay:     v.GetDuration("POLL_MAX_DELAY"),
			Multiplier:   v.GetFloat64("POLL_MULTIPLIER"),
		},

		ServerPort:     v.GetString("SERVER_PORT"),
		StreamCacheTTL: time.Duration(v.GetInt("STREAM_CACHE_MINUTES")) * time.Minute,

		BlacklistFile: filepath.Join(configDir, "blacklist.txt"),
		DatabaseFile:  filepath.Join(configDir, "gostreamarr.db"),

		LogLevel: v.GetString("LOG_LEVEL"),
	}

	// Validate required fields
	if config.TraktClientID == "" {
		return nil, fmt.Errorf("TRAKT_CLIENT_ID is required")
	}
	if config.TorznabURL == "" {
		return nil, fmt.Errorf("TORZNAB_URL is required")
	}
	if config.TorznabKey == "" {
		return nil, fmt.Errorf("TORZNAB_KEY is required")
	}
	if config.MinSimilarity < 0 || config.MinSimilarity > 1 {
		return nil, fmt.Errorf("MIN_SIMILARITY must be between 0 and 1, got %v", config.MinSimilarity)
	}

	return config, nil
}

// splitList parses "ta, en,fr" into lowercase entries
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
