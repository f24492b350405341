// Package config provides centralized configuration loaded from environment
// variables. Shared by all tracker subcommands.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Table names — single source of truth, matches the bootstrap schema
// --------------------------------------------------------------------------

const (
	PlayersTable = "players"
	StatsTable   = "stats"
	AlertsTable  = "alerts"
)

// --------------------------------------------------------------------------
// Config struct — populated from environment variables
// --------------------------------------------------------------------------

type Config struct {
	// Database
	DatabaseURL    string
	DBPoolMinConns int
	DBPoolMaxConns int
	DBPoolMaxLife  time.Duration

	// Upstream stats API
	BDLAPIKey         string
	BDLBaseURL        string
	RequestsPerMinute int
	HTTPTimeout       time.Duration

	// Refresh engine
	TrackedPlayers  []string
	RefreshInterval time.Duration
	CacheTTL        time.Duration
	StatsWindowDays int

	// Status API server
	APIHost     string
	APIPort     int
	Environment string // development, staging, production
	Debug       bool

	// CORS
	CORSAllowOrigins []string

	// Rate limiting
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Alert delivery
	AlertWebhookURL string
}

// Load reads configuration from environment variables with sensible defaults.
// DATABASE_URL is validated by the commands that need storage, not here, so
// the on-demand fetch commands work without a database.
func Load() (*Config, error) {
	return &Config{
		DatabaseURL:    envOr("DATABASE_URL", ""),
		DBPoolMinConns: envInt("DB_POOL_MIN_CONNS", 1),
		DBPoolMaxConns: envInt("DB_POOL_MAX_CONNS", 4),
		DBPoolMaxLife:  time.Duration(envInt("DB_POOL_MAX_LIFE_MINUTES", 30)) * time.Minute,

		BDLAPIKey:         envOr("BALLDONTLIE_API_KEY", ""),
		BDLBaseURL:        envOr("BDL_BASE_URL", "https://api.balldontlie.io/v1"),
		RequestsPerMinute: envInt("BDL_REQUESTS_PER_MINUTE", 60),
		HTTPTimeout:       time.Duration(envInt("HTTP_TIMEOUT_SECONDS", 10)) * time.Second,

		TrackedPlayers:  envList("TRACKED_PLAYERS", nil),
		RefreshInterval: time.Duration(envInt("REFRESH_INTERVAL_SECONDS", 300)) * time.Second,
		CacheTTL:        time.Duration(envInt("CACHE_TTL_SECONDS", 300)) * time.Second,
		StatsWindowDays: envInt("STATS_WINDOW_DAYS", 30),

		APIHost:     envOr("API_HOST", "0.0.0.0"),
		APIPort:     envInt("API_PORT", envInt("PORT", 8000)),
		Environment: envOr("ENVIRONMENT", "development"),
		Debug:       envBool("DEBUG", false),

		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{
			"http://localhost:3000",
			"http://localhost:5173",
		}),

		RateLimitEnabled:  envBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   time.Duration(envInt("RATE_LIMIT_WINDOW", 60)) * time.Second,

		AlertWebhookURL: envOr("ALERT_WEBHOOK_URL", ""),
	}, nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
