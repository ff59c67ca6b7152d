package config

import (
	"os"
	"strconv"
	"time"

	"github.com/Conceptual-Machines/magda-groove/internal/groove/timeline"
)

// Config holds the application configuration
type Config struct {
	// Environment
	Environment string
	Port        string

	// Storage
	DatabaseURL string // postgres://... or a sqlite path; empty uses a local sqlite file
	RedisURL    string // optional; empty disables the track cache
	CacheTTL    time.Duration

	// Generation defaults, overridable per song design
	TicksPerQuarter int
	FillWindowBars  int
	MaxBatchSeeds   int

	// Observability
	SentryDSN string // Sentry DSN for error tracking
	LogDebug  bool
}

func Load() *Config {
	return &Config{
		Environment:     getEnv("ENVIRONMENT", "development"),
		Port:            getEnv("PORT", "8080"),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		RedisURL:        getEnv("REDIS_URL", ""),
		CacheTTL:        time.Duration(getEnvInt("CACHE_TTL_SECONDS", 86400)) * time.Second,
		TicksPerQuarter: getEnvInt("TICKS_PER_QUARTER", timeline.DefaultTicksPerQuarter),
		FillWindowBars:  getEnvInt("FILL_WINDOW_BARS", 1),
		MaxBatchSeeds:   getEnvInt("MAX_BATCH_SEEDS", 16),
		SentryDSN:       getEnv("SENTRY_DSN", ""),
		LogDebug:        getEnv("LOG_DEBUG", "false") == "true",
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt falls back to defaultValue when the variable is unset or not a
// number
func getEnvInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return n
}

// IsProduction returns true in the production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// TimelineOptions returns the bar construction defaults
func (c *Config) TimelineOptions() timeline.Options {
	return timeline.Options{
		TicksPerQuarter: c.TicksPerQuarter,
		FillWindowBars:  c.FillWindowBars,
	}
}
