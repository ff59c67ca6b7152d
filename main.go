package main

import (
	"context"
	"log"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/Conceptual-Machines/magda-groove/internal/api"
	"github.com/Conceptual-Machines/magda-groove/internal/api/handlers"
	"github.com/Conceptual-Machines/magda-groove/internal/cache"
	"github.com/Conceptual-Machines/magda-groove/internal/config"
	"github.com/Conceptual-Machines/magda-groove/internal/database"
	"github.com/Conceptual-Machines/magda-groove/internal/logger"
	"github.com/Conceptual-Machines/magda-groove/internal/metrics"
	"github.com/Conceptual-Machines/magda-groove/internal/services"
)

const (
	sentryFlushTimeout = 2 * time.Second
)

// releaseVersion is set via ldflags during build
var releaseVersion = "dev"

// GetVersion returns the current release version
func GetVersion() string {
	return releaseVersion
}

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()
	logger.SetDebug(cfg.LogDebug)

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.Environment,
			Release:          "magda-groove@" + releaseVersion,
			EnableTracing:    true,
			TracesSampleRate: 1.0,
			EnableLogs:       true,
			Debug:            !cfg.IsProduction(),
			BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
				if event.Request != nil {
					event.Request.Headers = filterSensitiveHeaders(event.Request.Headers)
				}
				return event
			},
		}); err != nil {
			log.Printf("Failed to initialize Sentry: %v", err)
		} else {
			log.Printf("Sentry initialized (environment: %s, release: %s)", cfg.Environment, releaseVersion)
			defer sentry.Flush(sentryFlushTimeout)
		}
	} else {
		log.Println("Sentry not configured (SENTRY_DSN not set)")
	}

	ctx := context.Background()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		sentry.CaptureException(err)
		log.Fatal("Failed to connect to database:", err)
	}
	if err := database.Migrate(db); err != nil {
		sentry.CaptureException(err)
		log.Fatal("Failed to run migrations:", err)
	}

	cw, err := metrics.NewClient(ctx, cfg.Environment)
	if err != nil {
		log.Fatal("Failed to create CloudWatch client:", err)
	}
	recorder := metrics.NewRecorder(cw)

	checks := map[string]handlers.Check{
		"database": func(ctx context.Context) error { return database.Ping(ctx, db) },
	}
	options := []services.GrooveOption{
		services.WithStore(database.NewRunStore(db)),
		services.WithMetrics(recorder),
	}
	if cfg.RedisURL != "" {
		trackCache, err := cache.New(cfg.RedisURL, cfg.CacheTTL)
		if err != nil {
			sentry.CaptureException(err)
			log.Fatal("Failed to configure track cache:", err)
		}
		defer trackCache.Close()
		options = append(options, services.WithCache(trackCache))
		checks["redis"] = trackCache.Ping
	} else {
		log.Println("Track cache disabled (REDIS_URL not set)")
	}

	svc := services.NewGrooveService(cfg.TimelineOptions(), cfg.MaxBatchSeeds, options...)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := api.SetupRouter(api.Dependencies{
		Config:  cfg,
		Groove:  svc,
		Metrics: recorder,
		Checks:  checks,
	}, GetVersion())

	log.Printf("Starting server on port %s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		sentry.CaptureException(err)
		log.Fatal("Failed to start server:", err)
	}
}

func filterSensitiveHeaders(headers map[string]string) map[string]string {
	filtered := make(map[string]string)
	sensitiveKeys := map[string]bool{
		"authorization": true,
		"cookie":        true,
		"x-api-key":     true,
	}

	for k, v := range headers {
		if sensitiveKeys[k] {
			filtered[k] = "[REDACTED]"
		} else {
			filtered[k] = v
		}
	}
	return filtered
}
