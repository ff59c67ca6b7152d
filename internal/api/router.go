package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Conceptual-Machines/magda-groove/internal/api/handlers"
	apimiddleware "github.com/Conceptual-Machines/magda-groove/internal/api/middleware"
	"github.com/Conceptual-Machines/magda-groove/internal/config"
	"github.com/Conceptual-Machines/magda-groove/internal/metrics"
	"github.com/Conceptual-Machines/magda-groove/internal/services"
)

// Dependencies are the services the router wires into handlers
type Dependencies struct {
	Config  *config.Config
	Groove  *services.GrooveService
	Metrics *metrics.Recorder
	// Checks are reported by /health, keyed by dependency name
	Checks map[string]handlers.Check
}

func SetupRouter(deps Dependencies, version string) *gin.Engine {
	router := gin.New()

	// Recovery middleware (must be first)
	router.Use(apimiddleware.RecoverWithSentry())

	// Sentry middleware for error tracking
	router.Use(apimiddleware.SentryMiddleware())

	// Request tracking and structured logging
	router.Use(apimiddleware.RequestTracking(deps.Metrics))

	// Health check
	healthHandler := handlers.NewHealthHandler(deps.Checks)
	router.GET("/health", healthHandler.HealthCheck)

	// Process status and Prometheus scrape endpoint
	metricsHandler := handlers.NewMetricsHandler(version, deps.Config)
	router.GET("/api/metrics", metricsHandler.GetMetrics)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		grooveHandler := handlers.NewGrooveHandler(deps.Groove)
		v1.POST("/groove/generate", grooveHandler.Generate)
		v1.POST("/groove/batch", grooveHandler.GenerateBatch)
		v1.POST("/groove/bars", grooveHandler.Bars)
		v1.GET("/groove/runs", grooveHandler.ListRuns)
		v1.GET("/groove/runs/:id", grooveHandler.GetRun)
	}

	return router
}
