// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"fuelstation/internal/domain/delivery"
	"fuelstation/internal/domain/ledger"
	"fuelstation/internal/domain/readings"
	"fuelstation/internal/domain/reconciliation"
	"fuelstation/internal/domain/registry"
	"fuelstation/internal/domain/variance"
	"fuelstation/internal/infrastructure/http/v1/handlers"
	"fuelstation/internal/infrastructure/http/v1/middleware"
	"fuelstation/internal/infrastructure/storage/postgres"
	"fuelstation/pkg/logger"
)

// Services are the domain entry points the API exposes.
type Services struct {
	Registry *registry.Service
	Readings *readings.Service
	Delivery *delivery.Service
	Variance *variance.Service
	Ledger   *ledger.Service
	Engine   *reconciliation.Engine
}

// RouterConfig holds router configuration.
type RouterConfig struct {
	// Pool is checked by the readiness probe
	Pool *postgres.Pool

	// Redis is optional; nil when the cache is disabled
	Redis redis.UniversalClient

	// Logger for request logging
	Logger *logger.Logger

	// JWTValidator for token validation
	JWTValidator middleware.JWTValidator

	// Idempotency replays retried writes; nil disables it
	Idempotency middleware.IdempotencyStore

	// Debug switches gin to debug mode
	Debug bool

	Services Services
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints (no auth)
	if cfg.Pool != nil {
		healthHandler := handlers.NewHealthHandler(cfg.Pool, cfg.Redis)
		health := router.Group("/health")
		{
			health.GET("/live", healthHandler.Live)
			health.GET("/ready", healthHandler.Ready)
			health.GET("/info", healthHandler.Info)
		}
	}

	v1 := router.Group("/api/v1")
	{
		protected := v1.Group("")
		protected.Use(middleware.Auth(cfg.JWTValidator))
		if cfg.Idempotency != nil {
			protected.Use(middleware.Idempotency(cfg.Idempotency))
		}

		base := handlers.NewBaseHandler()
		registerReadingRoutes(protected, base, cfg.Services)
		registerDeliveryRoutes(protected, base, cfg.Services)
		registerReconciliationRoutes(protected, base, cfg.Services)
		registerVarianceRoutes(protected, base, cfg.Services)
		registerLedgerRoutes(protected, base, cfg.Services)
	}

	return router
}
