// Package main is the entry point for the fuel station reconciliation API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"fuelstation/internal/app"
	"fuelstation/internal/infrastructure/config"
	v1 "fuelstation/internal/infrastructure/http/v1"
	"fuelstation/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(logger.Config{
		Service:     "server",
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development || cfg.App.IsDevelopment(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(logger.WithLogger(context.Background(), log))
	defer cancel()

	log.Infow("starting fuelstation server", "env", cfg.App.Env)

	// --- Database, cache and services ---
	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalw("failed to initialize application", "error", err)
	}
	defer application.Close()
	application.Start(ctx)

	log.Infow("database connection established",
		"max_conns", cfg.Database.MaxConns,
		"redis", cfg.Redis.Enabled,
	)

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Pool:         application.Pool,
		Redis:        redisClient(application),
		Logger:       log,
		JWTValidator: application.JWT,
		Idempotency:  application.Idempotency,
		Debug:        cfg.App.IsDevelopment(),
		Services:     application.Services,
	})

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Reconciliation.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", cfg.App.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

// redisClient avoids handing the router a typed nil interface.
func redisClient(a *app.App) redis.UniversalClient {
	if a.Redis == nil {
		return nil
	}
	return a.Redis
}
