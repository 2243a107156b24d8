package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"market-doctor/config"
	"market-doctor/internal/api"
	"market-doctor/internal/cache"
	"market-doctor/internal/database"
	"market-doctor/internal/decision"
	"market-doctor/internal/engine"
	"market-doctor/internal/events"
	"market-doctor/internal/logging"

	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log := logging.Default()
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Structured logging
	logger := logging.New(logging.Config{
		Level:      cfg.LoggingConfig.Level,
		Output:     cfg.LoggingConfig.Output,
		JSONFormat: cfg.LoggingConfig.JSONFormat,
	})
	logging.SetDefault(logger)
	logger.Info().Msg("structured logging initialized")

	// Event bus
	eventBus := events.NewEventBus()
	logger.Info().Msg("event bus initialized")

	// Report cache (optional)
	var cacheService *cache.CacheService
	if cfg.RedisConfig.Enabled {
		cacheService, err = cache.NewCacheService(cfg.RedisConfig, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("report cache unavailable, continuing without it")
		} else {
			defer cacheService.Close()
			logger.Info().Str("address", cfg.RedisConfig.Address).Msg("report cache initialized")
		}
	}

	// Report persistence (optional)
	var repo *database.Repository
	if cfg.DatabaseConfig.Enabled {
		db, err := database.NewDB(cfg.DatabaseConfig, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer db.Close()

		if err := db.RunMigrations(context.Background()); err != nil {
			logger.Fatal().Err(err).Msg("failed to run migrations")
		}

		repo = database.NewRepository(db)
		logger.Info().Str("host", cfg.DatabaseConfig.Host).Msg("report persistence initialized")

		if cfg.DatabaseConfig.RetentionDays > 0 {
			go pruneReports(repo, cfg.DatabaseConfig.RetentionDays, logger)
		}
	}

	// Diagnosis engine
	eng := engine.New(decision.Config{
		EdgeStrong:     cfg.EngineConfig.EdgeStrong,
		EdgeNormal:     cfg.EngineConfig.EdgeNormal,
		ConfidenceHigh: cfg.EngineConfig.ConfidenceHigh,
		ConfidenceLow:  cfg.EngineConfig.ConfidenceLow,
	}, logger)
	logger.Info().
		Float64("edge_strong", cfg.EngineConfig.EdgeStrong).
		Float64("edge_normal", cfg.EngineConfig.EdgeNormal).
		Msg("diagnosis engine initialized")

	// HTTP API
	server := api.NewServer(cfg.ServerConfig, eng, repo, cacheService, eventBus, logger)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()
	eventBus.Publish(events.Event{
		Type:      events.EventServerStarted,
		Timestamp: time.Now(),
		Data:      map[string]interface{}{"port": cfg.ServerConfig.Port},
	})

	// Wait for shutdown signal or server failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			logger.Error().Err(err).Msg("server stopped unexpectedly")
		}
	}

	shutdownTimeout := time.Duration(cfg.ServerConfig.ShutdownTimeout) * time.Second
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	eventBus.Publish(events.Event{
		Type:      events.EventServerStopped,
		Timestamp: time.Now(),
	})
	logger.Info().Msg("shutdown complete")
}

// pruneReports removes reports past the retention window, once at
// startup and then daily
func pruneReports(repo *database.Repository, retentionDays int, logger zerolog.Logger) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		cutoff := time.Now().AddDate(0, 0, -retentionDays)
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		removed, err := repo.DeleteReportsBefore(ctx, cutoff)
		cancel()
		if err != nil {
			logger.Error().Err(err).Msg("report pruning failed")
		} else if removed > 0 {
			logger.Info().Int64("removed", removed).Time("cutoff", cutoff).Msg("pruned old reports")
		}
		<-ticker.C
	}
}
