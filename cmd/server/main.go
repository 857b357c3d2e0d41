package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	redis_adapter "seqlab.portal/internal/adapters/cache/redis"
	http_handler "seqlab.portal/internal/adapters/handler/http"
	"seqlab.portal/internal/adapters/repository/pg"
	"seqlab.portal/internal/config"
	"seqlab.portal/internal/core/domain"
	"seqlab.portal/internal/core/logger"
	"seqlab.portal/internal/core/services"
	"seqlab.portal/internal/core/tracing"
	"seqlab.portal/internal/remote"
)

const version = "0.1.0"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Initialize structured logger
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	logger.Info("Starting NGS Portal Server", "version", version)

	// Initialize tracing
	var shutdownTracing func(context.Context) error
	if cfg.EnableTracing {
		shutdownTracing, err = tracing.Init(cfg.ServiceName, cfg.OTLPEndpoint)
		if err != nil {
			logger.Error("Failed to initialize tracing", "error", err)
		} else {
			logger.Info("Tracing initialized", "endpoint", cfg.OTLPEndpoint)
			defer func() {
				if err := shutdownTracing(context.Background()); err != nil {
					logger.Error("Failed to shutdown tracing", "error", err)
				}
			}()
		}
	}

	// Initialize adapters
	jobRepo, db, err := pg.NewRepository(cfg.DatabaseURL)
	if err != nil {
		logger.Error("Failed to init postgres", "error", err)
		log.Fatalf("failed to init postgres: %v", err)
	}

	cache, redisClient, err := redis_adapter.NewAdapter(cfg.RedisURL)
	if err != nil {
		logger.Error("Failed to init redis", "error", err)
		log.Fatalf("failed to init redis: %v", err)
	}

	// Remote job control
	router := remote.NewRouter(
		remote.Endpoint{Host: cfg.WGSHost, KeyPath: cfg.SSHKeyPath},
		remote.Endpoint{Host: cfg.SpeciesHost, KeyPath: cfg.SSHKeyPath},
	)
	transport := remote.NewTransport(logger.Get(),
		remote.WithTimeouts(cfg.ConnectTimeout, cfg.AttemptTimeout),
		remote.WithMaxAttempts(cfg.MaxAttempts),
	)
	controller := remote.NewController(router, transport, map[domain.AnalysisType]string{
		domain.AnalysisWGS:     cfg.WGSScript,
		domain.AnalysisSpecies: cfg.SpeciesScript,
	}, logger.Get())

	// Initialize domain services
	validator := services.NewPathValidator(map[domain.AnalysisType]string{
		domain.AnalysisWGS:     cfg.WGSBasePath,
		domain.AnalysisSpecies: cfg.SpeciesBasePath,
	})
	analysisService := services.NewAnalysisService(jobRepo, controller, cache, validator, logger.Get())
	sampleService := services.NewSampleService(validator, cache, logger.Get())
	healthService := services.NewHealthService(db, redisClient, controller, version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// WebSocket hub
	hub := http_handler.NewHub(cache)
	go hub.Run(ctx)
	go hub.ConsumeJobUpdates(ctx)

	// Periodically force-fail jobs stuck in running.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := analysisService.CleanupStuckJobs(ctx); err != nil {
					logger.Error("Stuck job cleanup failed", "error", err)
				}
			}
		}
	}()

	httpServer := http_handler.NewServer(analysisService, sampleService, healthService, hub)

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutting down gracefully...")
		cancel()
		if shutdownTracing != nil {
			shutdownTracing(context.Background())
		}
		os.Exit(0)
	}()

	logger.Info("HTTP Server starting", "port", cfg.HTTPPort)
	if err := httpServer.Run(":" + cfg.HTTPPort); err != nil {
		logger.Error("HTTP server failed", "error", err)
		log.Fatalf("failed to serve http: %v", err)
	}
}
