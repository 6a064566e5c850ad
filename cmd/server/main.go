package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/ihplabs/heatcast-go/internal/api"
	"github.com/ihplabs/heatcast-go/internal/cache"
	"github.com/ihplabs/heatcast-go/internal/config"
	"github.com/ihplabs/heatcast-go/internal/database"
	"github.com/ihplabs/heatcast-go/internal/history"
	"github.com/ihplabs/heatcast-go/internal/homeassistant"
	"github.com/ihplabs/heatcast-go/internal/logging"
	"github.com/ihplabs/heatcast-go/internal/services"
	"github.com/ihplabs/heatcast-go/internal/storage"
	"github.com/ihplabs/heatcast-go/internal/trainer"
)

func main() {
	// Local development overrides; absent in add-on deployments.
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	stdLogger := logging.NewStandardLogger(cfg.LogLevel, cfg.Environment)
	logger := stdLogger.Logger()
	stdLogger.LogStartup("heatcast", "1.0.0", cfg.Server.Port)

	// Initialize database
	db, err := database.NewPostgresConnection(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	registry := database.NewModelRegistry(db.Pool)
	if err := registry.EnsureSchema(context.Background()); err != nil {
		log.Fatalf("Failed to prepare model registry schema: %v", err)
	}

	// Initialize Redis
	redis, err := database.NewRedisConnection(cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redis.Close()

	// Initialize external service clients
	haClient := homeassistant.NewClient(&cfg.HomeAssistant)
	trainerClient := trainer.NewClient(&cfg.Trainer)

	// Initialize the pipeline
	contractStore, err := storage.NewContractStore(cfg.Training.ContractDir, logger.With("component", "contract_store"))
	if err != nil {
		log.Fatalf("Failed to open contract store: %v", err)
	}
	contractCache := cache.NewContractCache(redis, logger.With("component", "contract_cache"))
	aggregator := history.NewAggregator(haClient, cfg.History, logger.With("component", "history"))

	trainingPipeline := services.NewTrainingPipeline(
		aggregator, trainerClient, contractStore, registry, contractCache,
		cfg.Training, logger.With("component", "training"),
	)
	predictionService := services.NewPredictionService(
		trainerClient, contractStore, registry, contractCache,
		logger.With("component", "prediction"),
	)
	modelService := services.NewModelService(
		trainerClient, contractStore, registry, contractCache,
		logger.With("component", "models"),
	)

	// Setup Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	api.SetupRoutes(router, api.Dependencies{
		Database:      db,
		Redis:         redis,
		HomeAssistant: haClient,
		Trainer:       trainerClient,
		Training:      trainingPipeline,
		Prediction:    predictionService,
		Models:        modelService,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on port %d", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	stdLogger.LogShutdown("heatcast", "signal received")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
