package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/epeers/exposure/config"
	"github.com/epeers/exposure/internal/cache"
	"github.com/epeers/exposure/internal/community"
	"github.com/epeers/exposure/internal/database"
	"github.com/epeers/exposure/internal/handlers"
	"github.com/epeers/exposure/internal/lookup"
	"github.com/epeers/exposure/internal/providers"
	"github.com/epeers/exposure/internal/repository"
	"github.com/epeers/exposure/internal/services"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Create context for initialization
	ctx := context.Background()

	// Initialize database connection
	db, err := database.New(ctx, cfg.PGURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Initialize external clients
	commClient := community.NewClient(cfg.CommunityKey, cfg.CommunityURL)
	lookupSvcs := lookup.NewServiceList(cfg.LookupTimeout,
		lookup.NewClient("refdata", cfg.LookupKey, "https://refdata.exposurereport.dev/query"),
	)

	// Provider adapters, selected per instrument by identity prefix
	fundProvider := providers.NewFundProfileAdapter("fundprofile", cfg.ProviderKey, "https://funds.exposurereport.dev/query")
	registry := providers.NewRegistry(fundProvider)

	// Initialize caches
	memCache := cache.NewMemoryCache(5 * time.Minute)

	// Initialize repositories
	positionRepo := repository.NewPositionRepository(db.Pool)
	resolutionRepo := repository.NewResolutionCacheRepository(db.Pool)
	decompRepo := repository.NewDecompositionCacheRepository(db.Pool)

	// One shared gate bounds every call that reaches the network tier
	netGate := semaphore.NewWeighted(cfg.NetConcurrency)

	// Initialize services
	resolver := services.NewResolver(memCache, resolutionRepo, commClient, lookupSvcs, netGate)
	decomposeSvc := services.NewDecomposeService(decompRepo, commClient, registry, resolver, netGate, cfg.DecompMaxAge, cfg.Tier1WeightPct)
	enrichSvc := services.NewEnrichService(memCache, resolutionRepo, commClient, lookupSvcs, netGate)
	pipelineSvc := services.NewPipelineService(positionRepo, decomposeSvc, enrichSvc, resolver)

	// Initialize handlers
	exposureHandler := handlers.NewExposureHandler(pipelineSvc, positionRepo)

	// Setup Gin router
	router := gin.Default()

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Exposure routes
	router.POST("/portfolios/:id/exposure", exposureHandler.GenerateReport)
	router.GET("/portfolios/:id/positions", exposureHandler.ListPositions)

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Infof("Starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	// Give outstanding requests 5 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	fmt.Println("Server exited")
}
