package main

import (
	"fmt"
	"log"

	"github.com/shelflink/backend/config"
	httpDelivery "github.com/shelflink/backend/internal/delivery/http"
	"github.com/shelflink/backend/internal/infrastructure/cache"
	"github.com/shelflink/backend/internal/infrastructure/store"
	"github.com/shelflink/backend/internal/logger"
	"github.com/shelflink/backend/internal/usecase"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLog, err := logger.New(cfg.Server.Environment)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLog.Sync()

	appLog.Info("starting ShelfLink backend",
		"version", "1.0.0",
		"environment", cfg.Server.Environment,
		"port", cfg.Server.Port,
		"database_driver", cfg.Database.Driver)

	// Database
	db, err := store.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		appLog.Fatal("database connection failed", "error", err)
	}
	if err := store.Migrate(db); err != nil {
		appLog.Fatal("database migration failed", "error", err)
	}

	catalogStore := store.NewCatalogStore(db)
	matchStore := store.NewMatchStore(db)
	memoryCache := cache.NewMemoryCache()

	// Scoring engine
	engine := usecase.NewMatchingService(usecase.MatchingConfig{
		NameWeight:           cfg.Matching.NameWeight,
		BrandWeight:          cfg.Matching.BrandWeight,
		CategoryWeight:       cfg.Matching.CategoryWeight,
		PriceWeight:          cfg.Matching.PriceWeight,
		BrandConflictCap:     cfg.Matching.BrandConflictCap,
		CrossDepartmentCap:   cfg.Matching.CrossDepartmentCap,
		ModelMismatchCap:     cfg.Matching.ModelMismatchCap,
		MinOverallScore:      cfg.Matching.MinOverallScore,
		HighTierConfidence:   cfg.Matching.HighTierConfidence,
		ReviewTierConfidence: cfg.Matching.ReviewTierConfidence,
		MaxCandidates:        cfg.Matching.MaxCandidates,
	}, usecase.DefaultTaxonomy(), usecase.NewDecisionLog(0), appLog)

	// Services
	candidateService := usecase.NewCandidateService(
		catalogStore, matchStore, engine, memoryCache,
		usecase.CandidateServiceConfig{
			PageSize: cfg.Candidates.PageSize,
			CacheTTL: cfg.Candidates.CacheTTL,
		}, appLog)
	matchService := usecase.NewMatchService(matchStore, appLog)

	// Create HTTP handler with dependencies
	handler := httpDelivery.NewHandler(candidateService, matchService, appLog)

	// Setup router
	router := httpDelivery.SetupRouter(cfg, handler)

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	appLog.Info("server listening", "addr", addr)

	if err := router.Run(addr); err != nil {
		appLog.Fatal("server stopped", "error", err)
	}
}
