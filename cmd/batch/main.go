package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/shelflink/backend/config"
	"github.com/shelflink/backend/internal/batch"
	"github.com/shelflink/backend/internal/infrastructure/checkpoint"
	"github.com/shelflink/backend/internal/infrastructure/report"
	"github.com/shelflink/backend/internal/infrastructure/store"
	"github.com/shelflink/backend/internal/logger"
	"github.com/shelflink/backend/internal/usecase"
)

func main() {
	var (
		sourceID       = flag.Int64("source", 0, "restrict the run to one external source id (0 = all)")
		reportPath     = flag.String("report", "", "report CSV path (overrides config)")
		checkpointPath = flag.String("checkpoint", "", "checkpoint file path (overrides config)")
		workers        = flag.Int("workers", 0, "scoring worker count (overrides config)")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLog, err := logger.New(cfg.Server.Environment)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLog.Sync()

	if *reportPath == "" {
		*reportPath = cfg.Batch.ReportPath
	}
	if *checkpointPath == "" {
		*checkpointPath = cfg.Batch.CheckpointPath
	}
	if *workers == 0 {
		*workers = cfg.Batch.Workers
	}

	db, err := store.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		appLog.Fatal("database connection failed", "error", err)
	}
	if err := store.Migrate(db); err != nil {
		appLog.Fatal("database migration failed", "error", err)
	}

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
	}, usecase.DefaultTaxonomy(), nil, appLog)

	sink, err := report.NewCSVSink(*reportPath)
	if err != nil {
		appLog.Fatal("opening report sink failed", "error", err)
	}

	ckpt := checkpoint.NewFile(*checkpointPath)

	runner := batch.NewRunner(
		store.NewCatalogStore(db),
		engine,
		sink,
		ckpt,
		batch.Config{
			PageSize:            cfg.Batch.PageSize,
			CheckpointEvery:     cfg.Batch.CheckpointEvery,
			ProgressEvery:       cfg.Batch.ProgressEvery,
			MinReportConfidence: cfg.Batch.MinReportConfidence,
			Workers:             *workers,
			SourceID:            *sourceID,
		},
		appLog,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, runErr := runner.Run(ctx)

	if err := sink.Close(); err != nil {
		appLog.Error("closing report sink", "error", err)
	}

	if summary != nil {
		encoded, err := json.MarshalIndent(summary, "", "  ")
		if err == nil {
			fmt.Println(string(encoded))
		}
	}

	if runErr != nil {
		appLog.Error("batch run did not complete",
			"error", runErr,
			"checkpoint", ckpt.Path())
		fmt.Fprintf(os.Stderr, "run interrupted; re-run the same command to resume from %s\n", ckpt.Path())
		os.Exit(1)
	}
}
