// Package main is the ingestion entry point: it loads the source workbook
// into the entity store and derives initial holdings for every portfolio.
package main

import (
	"flag"

	"github.com/aristath/cartera/internal/config"
	"github.com/aristath/cartera/internal/database"
	"github.com/aristath/cartera/internal/modules/holdings"
	"github.com/aristath/cartera/internal/modules/ingestion"
	"github.com/aristath/cartera/internal/modules/portfolio"
	"github.com/aristath/cartera/pkg/logger"
)

func main() {
	filePath := flag.String("file", "", "Path to the source workbook (default: configured data directory)")
	clear := flag.Bool("clear", false, "Clear existing data before loading")
	skipDerive := flag.Bool("skip-derive", false, "Load data without deriving holdings")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: true,
	})

	workbook := *filePath
	if workbook == "" {
		workbook = cfg.WorkbookPath
	}

	db, err := database.New(database.Config{Path: cfg.DatabasePath, Name: "cartera"})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply database schema")
	}

	service := portfolio.NewService(db, log)
	loader := ingestion.NewLoader(service, log)

	report, err := loader.Run(ingestion.Options{
		FilePath: workbook,
		Clear:    *clear,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Ingestion failed")
	}

	log.Info().
		Str("run_id", report.RunID).
		Int("assets", report.Assets).
		Int("portfolios", report.Portfolios).
		Int("weights", report.Weights).
		Int("prices", report.Prices).
		Int("skipped_rows", len(report.Skipped)).
		Msg("Ingestion completed")

	if *skipDerive {
		return
	}

	engine := holdings.NewEngine(service, log)
	result, err := engine.DeriveAll()
	if err != nil {
		log.Fatal().Err(err).Msg("Derivation failed")
	}

	for name, derived := range result.Holdings {
		log.Info().Str("portfolio", name).Int("holdings", len(derived)).Msg("Holdings derived")
	}
	for name, derr := range result.Failures {
		log.Error().Err(derr).Str("portfolio", name).Msg("Derivation failed for portfolio")
	}
	if len(result.Failures) > 0 {
		log.Fatal().Int("failed_portfolios", len(result.Failures)).Msg("Derivation finished with failures")
	}
}
