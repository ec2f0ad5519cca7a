package ingestion

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/cartera/internal/domain"
	"github.com/aristath/cartera/internal/modules/portfolio"
)

// The source workbook describes two fixed portfolios sharing one initial
// value and initial date; the loader seeds them before weights are read.
var (
	defaultInitialValue = decimal.RequireFromString("1000000000.00")
	defaultInitialDate  = time.Date(2022, time.February, 15, 0, 0, 0, 0, time.UTC)
)

// expectedAssetCount is what a complete source workbook carries. A different
// count is suspicious but not fatal.
const expectedAssetCount = 17

// Options controls one ingestion run.
type Options struct {
	FilePath string // workbook to ingest
	Clear    bool   // delete all existing data before loading
}

// Report summarizes one ingestion run: how many records were loaded per
// entity type and which rows were rejected.
type Report struct {
	RunID      string
	Assets     int
	Portfolios int
	Weights    int
	Prices     int
	Skipped    []RowError
}

// Loader drives an ingestion run end to end: parse, validate, upsert.
type Loader struct {
	service *portfolio.Service
	log     zerolog.Logger
}

// NewLoader creates a loader over the upsert service.
func NewLoader(service *portfolio.Service, log zerolog.Logger) *Loader {
	return &Loader{
		service: service,
		log:     log.With().Str("component", "loader").Logger(),
	}
}

// Run executes one ingestion run. Structural problems (missing file, missing
// sheet, asset persistence failure, storage errors) abort the run with a
// wrapped cause; row-level data problems are logged, recorded on the report,
// and skipped.
func (l *Loader) Run(opts Options) (*Report, error) {
	report := &Report{RunID: uuid.NewString()}
	log := l.log.With().Str("run_id", report.RunID).Logger()

	if _, err := os.Stat(opts.FilePath); err != nil {
		return nil, fmt.Errorf("workbook not found: %w", err)
	}

	parser, err := OpenWorkbook(opts.FilePath, log)
	if err != nil {
		return nil, fmt.Errorf("error loading data: %w", err)
	}
	defer parser.Close()

	if opts.Clear {
		log.Warn().Msg("Clearing existing data before load")
		if err := l.service.ClearAll(); err != nil {
			return nil, fmt.Errorf("error clearing existing data: %w", err)
		}
	}

	log.Info().Str("file", opts.FilePath).Msg("Loading workbook")

	known, err := l.loadAssets(parser, log, report)
	if err != nil {
		return nil, err
	}

	if err := l.loadPortfolios(log, report); err != nil {
		return nil, err
	}

	if err := l.loadWeights(parser, known, log, report); err != nil {
		return nil, err
	}

	if err := l.loadPrices(parser, known, log, report); err != nil {
		return nil, err
	}

	counts, err := l.service.Counts()
	if err != nil {
		return nil, fmt.Errorf("failed to summarize loaded data: %w", err)
	}

	log.Info().
		Int("assets", counts.Assets).
		Int("portfolios", counts.Portfolios).
		Int("weights", counts.Weights).
		Int("prices", counts.Prices).
		Int("skipped_rows", len(report.Skipped)).
		Msg("Data loading completed")

	return report, nil
}

// loadAssets parses and persists asset names. A failing asset upsert aborts
// the run: every later row references assets, so a partial asset set would
// turn one structural problem into hundreds of misleading referential
// warnings.
func (l *Loader) loadAssets(parser *Parser, log zerolog.Logger, report *Report) (map[string]bool, error) {
	rows, err := parser.AssetRows()
	if err != nil {
		return nil, fmt.Errorf("error loading assets: %w", err)
	}

	known := make(map[string]bool)
	for _, row := range rows {
		if row.Err != nil {
			log.Warn().Str("cell", row.Err.Cell).Str("reason", row.Err.Reason).Msg("Skipping asset row")
			report.Skipped = append(report.Skipped, *row.Err)
			continue
		}
		if known[row.Asset.Name] {
			continue
		}
		if _, err := l.service.UpsertAsset(row.Asset.Name, ""); err != nil {
			return nil, fmt.Errorf("error creating asset %q: %w", row.Asset.Name, err)
		}
		known[row.Asset.Name] = true
		report.Assets++
	}

	if report.Assets != expectedAssetCount {
		log.Warn().Int("expected", expectedAssetCount).Int("found", report.Assets).Msg("Unexpected asset count")
	}
	log.Info().Int("count", report.Assets).Msg("Assets loaded")

	return known, nil
}

// loadPortfolios seeds the two fixed portfolios with the default initial
// value and date.
func (l *Loader) loadPortfolios(log zerolog.Logger, report *Report) error {
	for _, wc := range weightColumns {
		if _, err := l.service.UpsertPortfolio(wc.label, defaultInitialValue, defaultInitialDate); err != nil {
			return fmt.Errorf("error creating portfolio %q: %w", wc.label, err)
		}
		report.Portfolios++
	}
	log.Info().Int("count", report.Portfolios).Msg("Portfolios loaded")
	return nil
}

func (l *Loader) loadWeights(parser *Parser, known map[string]bool, log zerolog.Logger, report *Report) error {
	rows, err := parser.WeightRows(known)
	if err != nil {
		return fmt.Errorf("error loading weights: %w", err)
	}

	for _, row := range rows {
		if row.Err != nil {
			log.Warn().Str("cell", row.Err.Cell).Str("reason", row.Err.Reason).Msg("Skipping weight row")
			report.Skipped = append(report.Skipped, *row.Err)
			continue
		}

		if _, err := l.service.UpsertWeight(row.Weight.PortfolioLabel, row.Weight.AssetName, row.Weight.Weight); err != nil {
			if skippable := asRowSkippable(err); skippable != "" {
				log.Warn().
					Str("asset", row.Weight.AssetName).
					Str("portfolio", row.Weight.PortfolioLabel).
					Str("reason", skippable).
					Msg("Skipping weight record")
				report.Skipped = append(report.Skipped, RowError{Sheet: SheetWeights, Reason: skippable})
				continue
			}
			return fmt.Errorf("error storing weight for %q in %q: %w", row.Weight.AssetName, row.Weight.PortfolioLabel, err)
		}
		report.Weights++
	}

	log.Info().Int("count", report.Weights).Msg("Weights loaded")
	return nil
}

func (l *Loader) loadPrices(parser *Parser, known map[string]bool, log zerolog.Logger, report *Report) error {
	rows, err := parser.PriceRows(known)
	if err != nil {
		return fmt.Errorf("error loading prices: %w", err)
	}

	for _, row := range rows {
		if row.Err != nil {
			log.Warn().Str("cell", row.Err.Cell).Str("reason", row.Err.Reason).Msg("Skipping price row")
			report.Skipped = append(report.Skipped, *row.Err)
			continue
		}

		if _, err := l.service.UpsertPrice(row.Price.AssetName, row.Price.Date, row.Price.Price); err != nil {
			if skippable := asRowSkippable(err); skippable != "" {
				log.Warn().
					Str("asset", row.Price.AssetName).
					Str("date", row.Price.Date.Format("2006-01-02")).
					Str("reason", skippable).
					Msg("Skipping price record")
				report.Skipped = append(report.Skipped, RowError{Sheet: SheetPrices, Reason: skippable})
				continue
			}
			return fmt.Errorf("error storing price for %q on %s: %w", row.Price.AssetName, row.Price.Date.Format("2006-01-02"), err)
		}
		report.Prices++
	}

	log.Info().Int("count", report.Prices).Msg("Prices loaded")
	return nil
}

// asRowSkippable classifies upsert failures. Constraint violations abort
// only the record being written; anything else (storage failure, missing
// referenced entity) aborts the run.
func asRowSkippable(err error) string {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return verr.Error()
	}
	return ""
}
