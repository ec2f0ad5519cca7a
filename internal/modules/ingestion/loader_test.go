package ingestion

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/aristath/cartera/internal/database"
	"github.com/aristath/cartera/internal/modules/portfolio"
	"github.com/aristath/cartera/pkg/logger"
)

func setupTestService(t *testing.T) *portfolio.Service {
	t.Helper()

	db, err := database.New(database.Config{Path: ":memory:", Name: "test"})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })

	return portfolio.NewService(db, logger.Discard())
}

func saveWorkbook(t *testing.T, f *excelize.File) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "datos.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())
	return path
}

func TestLoaderRun_EndToEnd(t *testing.T) {
	path := saveWorkbook(t, buildWorkbook(t))
	service := setupTestService(t)
	loader := NewLoader(service, logger.Discard())

	report, err := loader.Run(Options{FilePath: path})
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 2, report.Assets)
	assert.Equal(t, 2, report.Portfolios)
	assert.Equal(t, 4, report.Weights)
	assert.Equal(t, 4, report.Prices)
	assert.Empty(t, report.Skipped)

	counts, err := service.Counts()
	require.NoError(t, err)
	assert.Equal(t, 2, counts.Assets)
	assert.Equal(t, 2, counts.Portfolios)
	assert.Equal(t, 4, counts.Weights)
	assert.Equal(t, 4, counts.Prices)
}

func TestLoaderRun_Idempotent(t *testing.T) {
	path := saveWorkbook(t, buildWorkbook(t))
	service := setupTestService(t)
	loader := NewLoader(service, logger.Discard())

	_, err := loader.Run(Options{FilePath: path})
	require.NoError(t, err)
	first, err := service.Counts()
	require.NoError(t, err)

	_, err = loader.Run(Options{FilePath: path})
	require.NoError(t, err)
	second, err := service.Counts()
	require.NoError(t, err)

	assert.Equal(t, first, second, "re-running ingestion must produce updates, not duplicates")
}

func TestLoaderRun_ClearRemovesPreviousData(t *testing.T) {
	path := saveWorkbook(t, buildWorkbook(t))
	service := setupTestService(t)
	loader := NewLoader(service, logger.Discard())

	_, err := service.UpsertAsset("Viejo", "")
	require.NoError(t, err)

	_, err = loader.Run(Options{FilePath: path, Clear: true})
	require.NoError(t, err)

	stale, err := service.Assets().GetByName("Viejo")
	require.NoError(t, err)
	assert.Nil(t, stale, "clear must remove records that are not in the workbook")

	counts, err := service.Counts()
	require.NoError(t, err)
	assert.Equal(t, 2, counts.Assets)
}

func TestLoaderRun_MissingFileIsFatal(t *testing.T) {
	service := setupTestService(t)
	loader := NewLoader(service, logger.Discard())

	_, err := loader.Run(Options{FilePath: filepath.Join(t.TempDir(), "nope.xlsx")})
	require.Error(t, err)
}

func TestLoaderRun_MissingSheetIsFatal(t *testing.T) {
	f := excelize.NewFile()
	_, err := f.NewSheet(SheetWeights)
	require.NoError(t, err)
	require.NoError(t, f.DeleteSheet("Sheet1"))
	path := saveWorkbook(t, f)

	service := setupTestService(t)
	loader := NewLoader(service, logger.Discard())

	_, err = loader.Run(Options{FilePath: path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), SheetPrices)

	counts, err := service.Counts()
	require.NoError(t, err)
	assert.Zero(t, counts.Assets, "no row may be processed when a required sheet is missing")
}

func TestLoaderRun_UnknownAssetsAreSkippedNotCreated(t *testing.T) {
	f := buildWorkbook(t)
	// A price column for an asset that never appears in the weights sheet.
	setCells(t, f, SheetPrices, map[string]interface{}{
		"D1": "Fantasma",
		"D2": 12.5,
	})
	path := saveWorkbook(t, f)

	service := setupTestService(t)
	loader := NewLoader(service, logger.Discard())

	report, err := loader.Run(Options{FilePath: path})
	require.NoError(t, err)
	require.NotEmpty(t, report.Skipped)

	phantom, err := service.Assets().GetByName("Fantasma")
	require.NoError(t, err)
	assert.Nil(t, phantom, "an unrecognized asset name must not create a phantom asset")

	counts, err := service.Counts()
	require.NoError(t, err)
	assert.Equal(t, 2, counts.Assets)
}

func TestLoaderRun_RowLevelProblemsDoNotAbort(t *testing.T) {
	f := buildWorkbook(t)
	setCells(t, f, SheetWeights, map[string]interface{}{
		"C3": 1.5, // out of range: this record only is skipped
	})
	setCells(t, f, SheetPrices, map[string]interface{}{
		"A4": "14/02/22", "B4": 99, // day before the window opens
	})
	path := saveWorkbook(t, f)

	service := setupTestService(t)
	loader := NewLoader(service, logger.Discard())

	report, err := loader.Run(Options{FilePath: path})
	require.NoError(t, err)

	assert.Equal(t, 3, report.Weights, "one weight rejected, three loaded")
	assert.Equal(t, 4, report.Prices, "out-of-window row skipped, in-window prices loaded")
	assert.Len(t, report.Skipped, 2)
}
