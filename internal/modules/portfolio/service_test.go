package portfolio

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/cartera/internal/database"
	"github.com/aristath/cartera/internal/domain"
	"github.com/aristath/cartera/pkg/logger"
)

func setupTestService(t *testing.T) *Service {
	t.Helper()

	db, err := database.New(database.Config{Path: ":memory:", Name: "test"})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })

	return NewService(db, logger.Discard())
}

var (
	testDate  = time.Date(2022, 2, 15, 0, 0, 0, 0, time.UTC)
	testValue = decimal.RequireFromString("1000000000.00")
)

func TestUpsertAsset_Idempotent(t *testing.T) {
	s := setupTestService(t)

	first, err := s.UpsertAsset("EEUU", "")
	require.NoError(t, err)
	require.NotZero(t, first.ID)

	second, err := s.UpsertAsset("EEUU", "US")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "same natural key must hit the same record")
	assert.Equal(t, "US", second.Symbol)

	count, err := s.Assets().Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestUpsertAsset_BlankNameRejected(t *testing.T) {
	s := setupTestService(t)

	_, err := s.UpsertAsset("   ", "")
	require.Error(t, err)

	var verr *domain.ValidationError
	assert.True(t, errors.As(err, &verr))

	count, err := s.Assets().Count()
	require.NoError(t, err)
	assert.Equal(t, 0, count, "failed validation must leave no partial record")
}

func TestUpsertPortfolio_UpdatesMutableFields(t *testing.T) {
	s := setupTestService(t)

	_, err := s.UpsertPortfolio("Portfolio 1", testValue, testDate)
	require.NoError(t, err)

	newValue := decimal.RequireFromString("500000.00")
	updated, err := s.UpsertPortfolio("Portfolio 1", newValue, testDate)
	require.NoError(t, err)
	assert.True(t, updated.InitialValue.Equal(newValue))

	count, err := s.Portfolios().Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestUpsertPrice_KeyedByAssetAndDate(t *testing.T) {
	s := setupTestService(t)

	_, err := s.UpsertAsset("Europa", "")
	require.NoError(t, err)

	_, err = s.UpsertPrice("Europa", testDate, decimal.RequireFromString("100.00"))
	require.NoError(t, err)

	// Same key: update, not duplicate.
	_, err = s.UpsertPrice("Europa", testDate, decimal.RequireFromString("101.50"))
	require.NoError(t, err)

	// Different date: new record.
	_, err = s.UpsertPrice("Europa", testDate.AddDate(0, 0, 1), decimal.RequireFromString("102.00"))
	require.NoError(t, err)

	count, err := s.Prices().Count()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	asset, err := s.Assets().GetByName("Europa")
	require.NoError(t, err)
	stored, err := s.Prices().GetByAssetAndDate(asset.ID, testDate)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.Price.Equal(decimal.RequireFromString("101.50")))
}

func TestUpsertPrice_NonPositiveRejected(t *testing.T) {
	s := setupTestService(t)

	_, err := s.UpsertAsset("Europa", "")
	require.NoError(t, err)

	_, err = s.UpsertPrice("Europa", testDate, decimal.Zero)
	require.Error(t, err)

	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "price_positive", verr.Constraint)
}

func TestUpsertPrice_UnknownAssetFails(t *testing.T) {
	s := setupTestService(t)

	_, err := s.UpsertPrice("Nadie", testDate, decimal.RequireFromString("1"))
	require.Error(t, err)

	count, err := s.Assets().Count()
	require.NoError(t, err)
	assert.Equal(t, 0, count, "a price row must never create a phantom asset")
}

func TestUpsertWeight_RangeEnforced(t *testing.T) {
	s := setupTestService(t)

	_, err := s.UpsertAsset("EEUU", "")
	require.NoError(t, err)
	_, err = s.UpsertPortfolio("Portfolio 1", testValue, testDate)
	require.NoError(t, err)

	for _, v := range []string{"0", "1", "0.28"} {
		_, err := s.UpsertWeight("Portfolio 1", "EEUU", decimal.RequireFromString(v))
		assert.NoError(t, err, "weight %s should be accepted", v)
	}

	for _, v := range []string{"1.0000001", "-0.01"} {
		_, err := s.UpsertWeight("Portfolio 1", "EEUU", decimal.RequireFromString(v))
		assert.Error(t, err, "weight %s should be rejected", v)
	}

	count, err := s.Weights().Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count, "repeated upserts for one (portfolio, asset) key keep one record")
}

func TestStoreConstraints_BackstopDirectWrites(t *testing.T) {
	db, err := database.New(database.Config{Path: ":memory:", Name: "test"})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })

	s := NewService(db, logger.Discard())
	asset, err := s.UpsertAsset("EEUU", "")
	require.NoError(t, err)

	// Bypassing the service must still hit the schema CHECK constraint.
	_, err = db.Exec(
		`INSERT INTO prices (asset_id, date, price, created_at, updated_at) VALUES (?, ?, ?, 0, 0)`,
		asset.ID, "2022-02-15", "-5",
	)
	assert.Error(t, err, "store must reject a non-positive price even without the service")
}

func TestCascadeDelete(t *testing.T) {
	db, err := database.New(database.Config{Path: ":memory:", Name: "test"})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })

	s := NewService(db, logger.Discard())

	asset, err := s.UpsertAsset("EEUU", "")
	require.NoError(t, err)
	_, err = s.UpsertPortfolio("Portfolio 1", testValue, testDate)
	require.NoError(t, err)
	_, err = s.UpsertPrice("EEUU", testDate, decimal.RequireFromString("100"))
	require.NoError(t, err)
	_, err = s.UpsertWeight("Portfolio 1", "EEUU", decimal.RequireFromString("0.5"))
	require.NoError(t, err)

	_, err = db.Exec(`DELETE FROM assets WHERE id = ?`, asset.ID)
	require.NoError(t, err)

	prices, err := s.Prices().Count()
	require.NoError(t, err)
	assert.Equal(t, 0, prices, "deleting an asset cascades to its prices")

	weights, err := s.Weights().Count()
	require.NoError(t, err)
	assert.Equal(t, 0, weights, "deleting an asset cascades to its weights")
}

func TestClearAll(t *testing.T) {
	s := setupTestService(t)

	_, err := s.UpsertAsset("EEUU", "")
	require.NoError(t, err)
	_, err = s.UpsertPortfolio("Portfolio 1", testValue, testDate)
	require.NoError(t, err)
	_, err = s.UpsertPrice("EEUU", testDate, decimal.RequireFromString("100"))
	require.NoError(t, err)
	_, err = s.UpsertWeight("Portfolio 1", "EEUU", decimal.RequireFromString("0.5"))
	require.NoError(t, err)

	require.NoError(t, s.ClearAll())

	counts, err := s.Counts()
	require.NoError(t, err)
	assert.Equal(t, Counts{}, counts)
}
