package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssetValidate(t *testing.T) {
	assert.NoError(t, Asset{Name: "EEUU"}.Validate())
	assert.Error(t, Asset{Name: ""}.Validate())
	assert.Error(t, Asset{Name: "   "}.Validate(), "whitespace-only name should be rejected")
}

func TestPriceValidate(t *testing.T) {
	date := time.Date(2022, 2, 15, 0, 0, 0, 0, time.UTC)

	assert.NoError(t, Price{Date: date, Price: decimal.RequireFromString("100.00")}.Validate())
	assert.Error(t, Price{Date: date, Price: decimal.Zero}.Validate())
	assert.Error(t, Price{Date: date, Price: decimal.RequireFromString("-1")}.Validate())
	assert.Error(t, Price{Price: decimal.RequireFromString("1")}.Validate(), "zero date should be rejected")
}

func TestWeightValidate_Boundaries(t *testing.T) {
	valid := []string{"0", "1", "0.28", "0.000001"}
	for _, v := range valid {
		w := PortfolioWeight{InitialWeight: decimal.RequireFromString(v)}
		assert.NoError(t, w.Validate(), "weight %s should be accepted", v)
	}

	invalid := []string{"1.0000001", "-0.01", "2"}
	for _, v := range invalid {
		w := PortfolioWeight{InitialWeight: decimal.RequireFromString(v)}
		assert.Error(t, w.Validate(), "weight %s should be rejected", v)
	}
}

func TestHoldingValidate(t *testing.T) {
	date := time.Date(2022, 2, 15, 0, 0, 0, 0, time.UTC)

	assert.NoError(t, PortfolioHolding{Date: date, Quantity: decimal.Zero}.Validate(), "zero quantity is allowed")
	assert.Error(t, PortfolioHolding{Date: date, Quantity: decimal.RequireFromString("-0.00000001")}.Validate())
}

func TestTransactionValidate(t *testing.T) {
	date := time.Date(2022, 3, 1, 0, 0, 0, 0, time.UTC)

	assert.NoError(t, Transaction{Date: date, Type: TransactionBuy, Amount: decimal.RequireFromString("10.00")}.Validate())
	assert.Error(t, Transaction{Date: date, Type: TransactionSell, Amount: decimal.Zero}.Validate())
	assert.Error(t, Transaction{Date: date, Type: "HOLD", Amount: decimal.RequireFromString("1")}.Validate())
}

func TestValidationErrorDetails(t *testing.T) {
	err := PortfolioWeight{InitialWeight: decimal.RequireFromString("1.5")}.Validate()
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "portfolio_weight", verr.Entity)
	assert.Equal(t, "weight_range_0_to_1", verr.Constraint)
	assert.Equal(t, "1.5", verr.Value)
}

func TestNormalizeDate(t *testing.T) {
	in := time.Date(2022, 2, 15, 17, 30, 12, 0, time.FixedZone("X", 3600))
	out := NormalizeDate(in)
	assert.Equal(t, time.Date(2022, 2, 15, 0, 0, 0, 0, time.UTC), out)
}
