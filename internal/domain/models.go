// Package domain holds the core entities persisted by the ingestion pipeline.
//
// Entities are plain value structs. All monetary and fractional values use
// exact decimals, never binary floats, so currency-scale numbers survive
// repeated ingestion without rounding drift. Dates are calendar dates
// normalized to midnight UTC. CreatedAt/UpdatedAt are unix seconds set by the
// repositories on write.
package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the canonical on-disk representation of calendar dates.
const DateLayout = "2006-01-02"

// NormalizeDate truncates a timestamp to its calendar date at midnight UTC.
func NormalizeDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Asset represents an investable asset, identified by its unique name.
type Asset struct {
	ID        int64
	Name      string
	Symbol    string // optional ticker
	CreatedAt int64
	UpdatedAt int64
}

// Validate checks the asset's invariants.
func (a Asset) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return validationErr("asset", "name_not_blank", a.Name)
	}
	return nil
}

// Portfolio represents a portfolio with its initial value V0 and initial date.
type Portfolio struct {
	ID           int64
	Name         string
	InitialValue decimal.Decimal
	InitialDate  time.Time
	CreatedAt    int64
	UpdatedAt    int64
}

// Validate checks the portfolio's invariants.
func (p Portfolio) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return validationErr("portfolio", "name_not_blank", p.Name)
	}
	return nil
}

// Price stores one asset's price on one date. (asset, date) is unique.
type Price struct {
	ID        int64
	AssetID   int64
	AssetName string // populated on reads that join assets
	Date      time.Time
	Price     decimal.Decimal
	CreatedAt int64
	UpdatedAt int64
}

// Validate checks the price's invariants.
func (p Price) Validate() error {
	if !p.Price.IsPositive() {
		return validationErr("price", "price_positive", p.Price.String())
	}
	if p.Date.IsZero() {
		return validationErr("price", "date_required", "")
	}
	return nil
}

// PortfolioWeight stores one asset's initial allocation fraction within a
// portfolio. (portfolio, asset) is unique.
type PortfolioWeight struct {
	ID            int64
	PortfolioID   int64
	PortfolioName string
	AssetID       int64
	AssetName     string
	InitialWeight decimal.Decimal
	CreatedAt     int64
	UpdatedAt     int64
}

// Validate checks the weight's invariants.
func (w PortfolioWeight) Validate() error {
	if w.InitialWeight.IsNegative() || w.InitialWeight.GreaterThan(decimal.NewFromInt(1)) {
		return validationErr("portfolio_weight", "weight_range_0_to_1", w.InitialWeight.String())
	}
	return nil
}

// PortfolioHolding stores the quantity of an asset held in a portfolio on a
// date. (portfolio, asset, date) is unique.
type PortfolioHolding struct {
	ID          int64
	PortfolioID int64
	AssetID     int64
	AssetName   string
	Date        time.Time
	Quantity    decimal.Decimal
	CreatedAt   int64
	UpdatedAt   int64
}

// Validate checks the holding's invariants.
func (h PortfolioHolding) Validate() error {
	if h.Quantity.IsNegative() {
		return validationErr("portfolio_holding", "quantity_non_negative", h.Quantity.String())
	}
	if h.Date.IsZero() {
		return validationErr("portfolio_holding", "date_required", "")
	}
	return nil
}

// TransactionType distinguishes buys from sells.
type TransactionType string

const (
	TransactionBuy  TransactionType = "BUY"
	TransactionSell TransactionType = "SELL"
)

// Transaction stores a buy or sell against a portfolio. The ingestion
// pipeline declares but never populates transactions; they are a sink for a
// future transaction-processing feature.
type Transaction struct {
	ID          int64
	PortfolioID int64
	AssetID     int64
	Date        time.Time
	Type        TransactionType
	Amount      decimal.Decimal
	CreatedAt   int64
	UpdatedAt   int64
}

// Validate checks the transaction's invariants.
func (t Transaction) Validate() error {
	if t.Type != TransactionBuy && t.Type != TransactionSell {
		return validationErr("transaction", "type_buy_or_sell", string(t.Type))
	}
	if !t.Amount.IsPositive() {
		return validationErr("transaction", "transaction_amount_positive", t.Amount.String())
	}
	return nil
}
