// Package ingestion reads the source workbook and drives the load: sheet
// parsing with row-level validation, upserts through the portfolio service,
// and the run report.
package ingestion

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RowKind tags the variant carried by a Row.
type RowKind int

const (
	RowAsset RowKind = iota + 1
	RowWeight
	RowPrice
)

// AssetRow is a parsed asset name from the weights sheet.
type AssetRow struct {
	Name string
}

// WeightRow is a parsed initial weight for one (asset, portfolio) pair.
type WeightRow struct {
	AssetName      string
	PortfolioLabel string
	Weight         decimal.Decimal
}

// PriceRow is a parsed price for one (asset, date) pair.
type PriceRow struct {
	AssetName string
	Date      time.Time
	Price     decimal.Decimal
}

// Row is a closed tagged variant produced by the parser. Exactly one of the
// typed payloads matching Kind is set when Err is nil; a non-nil Err means
// the row was rejected and carries the reason and the offending cell.
// Rejected rows never abort the parse.
type Row struct {
	Kind   RowKind
	Asset  *AssetRow
	Weight *WeightRow
	Price  *PriceRow
	Err    *RowError
}

// RowError describes a row-level data-quality problem: the sheet and cell it
// came from and why it was rejected. These are warnings, never fatal.
type RowError struct {
	Sheet  string
	Cell   string
	Reason string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("%s!%s: %s", e.Sheet, e.Cell, e.Reason)
}

func okAsset(name string) Row {
	return Row{Kind: RowAsset, Asset: &AssetRow{Name: name}}
}

func okWeight(assetName, portfolioLabel string, weight decimal.Decimal) Row {
	return Row{Kind: RowWeight, Weight: &WeightRow{AssetName: assetName, PortfolioLabel: portfolioLabel, Weight: weight}}
}

func okPrice(assetName string, date time.Time, price decimal.Decimal) Row {
	return Row{Kind: RowPrice, Price: &PriceRow{AssetName: assetName, Date: date, Price: price}}
}

func errRow(kind RowKind, sheet, cell, reason string) Row {
	return Row{Kind: kind, Err: &RowError{Sheet: sheet, Cell: cell, Reason: reason}}
}
