package ingestion

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Required sheet names in the source workbook.
const (
	SheetWeights = "weights"
	SheetPrices  = "Precios"
)

// weightColumns maps zero-based weights-sheet columns to the portfolio each
// column belongs to. Column layout: A date (ignored), B asset name, C
// Portfolio 1 weight, D Portfolio 2 weight.
var weightColumns = []struct {
	col   int
	label string
}{
	{2, "Portfolio 1"},
	{3, "Portfolio 2"},
}

// Parser converts the two workbook sheets into tagged candidate rows. It is
// stateless across calls: every method re-reads its sheet and returns
// values, leaving persistence to the caller.
type Parser struct {
	file *excelize.File
	log  zerolog.Logger
}

// NewParser wraps an open workbook. Both required sheets must be present;
// a missing sheet is a fatal precondition failure before any row is read.
func NewParser(file *excelize.File, log zerolog.Logger) (*Parser, error) {
	for _, sheet := range []string{SheetWeights, SheetPrices} {
		idx, err := file.GetSheetIndex(sheet)
		if err != nil {
			return nil, fmt.Errorf("failed to inspect workbook sheets: %w", err)
		}
		if idx < 0 {
			return nil, fmt.Errorf("required sheet %q not found in workbook", sheet)
		}
	}

	return &Parser{
		file: file,
		log:  log.With().Str("component", "parser").Logger(),
	}, nil
}

// OpenWorkbook opens the workbook at path and verifies the required sheets.
func OpenWorkbook(path string, log zerolog.Logger) (*Parser, error) {
	file, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}

	parser, err := NewParser(file, log)
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	return parser, nil
}

// Close releases the underlying workbook.
func (p *Parser) Close() error {
	return p.file.Close()
}

// AssetRows reads asset names from the weights sheet: column B, rows 2..N.
// Blank or whitespace-only names terminate that row's inclusion (the row is
// skipped, not fatal).
func (p *Parser) AssetRows() ([]Row, error) {
	rows, err := p.file.GetRows(SheetWeights)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", SheetWeights, err)
	}

	var out []Row
	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		name := strings.TrimSpace(cellAt(row, 1))
		if name == "" {
			continue
		}
		out = append(out, okAsset(name))
	}

	return out, nil
}

// WeightRows reads the per-portfolio weight columns of the weights sheet.
// known holds the asset names parsed by AssetRows; a weight row naming any
// other asset is rejected (cross-sheet referential check). Rejections are
// reported as tagged error rows, never as a failed parse.
func (p *Parser) WeightRows(known map[string]bool) ([]Row, error) {
	rows, err := p.file.GetRows(SheetWeights)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", SheetWeights, err)
	}

	var out []Row
	for i, row := range rows {
		if i == 0 {
			continue
		}
		rowNum := i + 1

		assetName := strings.TrimSpace(cellAt(row, 1))
		if assetName == "" {
			continue
		}
		if !known[assetName] {
			out = append(out, errRow(RowWeight, SheetWeights, cellName(2, rowNum),
				fmt.Sprintf("asset %q not recognized", assetName)))
			continue
		}

		for _, wc := range weightColumns {
			raw := strings.TrimSpace(cellAt(row, wc.col))
			if raw == "" {
				continue
			}
			cell := cellName(wc.col+1, rowNum)

			weight, err := decimal.NewFromString(raw)
			if err != nil {
				out = append(out, errRow(RowWeight, SheetWeights, cell,
					fmt.Sprintf("invalid weight value %q", raw)))
				continue
			}
			if weight.IsNegative() || weight.GreaterThan(decimal.NewFromInt(1)) {
				out = append(out, errRow(RowWeight, SheetWeights, cell,
					fmt.Sprintf("weight %s outside [0, 1]", weight)))
				continue
			}

			out = append(out, okWeight(assetName, wc.label, weight))
		}
	}

	return out, nil
}

// PriceRows reads the price matrix: asset-name headers in row 1 from column
// B, dates in column A from row 2, prices in the body. known holds the asset
// names parsed by AssetRows; header names outside it reject the whole
// column. Bad dates, out-of-window dates, and non-positive or malformed
// prices reject single rows or cells.
func (p *Parser) PriceRows(known map[string]bool) ([]Row, error) {
	rows, err := p.file.GetRows(SheetPrices)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", SheetPrices, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	var out []Row

	// Header row: map column index to asset name.
	header := rows[0]
	assetByCol := make(map[int]string)
	for col := 1; col < len(header); col++ {
		name := strings.TrimSpace(header[col])
		if name == "" {
			continue
		}
		if !known[name] {
			out = append(out, errRow(RowPrice, SheetPrices, cellName(col+1, 1),
				fmt.Sprintf("asset %q in header not recognized", name)))
			continue
		}
		assetByCol[col] = name
	}

	for i := 1; i < len(rows); i++ {
		row := rows[i]
		rowNum := i + 1

		rawDate := strings.TrimSpace(cellAt(row, 0))
		if rawDate == "" {
			continue
		}

		dateCell := cellName(1, rowNum)
		date, err := parseCellDate(rawDate, SheetPrices, dateCell)
		if err != nil {
			out = append(out, errRow(RowPrice, SheetPrices, dateCell, err.Error()))
			continue
		}
		if !inPriceWindow(date) {
			out = append(out, errRow(RowPrice, SheetPrices, dateCell,
				fmt.Sprintf("date %s outside window [%s, %s]",
					date.Format("2006-01-02"),
					priceWindowStart.Format("2006-01-02"),
					priceWindowEnd.Format("2006-01-02"))))
			continue
		}

		for col := 1; col < len(header); col++ {
			assetName, ok := assetByCol[col]
			if !ok {
				continue
			}
			raw := strings.TrimSpace(cellAt(row, col))
			if raw == "" {
				continue
			}
			cell := cellName(col+1, rowNum)

			price, err := decimal.NewFromString(raw)
			if err != nil {
				out = append(out, errRow(RowPrice, SheetPrices, cell,
					fmt.Sprintf("invalid price value %q", raw)))
				continue
			}
			if !price.IsPositive() {
				out = append(out, errRow(RowPrice, SheetPrices, cell,
					fmt.Sprintf("price %s is not positive", price)))
				continue
			}

			out = append(out, okPrice(assetName, date, price))
		}
	}

	return out, nil
}

// cellAt returns the cell at a zero-based column index. excelize trims
// trailing empty cells from each row, so short rows are common.
func cellAt(row []string, col int) string {
	if col >= len(row) {
		return ""
	}
	return row[col]
}

// cellName converts one-based coordinates to an A1-style reference.
func cellName(col, row int) string {
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Sprintf("R%dC%d", row, col)
	}
	return name
}
