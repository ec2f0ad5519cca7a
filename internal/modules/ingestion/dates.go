package ingestion

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/aristath/cartera/internal/domain"
)

// Price dates must fall inside the fixed historical window, inclusive on
// both ends.
var (
	priceWindowStart = time.Date(2022, time.February, 15, 0, 0, 0, 0, time.UTC)
	priceWindowEnd   = time.Date(2023, time.February, 16, 0, 0, 0, 0, time.UTC)
)

// DateParseError reports a date cell that matched none of the accepted
// representations.
type DateParseError struct {
	Sheet string
	Cell  string
	Raw   string
}

func (e *DateParseError) Error() string {
	return fmt.Sprintf("unparseable date %q at %s!%s", e.Raw, e.Sheet, e.Cell)
}

// isoLayouts cover native date and datetime cell values; anything with a
// time component is truncated to its calendar date.
var isoLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// parseCellDate converts a raw date cell into a calendar date.
//
// Acceptance order, first match wins:
//  1. ISO date or datetime (datetime truncated to its date)
//  2. DD/MM/YYYY
//  3. DD/MM/YY, two-digit year widened to 20YY
//  4. Excel serial number
//
// Anything else is a DateParseError naming the offending cell.
func parseCellDate(raw, sheet, cell string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, &DateParseError{Sheet: sheet, Cell: cell, Raw: raw}
	}

	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return domain.NormalizeDate(t), nil
		}
	}

	if t, ok := parseDayMonthYear(s); ok {
		return t, nil
	}

	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return domain.NormalizeDate(t), nil
		}
	}

	return time.Time{}, &DateParseError{Sheet: sheet, Cell: cell, Raw: raw}
}

// parseDayMonthYear handles DD/MM/YYYY and DD/MM/YY. Go's reference-layout
// parsing widens two-digit years by century pivot, which is not what the
// source data means: its years are always 20YY.
func parseDayMonthYear(s string) (time.Time, bool) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return time.Time{}, false
	}

	day, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return time.Time{}, false
	}
	month, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return time.Time{}, false
	}
	year, err := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err != nil {
		return time.Time{}, false
	}

	if year < 100 {
		year += 2000
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes out-of-range components; a changed day or month
	// means the input was not a real calendar date.
	if t.Day() != day || int(t.Month()) != month || t.Year() != year {
		return time.Time{}, false
	}
	return t, true
}

// inPriceWindow reports whether a price date falls inside the accepted
// historical window.
func inPriceWindow(t time.Time) bool {
	return !t.Before(priceWindowStart) && !t.After(priceWindowEnd)
}
