package portfolio

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/cartera/internal/database"
	"github.com/aristath/cartera/internal/domain"
)

// HoldingRepository handles portfolio holding database operations
type HoldingRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewHoldingRepository creates a new holding repository
func NewHoldingRepository(db *sql.DB, log zerolog.Logger) *HoldingRepository {
	return &HoldingRepository{
		db:  db,
		log: log.With().Str("repo", "holding").Logger(),
	}
}

// GetByKey returns the holding for (portfolio, asset, date), or nil if
// absent.
func (r *HoldingRepository) GetByKey(portfolioID, assetID int64, date time.Time) (*domain.PortfolioHolding, error) {
	query := `SELECT h.id, h.portfolio_id, h.asset_id, a.name, h.date, h.quantity, h.created_at, h.updated_at
		FROM portfolio_holdings h JOIN assets a ON a.id = h.asset_id
		WHERE h.portfolio_id = ? AND h.asset_id = ? AND h.date = ?`

	row := r.db.QueryRow(query, portfolioID, assetID, formatDate(domain.NormalizeDate(date)))
	h, err := scanHolding(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query holding by key: %w", err)
	}
	return h, nil
}

// GetByPortfolio returns all holdings belonging to a portfolio ordered by
// date then asset name.
func (r *HoldingRepository) GetByPortfolio(portfolioID int64) ([]domain.PortfolioHolding, error) {
	query := `SELECT h.id, h.portfolio_id, h.asset_id, a.name, h.date, h.quantity, h.created_at, h.updated_at
		FROM portfolio_holdings h JOIN assets a ON a.id = h.asset_id
		WHERE h.portfolio_id = ? ORDER BY h.date, a.name`

	rows, err := r.db.Query(query, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings by portfolio: %w", err)
	}
	defer rows.Close()

	var holdings []domain.PortfolioHolding
	for rows.Next() {
		h, err := scanHolding(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		holdings = append(holdings, *h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating holdings: %w", err)
	}

	return holdings, nil
}

// Upsert creates the holding if (portfolio, asset, date) is unknown,
// otherwise overwrites the quantity. Validation runs before any write, so
// re-running derivation produces updates, never duplicates.
func (r *HoldingRepository) Upsert(h domain.PortfolioHolding) (*domain.PortfolioHolding, error) {
	h.Date = domain.NormalizeDate(h.Date)
	if err := h.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	dateStr := formatDate(h.Date)

	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		var id, createdAt int64
		err := tx.QueryRow(
			`SELECT id, created_at FROM portfolio_holdings WHERE portfolio_id = ? AND asset_id = ? AND date = ?`,
			h.PortfolioID, h.AssetID, dateStr,
		).Scan(&id, &createdAt)
		switch {
		case err == sql.ErrNoRows:
			res, err := tx.Exec(
				`INSERT INTO portfolio_holdings (portfolio_id, asset_id, date, quantity, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?)`,
				h.PortfolioID, h.AssetID, dateStr, h.Quantity.String(), now, now,
			)
			if err != nil {
				return fmt.Errorf("failed to insert holding: %w", err)
			}
			h.ID, _ = res.LastInsertId()
			h.CreatedAt = now
			h.UpdatedAt = now
		case err != nil:
			return fmt.Errorf("failed to look up holding: %w", err)
		default:
			if _, err := tx.Exec(
				`UPDATE portfolio_holdings SET quantity = ?, updated_at = ? WHERE id = ?`,
				h.Quantity.String(), now, id,
			); err != nil {
				return fmt.Errorf("failed to update holding: %w", err)
			}
			h.ID = id
			h.CreatedAt = createdAt
			h.UpdatedAt = now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &h, nil
}

// Count returns the number of holdings.
func (r *HoldingRepository) Count() (int, error) {
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM portfolio_holdings`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count holdings: %w", err)
	}
	return count, nil
}

// DeleteAll removes every holding.
func (r *HoldingRepository) DeleteAll() error {
	result, err := r.db.Exec(`DELETE FROM portfolio_holdings`)
	if err != nil {
		return fmt.Errorf("failed to delete all holdings: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	r.log.Warn().Int64("rows_affected", rowsAffected).Msg("All holdings deleted")
	return nil
}

func scanHolding(s scanner) (*domain.PortfolioHolding, error) {
	var h domain.PortfolioHolding
	var quantityStr, dateStr string

	if err := s.Scan(&h.ID, &h.PortfolioID, &h.AssetID, &h.AssetName, &dateStr, &quantityStr, &h.CreatedAt, &h.UpdatedAt); err != nil {
		return nil, err
	}

	quantity, err := decimal.NewFromString(quantityStr)
	if err != nil {
		return nil, fmt.Errorf("invalid stored quantity %q: %w", quantityStr, err)
	}
	h.Quantity = quantity

	date, err := parseDate(dateStr)
	if err != nil {
		return nil, fmt.Errorf("invalid stored holding date %q: %w", dateStr, err)
	}
	h.Date = date

	return &h, nil
}
