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

// WeightRepository handles initial portfolio weight database operations
type WeightRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewWeightRepository creates a new weight repository
func NewWeightRepository(db *sql.DB, log zerolog.Logger) *WeightRepository {
	return &WeightRepository{
		db:  db,
		log: log.With().Str("repo", "weight").Logger(),
	}
}

// GetByPortfolioAndAsset returns the weight for (portfolio, asset), or nil if
// absent.
func (r *WeightRepository) GetByPortfolioAndAsset(portfolioID, assetID int64) (*domain.PortfolioWeight, error) {
	query := `SELECT w.id, w.portfolio_id, p.name, w.asset_id, a.name, w.initial_weight, w.created_at, w.updated_at
		FROM portfolio_weights w
		JOIN portfolios p ON p.id = w.portfolio_id
		JOIN assets a ON a.id = w.asset_id
		WHERE w.portfolio_id = ? AND w.asset_id = ?`

	row := r.db.QueryRow(query, portfolioID, assetID)
	w, err := scanWeight(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query weight by portfolio and asset: %w", err)
	}
	return w, nil
}

// GetByPortfolio returns all weights belonging to a portfolio, joined with
// asset names, ordered by asset name.
func (r *WeightRepository) GetByPortfolio(portfolioID int64) ([]domain.PortfolioWeight, error) {
	query := `SELECT w.id, w.portfolio_id, p.name, w.asset_id, a.name, w.initial_weight, w.created_at, w.updated_at
		FROM portfolio_weights w
		JOIN portfolios p ON p.id = w.portfolio_id
		JOIN assets a ON a.id = w.asset_id
		WHERE w.portfolio_id = ? ORDER BY a.name`

	rows, err := r.db.Query(query, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to query weights by portfolio: %w", err)
	}
	defer rows.Close()

	var weights []domain.PortfolioWeight
	for rows.Next() {
		w, err := scanWeight(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan weight: %w", err)
		}
		weights = append(weights, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating weights: %w", err)
	}

	return weights, nil
}

// Upsert creates the weight if (portfolio, asset) is unknown, otherwise
// overwrites the weight value. Validation runs before any write.
func (r *WeightRepository) Upsert(w domain.PortfolioWeight) (*domain.PortfolioWeight, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().Unix()

	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		var id, createdAt int64
		err := tx.QueryRow(
			`SELECT id, created_at FROM portfolio_weights WHERE portfolio_id = ? AND asset_id = ?`,
			w.PortfolioID, w.AssetID,
		).Scan(&id, &createdAt)
		switch {
		case err == sql.ErrNoRows:
			res, err := tx.Exec(
				`INSERT INTO portfolio_weights (portfolio_id, asset_id, initial_weight, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?)`,
				w.PortfolioID, w.AssetID, w.InitialWeight.String(), now, now,
			)
			if err != nil {
				return fmt.Errorf("failed to insert weight: %w", err)
			}
			w.ID, _ = res.LastInsertId()
			w.CreatedAt = now
			w.UpdatedAt = now
		case err != nil:
			return fmt.Errorf("failed to look up weight: %w", err)
		default:
			if _, err := tx.Exec(
				`UPDATE portfolio_weights SET initial_weight = ?, updated_at = ? WHERE id = ?`,
				w.InitialWeight.String(), now, id,
			); err != nil {
				return fmt.Errorf("failed to update weight: %w", err)
			}
			w.ID = id
			w.CreatedAt = createdAt
			w.UpdatedAt = now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &w, nil
}

// Count returns the number of weights.
func (r *WeightRepository) Count() (int, error) {
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM portfolio_weights`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count weights: %w", err)
	}
	return count, nil
}

// DeleteAll removes every weight.
func (r *WeightRepository) DeleteAll() error {
	result, err := r.db.Exec(`DELETE FROM portfolio_weights`)
	if err != nil {
		return fmt.Errorf("failed to delete all weights: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	r.log.Warn().Int64("rows_affected", rowsAffected).Msg("All weights deleted")
	return nil
}

func scanWeight(s scanner) (*domain.PortfolioWeight, error) {
	var w domain.PortfolioWeight
	var weightStr string

	if err := s.Scan(&w.ID, &w.PortfolioID, &w.PortfolioName, &w.AssetID, &w.AssetName, &weightStr, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, err
	}

	value, err := decimal.NewFromString(weightStr)
	if err != nil {
		return nil, fmt.Errorf("invalid stored weight %q: %w", weightStr, err)
	}
	w.InitialWeight = value

	return &w, nil
}
