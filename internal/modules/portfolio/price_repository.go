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

// PriceRepository handles historical price database operations
type PriceRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewPriceRepository creates a new price repository
func NewPriceRepository(db *sql.DB, log zerolog.Logger) *PriceRepository {
	return &PriceRepository{
		db:  db,
		log: log.With().Str("repo", "price").Logger(),
	}
}

// GetByAssetAndDate returns the price for (asset, date), or nil if absent.
func (r *PriceRepository) GetByAssetAndDate(assetID int64, date time.Time) (*domain.Price, error) {
	query := `SELECT p.id, p.asset_id, a.name, p.date, p.price, p.created_at, p.updated_at
		FROM prices p JOIN assets a ON a.id = p.asset_id
		WHERE p.asset_id = ? AND p.date = ?`

	row := r.db.QueryRow(query, assetID, formatDate(domain.NormalizeDate(date)))
	price, err := scanPrice(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query price by asset and date: %w", err)
	}
	return price, nil
}

// GetByAsset returns all prices for an asset ordered by date.
func (r *PriceRepository) GetByAsset(assetID int64) ([]domain.Price, error) {
	query := `SELECT p.id, p.asset_id, a.name, p.date, p.price, p.created_at, p.updated_at
		FROM prices p JOIN assets a ON a.id = p.asset_id
		WHERE p.asset_id = ? ORDER BY p.date`

	rows, err := r.db.Query(query, assetID)
	if err != nil {
		return nil, fmt.Errorf("failed to query prices by asset: %w", err)
	}
	defer rows.Close()

	var prices []domain.Price
	for rows.Next() {
		price, err := scanPrice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan price: %w", err)
		}
		prices = append(prices, *price)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating prices: %w", err)
	}

	return prices, nil
}

// Upsert creates the price if (asset, date) is unknown, otherwise overwrites
// the price value. Validation runs before any write.
func (r *PriceRepository) Upsert(price domain.Price) (*domain.Price, error) {
	price.Date = domain.NormalizeDate(price.Date)
	if err := price.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	dateStr := formatDate(price.Date)

	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		var id, createdAt int64
		err := tx.QueryRow(
			`SELECT id, created_at FROM prices WHERE asset_id = ? AND date = ?`,
			price.AssetID, dateStr,
		).Scan(&id, &createdAt)
		switch {
		case err == sql.ErrNoRows:
			res, err := tx.Exec(
				`INSERT INTO prices (asset_id, date, price, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?)`,
				price.AssetID, dateStr, price.Price.String(), now, now,
			)
			if err != nil {
				return fmt.Errorf("failed to insert price: %w", err)
			}
			price.ID, _ = res.LastInsertId()
			price.CreatedAt = now
			price.UpdatedAt = now
		case err != nil:
			return fmt.Errorf("failed to look up price: %w", err)
		default:
			if _, err := tx.Exec(
				`UPDATE prices SET price = ?, updated_at = ? WHERE id = ?`,
				price.Price.String(), now, id,
			); err != nil {
				return fmt.Errorf("failed to update price: %w", err)
			}
			price.ID = id
			price.CreatedAt = createdAt
			price.UpdatedAt = now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &price, nil
}

// Count returns the number of prices.
func (r *PriceRepository) Count() (int, error) {
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM prices`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count prices: %w", err)
	}
	return count, nil
}

// DeleteAll removes every price.
func (r *PriceRepository) DeleteAll() error {
	result, err := r.db.Exec(`DELETE FROM prices`)
	if err != nil {
		return fmt.Errorf("failed to delete all prices: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	r.log.Warn().Int64("rows_affected", rowsAffected).Msg("All prices deleted")
	return nil
}

func scanPrice(s scanner) (*domain.Price, error) {
	var p domain.Price
	var priceStr, dateStr string

	if err := s.Scan(&p.ID, &p.AssetID, &p.AssetName, &dateStr, &priceStr, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}

	value, err := decimal.NewFromString(priceStr)
	if err != nil {
		return nil, fmt.Errorf("invalid stored price %q: %w", priceStr, err)
	}
	p.Price = value

	date, err := parseDate(dateStr)
	if err != nil {
		return nil, fmt.Errorf("invalid stored price date %q: %w", dateStr, err)
	}
	p.Date = date

	return &p, nil
}
