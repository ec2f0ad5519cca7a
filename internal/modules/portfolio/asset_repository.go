// Package portfolio provides the entity store and idempotent upsert service
// for the ingestion pipeline: assets, portfolios, prices, weights, holdings
// and transactions, each keyed by its natural key.
package portfolio

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/cartera/internal/database"
	"github.com/aristath/cartera/internal/domain"
)

// AssetRepository handles asset database operations
type AssetRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewAssetRepository creates a new asset repository
func NewAssetRepository(db *sql.DB, log zerolog.Logger) *AssetRepository {
	return &AssetRepository{
		db:  db,
		log: log.With().Str("repo", "asset").Logger(),
	}
}

// GetByName returns the asset with the given name, or nil if absent.
func (r *AssetRepository) GetByName(name string) (*domain.Asset, error) {
	query := `SELECT id, name, symbol, created_at, updated_at FROM assets WHERE name = ?`

	row := r.db.QueryRow(query, strings.TrimSpace(name))
	asset, err := scanAsset(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query asset by name: %w", err)
	}
	return asset, nil
}

// GetAll returns all assets ordered by name.
func (r *AssetRepository) GetAll() ([]domain.Asset, error) {
	query := `SELECT id, name, symbol, created_at, updated_at FROM assets ORDER BY name`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query assets: %w", err)
	}
	defer rows.Close()

	var assets []domain.Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		assets = append(assets, *asset)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assets: %w", err)
	}

	return assets, nil
}

// Upsert creates the asset if its name is unknown, otherwise overwrites the
// mutable fields. Validation runs before any write; the whole operation is a
// single transaction.
func (r *AssetRepository) Upsert(asset domain.Asset) (*domain.Asset, error) {
	asset.Name = strings.TrimSpace(asset.Name)
	if err := asset.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().Unix()

	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		var id, createdAt int64
		err := tx.QueryRow(`SELECT id, created_at FROM assets WHERE name = ?`, asset.Name).Scan(&id, &createdAt)
		switch {
		case err == sql.ErrNoRows:
			res, err := tx.Exec(
				`INSERT INTO assets (name, symbol, created_at, updated_at) VALUES (?, ?, ?, ?)`,
				asset.Name, nullString(asset.Symbol), now, now,
			)
			if err != nil {
				return fmt.Errorf("failed to insert asset: %w", err)
			}
			asset.ID, _ = res.LastInsertId()
			asset.CreatedAt = now
			asset.UpdatedAt = now
		case err != nil:
			return fmt.Errorf("failed to look up asset: %w", err)
		default:
			if _, err := tx.Exec(
				`UPDATE assets SET symbol = ?, updated_at = ? WHERE id = ?`,
				nullString(asset.Symbol), now, id,
			); err != nil {
				return fmt.Errorf("failed to update asset: %w", err)
			}
			asset.ID = id
			asset.CreatedAt = createdAt
			asset.UpdatedAt = now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.log.Debug().Str("name", asset.Name).Int64("id", asset.ID).Msg("Asset upserted")
	return &asset, nil
}

// Count returns the number of assets.
func (r *AssetRepository) Count() (int, error) {
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM assets`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count assets: %w", err)
	}
	return count, nil
}

// DeleteAll removes every asset. Callers are expected to have cleared the
// dependent tables first; cascade rules are a backstop, not the mechanism.
func (r *AssetRepository) DeleteAll() error {
	result, err := r.db.Exec(`DELETE FROM assets`)
	if err != nil {
		return fmt.Errorf("failed to delete all assets: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	r.log.Warn().Int64("rows_affected", rowsAffected).Msg("All assets deleted")
	return nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAsset(s scanner) (*domain.Asset, error) {
	var asset domain.Asset
	var symbol sql.NullString

	if err := s.Scan(&asset.ID, &asset.Name, &symbol, &asset.CreatedAt, &asset.UpdatedAt); err != nil {
		return nil, err
	}
	if symbol.Valid {
		asset.Symbol = symbol.String
	}
	return &asset, nil
}

func nullString(val string) sql.NullString {
	if val == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: val, Valid: true}
}
