package portfolio

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/cartera/internal/database"
	"github.com/aristath/cartera/internal/domain"
)

// PortfolioRepository handles portfolio database operations
type PortfolioRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewPortfolioRepository creates a new portfolio repository
func NewPortfolioRepository(db *sql.DB, log zerolog.Logger) *PortfolioRepository {
	return &PortfolioRepository{
		db:  db,
		log: log.With().Str("repo", "portfolio").Logger(),
	}
}

// GetByName returns the portfolio with the given name, or nil if absent.
func (r *PortfolioRepository) GetByName(name string) (*domain.Portfolio, error) {
	query := `SELECT id, name, initial_value, initial_date, created_at, updated_at
		FROM portfolios WHERE name = ?`

	row := r.db.QueryRow(query, strings.TrimSpace(name))
	p, err := scanPortfolio(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolio by name: %w", err)
	}
	return p, nil
}

// GetAll returns all portfolios ordered by name.
func (r *PortfolioRepository) GetAll() ([]domain.Portfolio, error) {
	query := `SELECT id, name, initial_value, initial_date, created_at, updated_at
		FROM portfolios ORDER BY name`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolios: %w", err)
	}
	defer rows.Close()

	var portfolios []domain.Portfolio
	for rows.Next() {
		p, err := scanPortfolio(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan portfolio: %w", err)
		}
		portfolios = append(portfolios, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating portfolios: %w", err)
	}

	return portfolios, nil
}

// Upsert creates the portfolio if its name is unknown, otherwise overwrites
// initial_value and initial_date.
func (r *PortfolioRepository) Upsert(p domain.Portfolio) (*domain.Portfolio, error) {
	p.Name = strings.TrimSpace(p.Name)
	p.InitialDate = domain.NormalizeDate(p.InitialDate)
	if err := p.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().Unix()

	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		var id, createdAt int64
		err := tx.QueryRow(`SELECT id, created_at FROM portfolios WHERE name = ?`, p.Name).Scan(&id, &createdAt)
		switch {
		case err == sql.ErrNoRows:
			res, err := tx.Exec(
				`INSERT INTO portfolios (name, initial_value, initial_date, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?)`,
				p.Name, p.InitialValue.String(), formatDate(p.InitialDate), now, now,
			)
			if err != nil {
				return fmt.Errorf("failed to insert portfolio: %w", err)
			}
			p.ID, _ = res.LastInsertId()
			p.CreatedAt = now
			p.UpdatedAt = now
		case err != nil:
			return fmt.Errorf("failed to look up portfolio: %w", err)
		default:
			if _, err := tx.Exec(
				`UPDATE portfolios SET initial_value = ?, initial_date = ?, updated_at = ? WHERE id = ?`,
				p.InitialValue.String(), formatDate(p.InitialDate), now, id,
			); err != nil {
				return fmt.Errorf("failed to update portfolio: %w", err)
			}
			p.ID = id
			p.CreatedAt = createdAt
			p.UpdatedAt = now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.log.Debug().Str("name", p.Name).Int64("id", p.ID).Msg("Portfolio upserted")
	return &p, nil
}

// Count returns the number of portfolios.
func (r *PortfolioRepository) Count() (int, error) {
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM portfolios`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count portfolios: %w", err)
	}
	return count, nil
}

// DeleteAll removes every portfolio.
func (r *PortfolioRepository) DeleteAll() error {
	result, err := r.db.Exec(`DELETE FROM portfolios`)
	if err != nil {
		return fmt.Errorf("failed to delete all portfolios: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	r.log.Warn().Int64("rows_affected", rowsAffected).Msg("All portfolios deleted")
	return nil
}

func scanPortfolio(s scanner) (*domain.Portfolio, error) {
	var p domain.Portfolio
	var valueStr, dateStr string

	if err := s.Scan(&p.ID, &p.Name, &valueStr, &dateStr, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}

	value, err := decimal.NewFromString(valueStr)
	if err != nil {
		return nil, fmt.Errorf("invalid stored initial_value %q: %w", valueStr, err)
	}
	p.InitialValue = value

	date, err := parseDate(dateStr)
	if err != nil {
		return nil, fmt.Errorf("invalid stored initial_date %q: %w", dateStr, err)
	}
	p.InitialDate = date

	return &p, nil
}

// formatDate and parseDate convert between time.Time and the ISO-8601 TEXT
// column representation used by every dated table.

func formatDate(t time.Time) string {
	return t.Format(domain.DateLayout)
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(domain.DateLayout, s)
}
