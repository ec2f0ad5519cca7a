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

// TransactionRepository handles buy/sell transaction database operations.
// The ingestion pipeline never writes transactions; the table exists as a
// sink for future transaction processing and must still be clearable and
// constraint-checked like every other table.
type TransactionRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *sql.DB, log zerolog.Logger) *TransactionRepository {
	return &TransactionRepository{
		db:  db,
		log: log.With().Str("repo", "transaction").Logger(),
	}
}

// Insert records a transaction. Transactions have no natural key (a
// portfolio may buy the same asset twice in a day), so this is an append,
// not an upsert.
func (r *TransactionRepository) Insert(t domain.Transaction) (*domain.Transaction, error) {
	t.Date = domain.NormalizeDate(t.Date)
	if err := t.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().Unix()

	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		res, err := tx.Exec(
			`INSERT INTO transactions (portfolio_id, asset_id, date, type, amount, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			t.PortfolioID, t.AssetID, formatDate(t.Date), string(t.Type), t.Amount.String(), now, now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert transaction: %w", err)
		}
		t.ID, _ = res.LastInsertId()
		t.CreatedAt = now
		t.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &t, nil
}

// GetByPortfolio returns all transactions for a portfolio ordered by date
// descending.
func (r *TransactionRepository) GetByPortfolio(portfolioID int64) ([]domain.Transaction, error) {
	query := `SELECT id, portfolio_id, asset_id, date, type, amount, created_at, updated_at
		FROM transactions WHERE portfolio_id = ? ORDER BY date DESC`

	rows, err := r.db.Query(query, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		var dateStr, typeStr, amountStr string
		if err := rows.Scan(&t.ID, &t.PortfolioID, &t.AssetID, &dateStr, &typeStr, &amountStr, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}

		t.Type = domain.TransactionType(typeStr)
		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			return nil, fmt.Errorf("invalid stored amount %q: %w", amountStr, err)
		}
		t.Amount = amount

		date, err := parseDate(dateStr)
		if err != nil {
			return nil, fmt.Errorf("invalid stored transaction date %q: %w", dateStr, err)
		}
		t.Date = date

		transactions = append(transactions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return transactions, nil
}

// Count returns the number of transactions.
func (r *TransactionRepository) Count() (int, error) {
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM transactions`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

// DeleteAll removes every transaction.
func (r *TransactionRepository) DeleteAll() error {
	result, err := r.db.Exec(`DELETE FROM transactions`)
	if err != nil {
		return fmt.Errorf("failed to delete all transactions: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	r.log.Warn().Int64("rows_affected", rowsAffected).Msg("All transactions deleted")
	return nil
}
