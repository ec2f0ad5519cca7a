package database

import (
	_ "embed"
	"fmt"
	"strings"
)

// Schema is embedded so the loader, the server, and tests all apply the same
// schema regardless of working directory.
//
//go:embed schemas/cartera_schema.sql
var schemaSQL string

// Migrate applies the embedded database schema. The schema uses
// IF NOT EXISTS throughout, so re-applying it on every startup is safe.
func (db *DB) Migrate() error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction for schema: %w", err)
	}

	if _, err := tx.Exec(schemaSQL); err != nil {
		_ = tx.Rollback()

		// Schema already applied in a pre-IF NOT EXISTS form
		if strings.Contains(err.Error(), "already exists") {
			return nil
		}
		return fmt.Errorf("failed to execute schema for %s: %w", db.name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema for %s: %w", db.name, err)
	}

	return nil
}
