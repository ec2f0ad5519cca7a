// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir      string // Base directory for the database and source workbooks (always absolute)
	DatabasePath string // SQLite database file path
	WorkbookPath string // Default workbook to ingest when none is given on the command line
	LogLevel     string
	Port         int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Determine data directory:
	// 1. CARTERA_DATA_DIR environment variable
	// 2. fallback to ./data
	// Always resolved to an absolute path, created if missing.
	dataDir := getEnv("CARTERA_DATA_DIR", "data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory to absolute path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", absDataDir, err)
	}

	dbPath := getEnv("CARTERA_DB_PATH", "")
	if dbPath == "" {
		dbPath = filepath.Join(absDataDir, "cartera.db")
	}

	workbookPath := getEnv("CARTERA_WORKBOOK", "")
	if workbookPath == "" {
		workbookPath = filepath.Join(absDataDir, "datos.xlsx")
	}

	port, err := strconv.Atoi(getEnv("PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid PORT value: %w", err)
	}

	return &Config{
		DataDir:      absDataDir,
		DatabasePath: dbPath,
		WorkbookPath: workbookPath,
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		Port:         port,
	}, nil
}

// getEnv retrieves an environment variable value, returning a fallback if the
// variable is not set or is empty.
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
