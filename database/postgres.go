package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"dealscout/config"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Connect opens the Postgres observation store and checks it is reachable
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("database url is required")
	}

	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	log.Println("Successfully connected to database")
	return db, nil
}

// CreateTables creates the necessary tables if they don't exist
func CreateTables(ctx context.Context, db *sqlx.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS price_observations (
			id BIGSERIAL PRIMARY KEY,
			query_id VARCHAR(36) NOT NULL,
			query TEXT NOT NULL,
			source VARCHAR(32) NOT NULL,
			title TEXT NOT NULL,
			price DECIMAL(12,2) NOT NULL,
			rating DECIMAL(3,2),
			url TEXT,
			observed_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_price_observations_url ON price_observations (url, observed_at)
		WHERE url IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS idx_price_observations_query ON price_observations (query_id)`,
	}

	for _, query := range queries {
		if _, err := db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	return nil
}
