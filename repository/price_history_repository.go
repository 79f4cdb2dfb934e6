package repository

import (
	"context"
	"fmt"

	"dealscout/models"

	"github.com/jmoiron/sqlx"
)

const insertObservation = `INSERT INTO price_observations (query_id, query, source, title, price, rating, url, observed_at)
	VALUES (:query_id, :query, :source, :title, :price, :rating, :url, :observed_at)`

// PriceHistoryRepository appends scraped prices to price_observations.
// Nothing in the search pipeline reads these rows back.
type PriceHistoryRepository struct {
	db *sqlx.DB
}

func NewPriceHistoryRepository(db *sqlx.DB) *PriceHistoryRepository {
	return &PriceHistoryRepository{db: db}
}

// RecordObservations inserts all observations in one transaction
func (r *PriceHistoryRepository) RecordObservations(ctx context.Context, observations []models.PriceObservation) error {
	if len(observations) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.NamedExecContext(ctx, insertObservation, observations); err != nil {
		return fmt.Errorf("failed to add price history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit price history: %w", err)
	}
	return nil
}
