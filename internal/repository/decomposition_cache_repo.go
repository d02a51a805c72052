package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/epeers/exposure/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DecompositionCacheRepository persists prior instrument decompositions so a
// repeat run can skip the community store and provider entirely while the
// cached breakdown is fresh.
type DecompositionCacheRepository struct {
	pool *pgxpool.Pool
}

// NewDecompositionCacheRepository creates a new DecompositionCacheRepository.
func NewDecompositionCacheRepository(pool *pgxpool.Pool) *DecompositionCacheRepository {
	return &DecompositionCacheRepository{pool: pool}
}

// Get retrieves the cached decomposition for an instrument identity together
// with its pull time, or nil on a miss. Constituents come back in their
// stored source order.
func (r *DecompositionCacheRepository) Get(ctx context.Context, identity string) (*models.Decomposition, error) {
	headQuery := `
		SELECT identity, symbol, source, pulled
		FROM decomposition_cache
		WHERE identity = $1
	`
	d := &models.Decomposition{}
	err := r.pool.QueryRow(ctx, headQuery, identity).Scan(&d.Identity, &d.Symbol, &d.Source, &d.PulledAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached decomposition: %w", err)
	}

	lineQuery := `
		SELECT ticker, name, weight, COALESCE(constituent_identity, ''),
		       status, COALESCE(source, ''), confidence
		FROM decomposition_cache_line
		WHERE identity = $1
		ORDER BY position ASC
	`
	rows, err := r.pool.Query(ctx, lineQuery, identity)
	if err != nil {
		return nil, fmt.Errorf("failed to query cached constituents: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c models.ConstituentRecord
		if err := rows.Scan(&c.Ticker, &c.Name, &c.Weight, &c.Identity,
			&c.Status, &c.Source, &c.Confidence); err != nil {
			return nil, fmt.Errorf("failed to scan cached constituent: %w", err)
		}
		d.Constituents = append(d.Constituents, c)
	}
	return d, rows.Err()
}

// Put replaces the cached decomposition for an instrument inside one
// transaction. The header upsert plus delete-and-insert of lines keeps the
// write idempotent: storing identical data twice leaves the same rows.
func (r *DecompositionCacheRepository) Put(ctx context.Context, d models.Decomposition) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	headQuery := `
		INSERT INTO decomposition_cache (identity, symbol, source, pulled)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (identity)
		DO UPDATE SET symbol = $2, source = $3, pulled = $4
	`
	pulled := d.PulledAt
	if pulled.IsZero() {
		pulled = time.Now()
	}
	if _, err := tx.Exec(ctx, headQuery, d.Identity, d.Symbol, d.Source, pulled); err != nil {
		return fmt.Errorf("failed to upsert decomposition: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM decomposition_cache_line WHERE identity = $1`, d.Identity); err != nil {
		return fmt.Errorf("failed to clear old constituents: %w", err)
	}

	lineQuery := `
		INSERT INTO decomposition_cache_line
			(identity, position, ticker, name, weight, constituent_identity, status, source, confidence)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, NULLIF($8, ''), $9)
	`
	for i, c := range d.Constituents {
		if _, err := tx.Exec(ctx, lineQuery, d.Identity, i, c.Ticker, c.Name, c.Weight,
			c.Identity, c.Status, c.Source, c.Confidence); err != nil {
			return fmt.Errorf("failed to insert constituent: %w", err)
		}
	}

	return tx.Commit(ctx)
}
