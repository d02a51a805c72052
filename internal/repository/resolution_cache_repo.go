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

// ResolutionCacheRepository persists ticker → canonical-identity mappings and
// identity → metadata records. Writes are idempotent upserts keyed by ticker
// or identity, so concurrent duplicate writes from parallel resolutions are
// harmless.
type ResolutionCacheRepository struct {
	pool *pgxpool.Pool
}

// NewResolutionCacheRepository creates a new ResolutionCacheRepository.
func NewResolutionCacheRepository(pool *pgxpool.Pool) *ResolutionCacheRepository {
	return &ResolutionCacheRepository{pool: pool}
}

// GetIdentity retrieves a cached resolution for a ticker, or nil on a miss.
func (r *ResolutionCacheRepository) GetIdentity(ctx context.Context, ticker string) (*models.ResolvedIdentity, error) {
	query := `
		SELECT identity, name, source, confidence
		FROM resolution_cache
		WHERE ticker = $1
	`
	ri := &models.ResolvedIdentity{}
	err := r.pool.QueryRow(ctx, query, ticker).Scan(&ri.Identity, &ri.Name, &ri.Source, &ri.Confidence)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached identity: %w", err)
	}
	return ri, nil
}

// BatchGetIdentities retrieves cached resolutions for a set of tickers.
// Missing tickers are simply absent from the result map.
func (r *ResolutionCacheRepository) BatchGetIdentities(ctx context.Context, tickers []string) (map[string]models.ResolvedIdentity, error) {
	if len(tickers) == 0 {
		return map[string]models.ResolvedIdentity{}, nil
	}
	query := `
		SELECT ticker, identity, name, source, confidence
		FROM resolution_cache
		WHERE ticker = ANY($1)
	`
	rows, err := r.pool.Query(ctx, query, tickers)
	if err != nil {
		return nil, fmt.Errorf("failed to query cached identities: %w", err)
	}
	defer rows.Close()

	result := make(map[string]models.ResolvedIdentity)
	for rows.Next() {
		var ticker string
		var ri models.ResolvedIdentity
		if err := rows.Scan(&ticker, &ri.Identity, &ri.Name, &ri.Source, &ri.Confidence); err != nil {
			return nil, fmt.Errorf("failed to scan cached identity: %w", err)
		}
		result[ticker] = ri
	}
	return result, rows.Err()
}

// PutIdentity upserts a resolution, recording when it was written. Repeated
// writes for the same ticker overwrite in place.
func (r *ResolutionCacheRepository) PutIdentity(ctx context.Context, ticker string, ri models.ResolvedIdentity) error {
	query := `
		INSERT INTO resolution_cache (ticker, identity, name, source, confidence, updated)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (ticker)
		DO UPDATE SET identity = $2, name = $3, source = $4, confidence = $5, updated = NOW()
	`
	if _, err := r.pool.Exec(ctx, query, ticker, ri.Identity, ri.Name, ri.Source, ri.Confidence); err != nil {
		return fmt.Errorf("failed to cache identity: %w", err)
	}
	return nil
}

// GetMetadata retrieves cached enrichment metadata for an identity, or nil.
func (r *ResolutionCacheRepository) GetMetadata(ctx context.Context, identity string) (*models.Metadata, error) {
	query := `
		SELECT sector, geography, asset_class, source, confidence
		FROM metadata_cache
		WHERE identity = $1
	`
	m := &models.Metadata{}
	err := r.pool.QueryRow(ctx, query, identity).Scan(&m.Sector, &m.Geography, &m.AssetClass, &m.Source, &m.Confidence)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached metadata: %w", err)
	}
	return m, nil
}

// BatchGetMetadata retrieves cached metadata for a set of identities.
func (r *ResolutionCacheRepository) BatchGetMetadata(ctx context.Context, identities []string) (map[string]models.Metadata, error) {
	if len(identities) == 0 {
		return map[string]models.Metadata{}, nil
	}
	query := `
		SELECT identity, sector, geography, asset_class, source, confidence
		FROM metadata_cache
		WHERE identity = ANY($1)
	`
	rows, err := r.pool.Query(ctx, query, identities)
	if err != nil {
		return nil, fmt.Errorf("failed to query cached metadata: %w", err)
	}
	defer rows.Close()

	result := make(map[string]models.Metadata)
	for rows.Next() {
		var identity string
		var m models.Metadata
		if err := rows.Scan(&identity, &m.Sector, &m.Geography, &m.AssetClass, &m.Source, &m.Confidence); err != nil {
			return nil, fmt.Errorf("failed to scan cached metadata: %w", err)
		}
		result[identity] = m
	}
	return result, rows.Err()
}

// PutMetadata upserts enrichment metadata keyed by identity.
func (r *ResolutionCacheRepository) PutMetadata(ctx context.Context, identity string, m models.Metadata) error {
	query := `
		INSERT INTO metadata_cache (identity, sector, geography, asset_class, source, confidence, updated)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (identity)
		DO UPDATE SET sector = $2, geography = $3, asset_class = $4, source = $5, confidence = $6, updated = NOW()
	`
	if _, err := r.pool.Exec(ctx, query, identity, m.Sector, m.Geography, m.AssetClass, m.Source, m.Confidence); err != nil {
		return fmt.Errorf("failed to cache metadata: %w", err)
	}
	return nil
}

// IsStale reports whether a cached timestamp has aged past maxAge.
func IsStale(updated time.Time, maxAge time.Duration) bool {
	return time.Since(updated) > maxAge
}
