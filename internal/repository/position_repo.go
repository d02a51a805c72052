package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/epeers/exposure/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrPortfolioNotFound = errors.New("portfolio not found")

// PositionRepository reads brokerage positions from the position store.
// The store is owned by the sync layer; this repository is read-only.
type PositionRepository struct {
	pool *pgxpool.Pool
}

// NewPositionRepository creates a new PositionRepository.
func NewPositionRepository(pool *pgxpool.Pool) *PositionRepository {
	return &PositionRepository{pool: pool}
}

// LoadPositions retrieves all positions for a portfolio.
func (r *PositionRepository) LoadPositions(ctx context.Context, portfolioID int64) ([]models.Position, error) {
	query := `
		SELECT portfolio_id, COALESCE(identity, ''), ticker, name,
		       quantity, last_price, cost_basis, asset_class, currency
		FROM position
		WHERE portfolio_id = $1
		ORDER BY ticker ASC
	`
	rows, err := r.pool.Query(ctx, query, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	var positions []models.Position
	for rows.Next() {
		var p models.Position
		if err := rows.Scan(&p.PortfolioID, &p.Identity, &p.Ticker, &p.Name,
			&p.Quantity, &p.LastPrice, &p.CostBasis, &p.AssetClass, &p.Currency); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// PortfolioExists checks that a portfolio is present in the store.
func (r *PositionRepository) PortfolioExists(ctx context.Context, portfolioID int64) (bool, error) {
	query := `SELECT id FROM portfolio WHERE id = $1`
	var id int64
	err := r.pool.QueryRow(ctx, query, portfolioID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check portfolio: %w", err)
	}
	return true, nil
}
