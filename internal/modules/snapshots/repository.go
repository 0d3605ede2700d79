// Package snapshots persists the most recent analysis result per portfolio
// so status queries never re-run the pipeline.
package snapshots

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/rebalancr/rebalancr/internal/domain"
)

// Repository stores one msgpack-encoded snapshot per portfolio. Writes
// replace the previous snapshot.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new snapshot repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "snapshots").Logger(),
	}
}

// Save replaces the stored snapshot for a portfolio.
func (r *Repository) Save(result *domain.AnalysisResult) error {
	blob, err := msgpack.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode analysis snapshot: %w", err)
	}

	_, err = r.db.Exec(`INSERT INTO analysis_snapshots (portfolio_id, snapshot, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (portfolio_id)
		DO UPDATE SET snapshot = excluded.snapshot, updated_at = CURRENT_TIMESTAMP`,
		result.PortfolioID, blob)
	if err != nil {
		return fmt.Errorf("failed to store analysis snapshot: %w", err)
	}

	return nil
}

// Latest returns the stored snapshot, or nil when none exists yet.
func (r *Repository) Latest(portfolioID int64) (*domain.AnalysisResult, error) {
	var blob []byte
	err := r.db.QueryRow(
		"SELECT snapshot FROM analysis_snapshots WHERE portfolio_id = ?", portfolioID).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load analysis snapshot: %w", err)
	}

	var result domain.AnalysisResult
	if err := msgpack.Unmarshal(blob, &result); err != nil {
		return nil, fmt.Errorf("failed to decode analysis snapshot: %w", err)
	}

	return &result, nil
}
