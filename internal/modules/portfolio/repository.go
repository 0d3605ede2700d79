// Package portfolio provides portfolio persistence and valuation.
package portfolio

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/rebalancr/rebalancr/internal/database"
	"github.com/rebalancr/rebalancr/internal/domain"
)

// Repository handles portfolio and event database operations. Portfolios
// live in portfolio.db; rebalance events live in the append-only ledger.
type Repository struct {
	portfolioDB *sql.DB
	ledgerDB    *sql.DB
	log         zerolog.Logger
}

// NewRepository creates a new portfolio repository
func NewRepository(portfolioDB, ledgerDB *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		portfolioDB: portfolioDB,
		ledgerDB:    ledgerDB,
		log:         log.With().Str("repo", "portfolio").Logger(),
	}
}

// Compile-time check that Repository implements domain.PortfolioStore
var _ domain.PortfolioStore = (*Repository)(nil)

// GetPortfolio returns a portfolio with its holdings. Holding amounts come
// from the assets table; values and weights are filled in by the valuation
// service from live prices.
func (r *Repository) GetPortfolio(id int64) (*domain.Portfolio, error) {
	query := `SELECT id, user_id, name, auto_rebalance, max_slippage, check_interval,
		last_rebalance_timestamp FROM portfolios WHERE id = ?`

	p, err := r.scanPortfolio(r.portfolioDB.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("portfolio %d not found", id)
		}
		return nil, fmt.Errorf("failed to query portfolio %d: %w", id, err)
	}

	holdings, err := r.getHoldings(id)
	if err != nil {
		return nil, err
	}
	p.Holdings = holdings

	return p, nil
}

// GetUserPortfolios returns all portfolios owned by a user, oldest first.
func (r *Repository) GetUserPortfolios(userID string) ([]*domain.Portfolio, error) {
	query := `SELECT id, user_id, name, auto_rebalance, max_slippage, check_interval,
		last_rebalance_timestamp FROM portfolios WHERE user_id = ? ORDER BY id`

	rows, err := r.portfolioDB.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolios for user %s: %w", userID, err)
	}
	defer rows.Close()

	var portfolios []*domain.Portfolio
	for rows.Next() {
		p, err := r.scanPortfolio(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan portfolio: %w", err)
		}
		portfolios = append(portfolios, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating portfolios: %w", err)
	}

	for _, p := range portfolios {
		holdings, err := r.getHoldings(p.ID)
		if err != nil {
			return nil, err
		}
		p.Holdings = holdings
	}

	return portfolios, nil
}

// GetAutoRebalancePortfolios returns portfolios with auto-rebalance enabled.
// Used by the background monitor.
func (r *Repository) GetAutoRebalancePortfolios() ([]*domain.Portfolio, error) {
	query := `SELECT id, user_id, name, auto_rebalance, max_slippage, check_interval,
		last_rebalance_timestamp FROM portfolios WHERE auto_rebalance = 1 ORDER BY id`

	rows, err := r.portfolioDB.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query auto-rebalance portfolios: %w", err)
	}
	defer rows.Close()

	var portfolios []*domain.Portfolio
	for rows.Next() {
		p, err := r.scanPortfolio(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan portfolio: %w", err)
		}
		portfolios = append(portfolios, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating portfolios: %w", err)
	}

	return portfolios, nil
}

// ResolvePortfolioName converts a portfolio name to an ID for a user.
// "main" and "default" fall back to the user's first portfolio when no
// exact name matches. Returns 0 when nothing matches.
func (r *Repository) ResolvePortfolioName(userID, name string) (int64, error) {
	portfolios, err := r.GetUserPortfolios(userID)
	if err != nil {
		return 0, err
	}

	lower := strings.ToLower(name)
	for _, p := range portfolios {
		if strings.ToLower(p.Name) == lower {
			return p.ID, nil
		}
	}

	if (lower == "main" || lower == "default") && len(portfolios) > 0 {
		return portfolios[0].ID, nil
	}

	return 0, nil
}

// UpdatePortfolio applies a partial update. Nil fields are untouched.
func (r *Repository) UpdatePortfolio(id int64, update domain.PortfolioUpdate) error {
	var (
		sets []string
		args []interface{}
	)

	if update.AutoRebalance != nil {
		value := 0
		if *update.AutoRebalance {
			value = 1
		}
		sets = append(sets, "auto_rebalance = ?")
		args = append(args, value)
	}
	if update.MaxSlippage != nil {
		sets = append(sets, "max_slippage = ?")
		args = append(args, *update.MaxSlippage)
	}
	if update.CheckInterval != nil {
		sets = append(sets, "check_interval = ?")
		args = append(args, *update.CheckInterval)
	}
	if update.LastRebalance != nil {
		sets = append(sets, "last_rebalance_timestamp = ?")
		args = append(args, *update.LastRebalance)
	}

	if len(sets) == 0 {
		return nil
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE portfolios SET %s WHERE id = ?", strings.Join(sets, ", "))

	result, err := r.portfolioDB.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to update portfolio %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update of portfolio %d: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("portfolio %d not found", id)
	}

	return nil
}

// CreatePortfolio inserts a portfolio with its initial holdings. Used at
// user onboarding. The portfolio row and its holdings commit atomically:
// a failed holding insert leaves no orphan portfolio behind.
func (r *Repository) CreatePortfolio(userID, name string, holdings map[string]float64) (int64, error) {
	var id int64
	err := database.WithTransaction(r.portfolioDB, func(tx *sql.Tx) error {
		result, err := tx.Exec(
			"INSERT INTO portfolios (user_id, name) VALUES (?, ?)", userID, name)
		if err != nil {
			return fmt.Errorf("failed to create portfolio: %w", err)
		}
		id, err = result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read new portfolio id: %w", err)
		}

		for symbol, amount := range holdings {
			if _, err := tx.Exec(
				"INSERT INTO assets (portfolio_id, symbol, amount) VALUES (?, ?, ?)",
				id, symbol, amount); err != nil {
				return fmt.Errorf("failed to insert holding %s: %w", symbol, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return id, nil
}

// SetHoldingAmount upserts one holding's amount after an executed trade.
func (r *Repository) SetHoldingAmount(portfolioID int64, symbol string, amount float64) error {
	_, err := r.portfolioDB.Exec(`INSERT INTO assets (portfolio_id, symbol, amount)
		VALUES (?, ?, ?)
		ON CONFLICT (portfolio_id, symbol)
		DO UPDATE SET amount = excluded.amount, last_updated = CURRENT_TIMESTAMP`,
		portfolioID, symbol, amount)
	if err != nil {
		return fmt.Errorf("failed to set holding %s for portfolio %d: %w", symbol, portfolioID, err)
	}
	return nil
}

// LogEvent appends one event to the ledger. The ledger is append-only:
// there is no update or delete path.
func (r *Repository) LogEvent(event domain.RebalanceEvent) error {
	details, err := json.Marshal(event.Details)
	if err != nil {
		return fmt.Errorf("failed to serialize event details: %w", err)
	}

	_, err = r.ledgerDB.Exec(
		"INSERT INTO rebalance_events (portfolio_id, event_type, details, timestamp) VALUES (?, ?, ?, ?)",
		event.PortfolioID, string(event.Type), string(details), event.Timestamp.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to insert rebalance event: %w", err)
	}

	return nil
}

// GetEvents returns events for a portfolio, most recent first. eventType
// filters when non-empty; limit <= 0 means no limit.
func (r *Repository) GetEvents(portfolioID int64, eventType string, limit int) ([]domain.RebalanceEvent, error) {
	query := "SELECT id, portfolio_id, event_type, details, timestamp FROM rebalance_events WHERE portfolio_id = ?"
	args := []interface{}{portfolioID}

	if eventType != "" {
		query += " AND event_type = ?"
		args = append(args, eventType)
	}
	query += " ORDER BY timestamp DESC, id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.ledgerDB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events for portfolio %d: %w", portfolioID, err)
	}
	defer rows.Close()

	var eventsOut []domain.RebalanceEvent
	for rows.Next() {
		var (
			e         domain.RebalanceEvent
			eventType string
			details   string
			timestamp string
		)
		if err := rows.Scan(&e.ID, &e.PortfolioID, &eventType, &details, &timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Type = domain.RebalanceEventType(eventType)
		if err := json.Unmarshal([]byte(details), &e.Details); err != nil {
			return nil, fmt.Errorf("failed to parse event details: %w", err)
		}
		if ts, err := time.Parse(time.RFC3339, timestamp); err == nil {
			e.Timestamp = ts
		}
		eventsOut = append(eventsOut, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return eventsOut, nil
}

func (r *Repository) getHoldings(portfolioID int64) ([]domain.AssetHolding, error) {
	rows, err := r.portfolioDB.Query(
		"SELECT symbol, amount FROM assets WHERE portfolio_id = ? ORDER BY id", portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings for portfolio %d: %w", portfolioID, err)
	}
	defer rows.Close()

	var holdings []domain.AssetHolding
	for rows.Next() {
		var h domain.AssetHolding
		if err := rows.Scan(&h.Symbol, &h.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		holdings = append(holdings, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating holdings: %w", err)
	}

	return holdings, nil
}

// rowScanner covers *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *Repository) scanPortfolio(row rowScanner) (*domain.Portfolio, error) {
	var (
		p             domain.Portfolio
		autoRebalance int
		lastRebalance sql.NullString
	)
	if err := row.Scan(&p.ID, &p.UserID, &p.Name, &autoRebalance, &p.MaxSlippage,
		&p.CheckInterval, &lastRebalance); err != nil {
		return nil, err
	}
	p.AutoRebalance = autoRebalance == 1
	if lastRebalance.Valid && lastRebalance.String != "" {
		if ts, err := time.Parse(time.RFC3339, lastRebalance.String); err == nil {
			p.LastRebalance = &ts
		}
	}
	return &p, nil
}
