// Package performance persists rebalance decisions and outcomes for
// later weight tuning and auditing.
package performance

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/rebalancr/rebalancr/internal/domain"
)

// Logger writes append-only RebalanceEvents. Logging never blocks or
// fails the pipeline: persistence errors go to the operational log only.
type Logger struct {
	store domain.PortfolioStore
	log   zerolog.Logger
}

// NewLogger creates a new performance logger
func NewLogger(store domain.PortfolioStore, log zerolog.Logger) *Logger {
	return &Logger{
		store: store,
		log:   log.With().Str("service", "performance").Logger(),
	}
}

// Log appends one event to the audit trail.
func (l *Logger) Log(portfolioID int64, eventType domain.RebalanceEventType, details domain.EventDetails) {
	event := domain.RebalanceEvent{
		PortfolioID: portfolioID,
		Type:        eventType,
		Details:     details,
		Timestamp:   time.Now().UTC(),
	}

	if err := l.store.LogEvent(event); err != nil {
		l.log.Error().
			Err(err).
			Int64("portfolio_id", portfolioID).
			Str("event_type", string(eventType)).
			Msg("Failed to persist rebalance event")
		return
	}

	l.log.Debug().
		Int64("portfolio_id", portfolioID).
		Str("event_type", string(eventType)).
		Msg("Rebalance event logged")
}

// History returns recent events for a portfolio, most recent first.
func (l *Logger) History(portfolioID int64, eventType string, limit int) ([]domain.RebalanceEvent, error) {
	return l.store.GetEvents(portfolioID, eventType, limit)
}
