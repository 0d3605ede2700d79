// Package work contains the background jobs run by the scheduler.
package work

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/rebalancr/rebalancr/internal/domain"
	"github.com/rebalancr/rebalancr/internal/events"
	"github.com/rebalancr/rebalancr/internal/modules/performance"
	"github.com/rebalancr/rebalancr/internal/modules/portfolio"
	"github.com/rebalancr/rebalancr/internal/modules/rebalancing"
)

// Monitor is the periodic auto-rebalance job. Each cycle it scans
// portfolios with auto-rebalance enabled, rebalances the ones whose
// governing interval has elapsed, and refreshes the analysis snapshot for
// the rest. One portfolio failing never stops the scan.
type Monitor struct {
	portfolios *portfolio.Service
	rebalancer *rebalancing.Service
	perfLog    *performance.Logger
	events     *events.Manager

	// minInterval is the global minimum between rebalances, identical to
	// the gate's. The longer of this and the portfolio's check_interval
	// governs, so a portfolio never reads as due while the gate would
	// still skip it.
	minInterval time.Duration
	timeout     time.Duration
	log         zerolog.Logger
}

// NewMonitor creates a new auto-rebalance monitor
func NewMonitor(
	portfolios *portfolio.Service,
	rebalancer *rebalancing.Service,
	perfLog *performance.Logger,
	eventManager *events.Manager,
	minInterval time.Duration,
	timeout time.Duration,
	log zerolog.Logger,
) *Monitor {
	if timeout <= 0 {
		timeout = 4 * time.Minute
	}
	return &Monitor{
		portfolios:  portfolios,
		rebalancer:  rebalancer,
		perfLog:     perfLog,
		events:      eventManager,
		minInterval: minInterval,
		timeout:     timeout,
		log:         log.With().Str("job", "monitor").Logger(),
	}
}

// Name implements scheduler.Job
func (m *Monitor) Name() string {
	return "auto_rebalance_monitor"
}

// Run implements scheduler.Job
func (m *Monitor) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	portfolios, err := m.portfolios.GetAutoRebalancePortfolios(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, p := range portfolios {
		if err := ctx.Err(); err != nil {
			return err
		}
		m.check(ctx, p, now)
	}

	return nil
}

func (m *Monitor) check(ctx context.Context, p *domain.Portfolio, now time.Time) {
	if m.due(p, now) {
		result, err := m.rebalancer.Rebalance(ctx, p.ID, false)
		if err != nil {
			m.log.Error().Err(err).Int64("portfolio_id", p.ID).Msg("Auto-rebalance failed")
			if m.events != nil {
				m.events.Emit(events.ErrorOccurred, "monitor", &events.ErrorEventData{
					Error: err.Error(),
					Context: map[string]interface{}{
						"portfolio_id": p.ID,
						"job":          m.Name(),
					},
				})
			}
			return
		}

		details := domain.EventDetails{Reason: string(result.Status)}
		if result.Analysis != nil {
			details.RunID = result.Analysis.RunID
			details.MarketCondition = result.Analysis.MarketCondition
		}
		m.perfLog.Log(p.ID, domain.EventAutoRebalance, details)

		m.log.Info().
			Int64("portfolio_id", p.ID).
			Str("status", string(result.Status)).
			Str("reason", result.Reason).
			Bool("executed", result.Executed()).
			Msg("Auto-rebalance checked")
		return
	}

	// Not due yet: refresh the analysis so status queries stay current
	// and recommendations surface early.
	if _, err := m.rebalancer.Analyze(ctx, p.ID); err != nil {
		m.log.Warn().Err(err).Int64("portfolio_id", p.ID).Msg("Analysis refresh failed")
	}
}

// due mirrors the gate's interval policy: the longer of the portfolio's
// check_interval and the global minimum governs.
func (m *Monitor) due(p *domain.Portfolio, now time.Time) bool {
	if p.LastRebalance == nil {
		return true
	}
	governing := p.CheckIntervalDuration()
	if m.minInterval > governing {
		governing = m.minInterval
	}
	return now.Sub(*p.LastRebalance) >= governing
}
