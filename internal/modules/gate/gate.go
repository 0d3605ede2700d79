// Package gate implements the cost-benefit and minimum-interval safeguard
// that stands between a computed plan and execution. Its skip decision is
// final for the invocation, regardless of how eager the caller is.
package gate

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/rebalancr/rebalancr/internal/domain"
)

// Comfort band: increases only count as a benefit while the asset is
// under-allocated, decreases while it is over-allocated.
const (
	increaseBand = 0.4
	decreaseBand = 0.1
)

// Config holds the gate's economic parameters.
type Config struct {
	TradingFeeRate   float64
	FixedGasEstimate float64
	SlippageRate     float64

	// MinInterval is the global minimum between rebalances. The longer of
	// this and the portfolio's check_interval governs.
	MinInterval time.Duration
}

// Insight is the slice of an asset recommendation the gate needs.
type Insight struct {
	Symbol            string
	Action            domain.Action
	Confidence        float64 // [0,100]
	CurrentAllocation float64 // [0,1]
}

// Gate evaluates whether a rebalance is worth its costs.
type Gate struct {
	cfg Config
	log zerolog.Logger
}

// NewGate creates a new cost-benefit gate
func NewGate(cfg Config, log zerolog.Logger) *Gate {
	return &Gate{cfg: cfg, log: log.With().Str("service", "gate").Logger()}
}

// Evaluate returns Proceed or Skip(reason). The interval policy is
// checked first and wins regardless of benefit magnitude.
func (g *Gate) Evaluate(
	portfolio *domain.Portfolio,
	plan domain.TradePlan,
	insights []Insight,
	yieldDelta float64,
	now time.Time,
) domain.GateDecision {
	if portfolio.LastRebalance != nil {
		governing := portfolio.CheckIntervalDuration()
		if g.cfg.MinInterval > governing {
			governing = g.cfg.MinInterval
		}
		elapsed := now.Sub(*portfolio.LastRebalance)
		if elapsed < governing {
			g.log.Info().
				Int64("portfolio_id", portfolio.ID).
				Dur("elapsed", elapsed).
				Dur("required", governing).
				Msg("Rebalance gated: too frequent")
			return domain.GateSkip(domain.SkipTooFrequent, 0, 0)
		}
	}

	turnover := plan.Turnover()
	cost := g.cfg.TradingFeeRate*turnover + g.cfg.FixedGasEstimate + g.cfg.SlippageRate*turnover
	benefit := yieldDelta + g.allocationImprovement(portfolio, insights)

	if benefit <= cost {
		g.log.Info().
			Int64("portfolio_id", portfolio.ID).
			Float64("cost", cost).
			Float64("benefit", benefit).
			Msg("Rebalance gated: cost exceeds benefit")
		return domain.GateSkip(domain.SkipCostExceedsBenefit, cost, benefit)
	}

	return domain.GateProceed(cost, benefit)
}

// EstimateCost prices a plan without applying interval policy. Used for
// what-if simulations.
func (g *Gate) EstimateCost(plan domain.TradePlan) float64 {
	turnover := plan.Turnover()
	return g.cfg.TradingFeeRate*turnover + g.cfg.FixedGasEstimate + g.cfg.SlippageRate*turnover
}

// allocationImprovement values actionable recommendations whose current
// allocation sits outside the comfort band at 1% of portfolio value,
// scaled by confidence.
func (g *Gate) allocationImprovement(portfolio *domain.Portfolio, insights []Insight) float64 {
	improvement := 0.0
	for _, in := range insights {
		if in.Action == domain.ActionMaintain {
			continue
		}
		confidence := in.Confidence / 100
		switch in.Action {
		case domain.ActionIncrease:
			if in.CurrentAllocation < increaseBand {
				improvement += confidence * 0.01 * portfolio.TotalValue
			}
		case domain.ActionDecrease:
			if in.CurrentAllocation > decreaseBand {
				improvement += confidence * 0.01 * portfolio.TotalValue
			}
		}
	}
	return improvement
}
