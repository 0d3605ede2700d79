package rebalancing

import (
	"context"
	"fmt"

	"github.com/rebalancr/rebalancr/internal/domain"
)

// SimulationResult is the what-if answer for a caller-supplied allocation.
// Nothing is executed and nothing is logged to the ledger.
type SimulationResult struct {
	PortfolioID   int64                   `json:"portfolio_id"`
	Target        domain.AllocationTarget `json:"target"`
	Plan          domain.TradePlan        `json:"plan"`
	Turnover      float64                 `json:"turnover"`
	EstimatedCost float64                 `json:"estimated_cost"`
}

// SimulateRebalance prices the trades required to reach a caller-supplied
// allocation. The target must cover only held symbols and satisfy the
// weight-sum invariant.
func (s *Service) SimulateRebalance(ctx context.Context, portfolioID int64, target domain.AllocationTarget) (*SimulationResult, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}

	p, err := s.portfolios.GetPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, err
	}

	held := make(map[string]bool, len(p.Holdings))
	for _, h := range p.Holdings {
		held[h.Symbol] = true
	}
	for symbol := range target {
		if !held[symbol] {
			return nil, fmt.Errorf("asset %s is not held in portfolio %d", symbol, portfolioID)
		}
	}

	plan := buildTradePlan(p, target, s.minTradeFraction)

	return &SimulationResult{
		PortfolioID:   portfolioID,
		Target:        target,
		Plan:          plan,
		Turnover:      plan.Turnover(),
		EstimatedCost: s.gate.EstimateCost(plan),
	}, nil
}
