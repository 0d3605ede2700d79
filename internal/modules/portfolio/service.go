package portfolio

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rebalancr/rebalancr/internal/domain"
)

// Service layers live-price valuation on top of the repository. Every
// portfolio leaving this package has values, weights and a total computed
// from current market prices.
type Service struct {
	repo       *Repository
	marketData domain.MarketDataProvider
	log        zerolog.Logger
}

// NewService creates a new portfolio service
func NewService(repo *Repository, marketData domain.MarketDataProvider, log zerolog.Logger) *Service {
	return &Service{
		repo:       repo,
		marketData: marketData,
		log:        log.With().Str("service", "portfolio").Logger(),
	}
}

// GetPortfolio loads a portfolio and values its holdings at current prices.
func (s *Service) GetPortfolio(ctx context.Context, id int64) (*domain.Portfolio, error) {
	p, err := s.repo.GetPortfolio(id)
	if err != nil {
		return nil, err
	}
	if err := s.valuate(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// GetUserPortfolios loads and values all of a user's portfolios.
func (s *Service) GetUserPortfolios(ctx context.Context, userID string) ([]*domain.Portfolio, error) {
	portfolios, err := s.repo.GetUserPortfolios(userID)
	if err != nil {
		return nil, err
	}
	for _, p := range portfolios {
		if err := s.valuate(ctx, p); err != nil {
			return nil, err
		}
	}
	return portfolios, nil
}

// GetAutoRebalancePortfolios returns valued portfolios with auto-rebalance
// enabled.
func (s *Service) GetAutoRebalancePortfolios(ctx context.Context) ([]*domain.Portfolio, error) {
	portfolios, err := s.repo.GetAutoRebalancePortfolios()
	if err != nil {
		return nil, err
	}
	for _, p := range portfolios {
		if err := s.valuate(ctx, p); err != nil {
			return nil, err
		}
	}
	return portfolios, nil
}

// ResolvePortfolioName converts a portfolio name to an ID for a user.
func (s *Service) ResolvePortfolioName(userID, name string) (int64, error) {
	return s.repo.ResolvePortfolioName(userID, name)
}

// UpdatePortfolio applies a partial settings update.
func (s *Service) UpdatePortfolio(id int64, update domain.PortfolioUpdate) error {
	return s.repo.UpdatePortfolio(id, update)
}

// ApplyTradeOutcomes adjusts holding amounts for trades that succeeded.
// Failed trades leave holdings untouched.
func (s *Service) ApplyTradeOutcomes(portfolioID int64, outcomes []domain.TradeOutcome) error {
	p, err := s.repo.GetPortfolio(portfolioID)
	if err != nil {
		return err
	}
	amounts := make(map[string]float64, len(p.Holdings))
	for _, h := range p.Holdings {
		amounts[h.Symbol] = h.Amount
	}

	for _, o := range outcomes {
		if !o.Success {
			continue
		}
		next := amounts[o.Symbol] + o.Amount
		if next < 0 {
			next = 0
		}
		if err := s.repo.SetHoldingAmount(portfolioID, o.Symbol, next); err != nil {
			return err
		}
		amounts[o.Symbol] = next
	}
	return nil
}

// valuate fills Value, Weight and TotalValue from current prices. A holding
// with no quoted price is valued at zero rather than failing the whole
// portfolio.
func (s *Service) valuate(ctx context.Context, p *domain.Portfolio) error {
	if len(p.Holdings) == 0 {
		p.TotalValue = 0
		return nil
	}

	prices, err := s.marketData.Prices(ctx, p.Symbols())
	if err != nil {
		return fmt.Errorf("failed to price portfolio %d: %w", p.ID, err)
	}

	total := 0.0
	for i := range p.Holdings {
		h := &p.Holdings[i]
		price, ok := prices[h.Symbol]
		if !ok {
			s.log.Warn().Str("symbol", h.Symbol).Int64("portfolio_id", p.ID).
				Msg("No price quote for holding, valuing at zero")
			price = 0
		}
		h.Price = price
		h.Value = h.Amount * price
		total += h.Value
	}
	p.TotalValue = total

	for i := range p.Holdings {
		if total > 0 {
			p.Holdings[i].Weight = p.Holdings[i].Value / total
		} else {
			p.Holdings[i].Weight = 0
		}
	}

	return nil
}
