package di

import (
	"context"

	"github.com/rebalancr/rebalancr/internal/domain"
)

// priceSource is the market-data half of the venue client.
type priceSource interface {
	Prices(ctx context.Context, symbols []string) (map[string]float64, error)
	History(ctx context.Context, symbol string) ([]float64, error)
}

// socialSource is the content half of the sentiment provider.
type socialSource interface {
	SocialContent(ctx context.Context, symbol string) (string, error)
}

// marketDataProvider composes the venue's market data with the sentiment
// provider's social feed into the single surface the pipeline consumes.
type marketDataProvider struct {
	prices priceSource
	social socialSource
}

var _ domain.MarketDataProvider = (*marketDataProvider)(nil)

func (m *marketDataProvider) Prices(ctx context.Context, symbols []string) (map[string]float64, error) {
	return m.prices.Prices(ctx, symbols)
}

func (m *marketDataProvider) History(ctx context.Context, symbol string) ([]float64, error) {
	return m.prices.History(ctx, symbol)
}

func (m *marketDataProvider) SocialContent(ctx context.Context, symbol string) (string, error) {
	return m.social.SocialContent(ctx, symbol)
}
