package domain

import "context"

// SentimentReading is the raw response from the sentiment source.
type SentimentReading struct {
	Sentiment         Sentiment `json:"sentiment"`
	FearScore         float64   `json:"fear_score"`
	GreedScore        float64   `json:"greed_score"`
	ManipulationScore float64   `json:"manipulation_score"`
}

// ManipulationDetected applies the documented cutoff to the raw score.
func (r SentimentReading) ManipulationDetected() bool {
	return r.ManipulationScore > 0.6
}

// StatisticsReading is the raw response from the statistics source.
type StatisticsReading struct {
	Volatility           float64 `json:"volatility"`
	BelowMedianFrequency float64 `json:"below_median_frequency"`
	Trend                Trend   `json:"trend"`
}

// SentimentSource provides AI-derived fear/greed readings per asset.
type SentimentSource interface {
	AnalyzeSentiment(ctx context.Context, symbol, content string) (SentimentReading, error)
}

// StatisticsSource provides statistical metrics computed from price history.
type StatisticsSource interface {
	AnalyzeAsset(ctx context.Context, symbol string, closes []float64) (StatisticsReading, error)
}

// MarketDataProvider supplies prices, price history and social content for
// assets. The engine never reaches for market data any other way.
type MarketDataProvider interface {
	// Prices returns the current price per symbol. Missing symbols are
	// absent from the map, not an error.
	Prices(ctx context.Context, symbols []string) (map[string]float64, error)

	// History returns recent closing prices for a symbol, oldest first.
	History(ctx context.Context, symbol string) ([]float64, error)

	// SocialContent returns recent social text used for sentiment analysis.
	SocialContent(ctx context.Context, symbol string) (string, error)
}

// OrderResult is the executor's response for a submitted order.
type OrderResult struct {
	Success     bool   `json:"success"`
	TxReference string `json:"tx_reference"`
}

// TradeExecutor submits orders to the external trading venue. Amount is
// signed: positive buys, negative sells.
type TradeExecutor interface {
	SubmitOrder(ctx context.Context, symbol string, amount, maxSlippage float64) (OrderResult, error)
}

// PortfolioUpdate carries partial field updates for a portfolio record.
// Nil fields are left untouched.
type PortfolioUpdate struct {
	AutoRebalance *bool
	MaxSlippage   *float64
	CheckInterval *int64
	LastRebalance *string // ISO-8601
}

// PortfolioStore is the persistence boundary consumed by the pipeline.
type PortfolioStore interface {
	GetPortfolio(id int64) (*Portfolio, error)
	GetUserPortfolios(userID string) ([]*Portfolio, error)
	UpdatePortfolio(id int64, update PortfolioUpdate) error
	LogEvent(event RebalanceEvent) error
	GetEvents(portfolioID int64, eventType string, limit int) ([]RebalanceEvent, error)
}
