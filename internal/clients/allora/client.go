// Package allora provides client functionality for the Allora sentiment API.
// Sentiment is the only concern delegated to AI; all numerical signals are
// computed statistically elsewhere.
package allora

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/rebalancr/rebalancr/internal/domain"
)

// Client for the Allora sentiment API
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a new Allora client
func NewClient(baseURL, apiKey string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
		log:     log.With().Str("client", "allora").Logger(),
	}
}

type sentimentRequest struct {
	Asset   string `json:"asset"`
	Content string `json:"content"`
}

type sentimentResponse struct {
	Sentiment         string  `json:"sentiment"`
	FearScore         float64 `json:"fear_score"`
	GreedScore        float64 `json:"greed_score"`
	ManipulationScore float64 `json:"manipulation_score"`
}

// AnalyzeSentiment classifies recent social content for an asset into a
// fear/greed reading with a manipulation score.
func (c *Client) AnalyzeSentiment(ctx context.Context, symbol, content string) (domain.SentimentReading, error) {
	body, err := json.Marshal(sentimentRequest{Asset: symbol, Content: content})
	if err != nil {
		return domain.SentimentReading{}, fmt.Errorf("failed to encode sentiment request: %w", err)
	}

	url := fmt.Sprintf("%s/v2/sentiment/analyze", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return domain.SentimentReading{}, fmt.Errorf("failed to build sentiment request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.SentimentReading{}, fmt.Errorf("sentiment request for %s failed: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.SentimentReading{}, fmt.Errorf("sentiment API returned status %d for %s", resp.StatusCode, symbol)
	}

	var parsed sentimentResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return domain.SentimentReading{}, fmt.Errorf("failed to decode sentiment response for %s: %w", symbol, err)
	}

	reading := domain.SentimentReading{
		Sentiment:         parseSentiment(parsed.Sentiment),
		FearScore:         parsed.FearScore,
		GreedScore:        parsed.GreedScore,
		ManipulationScore: parsed.ManipulationScore,
	}

	c.log.Debug().
		Str("symbol", symbol).
		Str("sentiment", string(reading.Sentiment)).
		Float64("manipulation_score", reading.ManipulationScore).
		Msg("Sentiment analyzed")

	return reading, nil
}

// parseSentiment maps API labels onto the domain classification. Unknown
// labels degrade to neutral rather than failing the collection.
func parseSentiment(s string) domain.Sentiment {
	switch s {
	case "fear":
		return domain.SentimentFear
	case "greed":
		return domain.SentimentGreed
	default:
		return domain.SentimentNeutral
	}
}
