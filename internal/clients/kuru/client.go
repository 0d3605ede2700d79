// Package kuru provides client functionality for the Kuru DEX order service.
// The service owns transaction construction, signing and submission; this
// client only speaks its HTTP interface.
package kuru

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rebalancr/rebalancr/internal/domain"
)

// Client for the Kuru order service
type Client struct {
	baseURL string
	chainID int
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a new Kuru client. No client-level timeout: the
// execution coordinator bounds each order with a per-dispatch context.
func NewClient(baseURL string, chainID int, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		chainID: chainID,
		client:  &http.Client{},
		log:     log.With().Str("client", "kuru").Logger(),
	}
}

type orderRequest struct {
	ClientOrderID string  `json:"client_order_id"`
	ChainID       int     `json:"chain_id"`
	Symbol        string  `json:"symbol"`
	Side          string  `json:"side"`
	Amount        float64 `json:"amount"`
	MaxSlippage   float64 `json:"max_slippage"`
}

type orderResponse struct {
	Success bool   `json:"success"`
	TxHash  string `json:"tx_hash"`
	Error   string `json:"error"`
}

// SubmitOrder dispatches one order to the DEX service. Amount is signed:
// positive buys, negative sells.
func (c *Client) SubmitOrder(ctx context.Context, symbol string, amount, maxSlippage float64) (domain.OrderResult, error) {
	side := "buy"
	if amount < 0 {
		side = "sell"
	}

	payload := orderRequest{
		ClientOrderID: uuid.New().String(),
		ChainID:       c.chainID,
		Symbol:        symbol,
		Side:          side,
		Amount:        math.Abs(amount),
		MaxSlippage:   maxSlippage,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("failed to encode order: %w", err)
	}

	url := fmt.Sprintf("%s/orders", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("failed to build order request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.log.Info().
		Str("symbol", symbol).
		Str("side", side).
		Float64("amount", math.Abs(amount)).
		Float64("max_slippage", maxSlippage).
		Msg("Submitting order")

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("order submission for %s failed: %w", symbol, err)
	}
	defer resp.Body.Close()

	var parsed orderResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return domain.OrderResult{}, fmt.Errorf("failed to decode order response for %s: %w", symbol, err)
	}

	if !parsed.Success {
		return domain.OrderResult{}, fmt.Errorf("order for %s rejected: %s", symbol, parsed.Error)
	}

	return domain.OrderResult{Success: true, TxReference: parsed.TxHash}, nil
}
