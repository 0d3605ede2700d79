package kuru

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// marketDataTimeout bounds price and history lookups. These run inside
// analysis requests, so they stay short.
const marketDataTimeout = 10 * time.Second

type pricesResponse struct {
	Prices map[string]float64 `json:"prices"`
}

type candlesResponse struct {
	Candles []struct {
		Close float64 `json:"close"`
	} `json:"candles"`
}

// Prices returns current prices for the requested symbols. Symbols the
// venue does not quote are absent from the result.
func (c *Client) Prices(ctx context.Context, symbols []string) (map[string]float64, error) {
	ctx, cancel := context.WithTimeout(ctx, marketDataTimeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/markets/prices?symbols=%s", c.baseURL, url.QueryEscape(strings.Join(symbols, ",")))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build prices request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("price lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("price lookup returned status %d", resp.StatusCode)
	}

	var parsed pricesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode prices response: %w", err)
	}

	return parsed.Prices, nil
}

// History returns recent daily closing prices for a symbol, oldest first.
func (c *Client) History(ctx context.Context, symbol string) ([]float64, error) {
	ctx, cancel := context.WithTimeout(ctx, marketDataTimeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/markets/%s/candles?interval=1d", c.baseURL, url.PathEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build history request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("history lookup for %s failed: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("history lookup for %s returned status %d", symbol, resp.StatusCode)
	}

	var parsed candlesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode history response for %s: %w", symbol, err)
	}

	closes := make([]float64, 0, len(parsed.Candles))
	for _, candle := range parsed.Candles {
		closes = append(closes, candle.Close)
	}

	return closes, nil
}
