package allora

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

type socialResponse struct {
	Posts []string `json:"posts"`
}

// SocialContent fetches recent social posts mentioning an asset, joined
// into one text block for sentiment analysis. An empty result is valid:
// quiet assets are analyzed on the symbol alone.
func (c *Client) SocialContent(ctx context.Context, symbol string) (string, error) {
	endpoint := fmt.Sprintf("%s/v2/social/%s/recent", c.baseURL, url.PathEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build social content request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("social content request for %s failed: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("social content API returned status %d for %s", resp.StatusCode, symbol)
	}

	var parsed socialResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode social content response for %s: %w", symbol, err)
	}

	return strings.Join(parsed.Posts, "\n"), nil
}
