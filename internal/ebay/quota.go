package ebay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// BrowseRemaining reports how many Browse API calls remain in the current
// rate-limit window. With a refresh token configured it checks the
// user-level limits, otherwise the application-level ones. The smallest
// remaining value across the buy/browse resources is returned.
//
// A zero or negative result means a cycle should be skipped; an error means
// the quota is unknown and the caller decides.
func (c *Client) BrowseRemaining(ctx context.Context) (int, error) {
	var (
		token    string
		endpoint string
		err      error
	)
	if c.refreshToken != "" {
		token, err = c.tokens.UserToken(ctx, c.refreshToken)
		endpoint = c.analyticsURL + "/user_rate_limit/"
	} else {
		token, err = c.tokens.Token(ctx)
		endpoint = c.analyticsURL + "/rate_limit/"
	}
	if err != nil {
		return 0, err
	}

	params := url.Values{
		"api_name":    {"browse"},
		"api_context": {"buy"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("ebay rate limit request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return 0, fmt.Errorf("ebay rate limit: no data for buy/browse")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return 0, &APIError{Status: resp.StatusCode, Body: string(body)}
	}

	var payload struct {
		RateLimits []struct {
			APIContext string `json:"apiContext"`
			APIName    string `json:"apiName"`
			Resources  []struct {
				Name  string `json:"name"`
				Rates []struct {
					Remaining int `json:"remaining"`
				} `json:"rates"`
			} `json:"resources"`
		} `json:"rateLimits"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("ebay rate limit decode: %w", err)
	}

	remaining := -1
	for _, api := range payload.RateLimits {
		for _, res := range api.Resources {
			for _, r := range res.Rates {
				if remaining < 0 || r.Remaining < remaining {
					remaining = r.Remaining
				}
			}
		}
	}
	if remaining < 0 {
		return 0, fmt.Errorf("ebay rate limit: empty rateLimits for buy/browse")
	}
	return remaining, nil
}
