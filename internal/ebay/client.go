package ebay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// ReferenceListing is one comparable item from a Browse search.
type ReferenceListing struct {
	ItemID     string  `json:"itemId" bson:"itemId"`
	Title      string  `json:"title" bson:"title"`
	Price      string  `json:"price" bson:"price"`
	PriceValue float64 `json:"priceValue" bson:"priceValue"`
	Currency   string  `json:"currency" bson:"currency"`
	URL        string  `json:"url" bson:"url"`
	Condition  string  `json:"condition,omitempty" bson:"condition,omitempty"`
}

// PriceBand summarizes comparable current listings for one query.
// The zero value is the canonical "no match" band: a listing whose band has
// no priced reference items is dropped instead of persisted.
type PriceBand struct {
	Listings []ReferenceListing
	Total    int
	MinPrice string
	MaxPrice string
	Currency string
}

// Options configures a Client.
type Options struct {
	ClientID      string
	ClientSecret  string
	MarketplaceID string
	RefreshToken  string
	Timeout       time.Duration
}

// Client provides access to the eBay Browse and Analytics APIs.
type Client struct {
	httpClient    *http.Client
	tokens        *TokenSource
	limiter       *rate.Limiter
	browseURL     string
	analyticsURL  string
	marketplaceID string
	refreshToken  string
}

// NewClient creates an eBay client. All search calls share one token cache
// and are paced at one request per second to stay clear of Browse throttling.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	httpClient := &http.Client{Timeout: opts.Timeout}
	return &Client{
		httpClient:    httpClient,
		tokens:        NewTokenSource(opts.ClientID, opts.ClientSecret, httpClient),
		limiter:       rate.NewLimiter(rate.Every(time.Second), 1),
		browseURL:     defaultBrowseURL,
		analyticsURL:  defaultAnalyticsURL,
		marketplaceID: opts.MarketplaceID,
		refreshToken:  opts.RefreshToken,
	}
}

// SearchCurrentListings queries the Browse API for comparable current
// listings and summarizes them into a PriceBand. The query is trimmed and
// truncated to the API's accepted length; limit is clamped to [1, 50].
// A blank query returns the empty band without touching the network.
// Items whose price value is missing or non-numeric are skipped.
func (c *Client) SearchCurrentListings(ctx context.Context, query string, limit int) (PriceBand, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return PriceBand{}, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return PriceBand{}, err
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return PriceBand{}, err
	}

	if limit < 1 {
		limit = 1
	} else if limit > 50 {
		limit = 50
	}

	params := url.Values{
		"q":     {truncateRunes(query, maxQueryLen)},
		"limit": {strconv.Itoa(limit)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.browseURL+"?"+params.Encode(), nil)
	if err != nil {
		return PriceBand{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-EBAY-C-MARKETPLACE-ID", c.marketplaceID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return PriceBand{}, fmt.Errorf("ebay search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return PriceBand{}, &APIError{Status: resp.StatusCode, Body: string(body)}
	}

	var payload struct {
		Total         int `json:"total"`
		ItemSummaries []struct {
			ItemID      string `json:"itemId"`
			Title       string `json:"title"`
			ItemWebURL  string `json:"itemWebUrl"`
			Condition   string `json:"condition"`
			ConditionID string `json:"conditionId"`
			Price       struct {
				Value    string `json:"value"`
				Currency string `json:"currency"`
			} `json:"price"`
		} `json:"itemSummaries"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return PriceBand{}, fmt.Errorf("ebay search decode: %w", err)
	}

	var (
		band     PriceBand
		minPrice float64
		maxPrice float64
	)
	for _, item := range payload.ItemSummaries {
		if item.Price.Value == "" {
			continue
		}
		value, err := strconv.ParseFloat(item.Price.Value, 64)
		if err != nil {
			continue
		}
		currency := strings.ToUpper(item.Price.Currency)
		if currency == "" {
			currency = "USD"
		}
		if band.Currency == "" {
			band.Currency = currency
		}
		if len(band.Listings) == 0 || value < minPrice {
			minPrice = value
		}
		if len(band.Listings) == 0 || value > maxPrice {
			maxPrice = value
		}

		itemURL := item.ItemWebURL
		if itemURL == "" {
			itemURL = fmt.Sprintf("https://www.%s/itm/%s", domainFor(c.marketplaceID), item.ItemID)
		}
		condition := item.Condition
		if condition == "" {
			condition = item.ConditionID
		}
		band.Listings = append(band.Listings, ReferenceListing{
			ItemID:     item.ItemID,
			Title:      item.Title,
			Price:      FormatPrice(value, currency),
			PriceValue: value,
			Currency:   currency,
			URL:        itemURL,
			Condition:  condition,
		})
	}

	if len(band.Listings) == 0 {
		return PriceBand{}, nil
	}

	band.MinPrice = FormatPrice(minPrice, band.Currency)
	band.MaxPrice = FormatPrice(maxPrice, band.Currency)
	band.Total = payload.Total
	if band.Total == 0 {
		band.Total = len(band.Listings)
	}
	return band, nil
}

// FormatPrice renders a numeric price with its currency symbol: "$12.5" for
// USD, "€12.5" for EUR, "12.5 GBP" otherwise. Whole amounts keep one decimal
// ("8.0") so the dashboard rendering stays stable.
func FormatPrice(value float64, currency string) string {
	c := strings.ToUpper(currency)
	if c == "" {
		c = "USD"
	}
	amount := formatAmount(value)
	switch c {
	case "USD":
		return "$" + amount
	case "EUR":
		return "€" + amount
	default:
		return amount + " " + c
	}
}

func formatAmount(value float64) string {
	s := strconv.FormatFloat(value, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// BuildSearchLink returns the public search URL for a title on the
// marketplace's regional site, or "" for an empty title. The title is capped
// at 80 characters, matching the dashboard's "view on eBay" links.
func (c *Client) BuildSearchLink(title string) string {
	if title == "" {
		return ""
	}
	q := url.QueryEscape(truncateRunes(title, 80))
	return fmt.Sprintf("https://www.%s/sch/i.html?_nkw=%s", domainFor(c.marketplaceID), q)
}
