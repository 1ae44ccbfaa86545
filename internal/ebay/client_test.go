package ebay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/time/rate"
)

// newTestClient wires a Client against an httptest browse handler, with a
// companion token endpoint and the search throttle disabled.
func newTestClient(t *testing.T, browse http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()

	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "tok-1", "expires_in": 7200})
	}))
	t.Cleanup(tokenSrv.Close)

	browseSrv := httptest.NewServer(browse)
	t.Cleanup(browseSrv.Close)

	c := NewClient(Options{ClientID: "client-id", ClientSecret: "client-secret", MarketplaceID: "EBAY_ES"})
	c.tokens.tokenURL = tokenSrv.URL
	c.browseURL = browseSrv.URL
	c.analyticsURL = browseSrv.URL
	c.limiter = rate.NewLimiter(rate.Inf, 1)
	return c, browseSrv
}

func TestSearchCurrentListingsAggregation(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("unexpected auth header %q", got)
		}
		if got := r.Header.Get("X-EBAY-C-MARKETPLACE-ID"); got != "EBAY_ES" {
			t.Errorf("unexpected marketplace header %q", got)
		}
		if got := r.URL.Query().Get("limit"); got != "5" {
			t.Errorf("expected limit 5, got %s", got)
		}
		_, _ = w.Write([]byte(`{
			"total": 37,
			"itemSummaries": [
				{"itemId": "i1", "title": "Card A", "itemWebUrl": "https://www.ebay.es/itm/i1",
				 "price": {"value": "12.50", "currency": "EUR"}},
				{"itemId": "i2", "title": "Card B",
				 "price": {"value": "8.00", "currency": "EUR"}},
				{"itemId": "i3", "title": "No price"},
				{"itemId": "i4", "title": "Bad price", "price": {"value": "n/a", "currency": "EUR"}}
			]
		}`))
	})

	band, err := c.SearchCurrentListings(context.Background(), "2022 Leaf rookie", 5)
	if err != nil {
		t.Fatalf("SearchCurrentListings failed: %v", err)
	}

	if len(band.Listings) != 2 {
		t.Fatalf("expected 2 priced listings, got %d", len(band.Listings))
	}
	if band.MinPrice != "€8.0" {
		t.Errorf("expected min price €8.0, got %s", band.MinPrice)
	}
	if band.MaxPrice != "€12.5" {
		t.Errorf("expected max price €12.5, got %s", band.MaxPrice)
	}
	if band.Currency != "EUR" {
		t.Errorf("expected currency EUR, got %s", band.Currency)
	}
	if band.Total != 37 {
		t.Errorf("expected total 37, got %d", band.Total)
	}
	// Item without itemWebUrl falls back to the marketplace domain.
	if band.Listings[1].URL != "https://www.ebay.es/itm/i2" {
		t.Errorf("expected fallback item URL, got %s", band.Listings[1].URL)
	}
}

func TestSearchCurrentListingsBlankQuery(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("blank query must not reach the network")
	})

	band, err := c.SearchCurrentListings(context.Background(), "   ", 5)
	if err != nil {
		t.Fatalf("SearchCurrentListings failed: %v", err)
	}
	if len(band.Listings) != 0 || band.Total != 0 || band.MinPrice != "" || band.Currency != "" {
		t.Errorf("expected empty band, got %+v", band)
	}
}

func TestSearchCurrentListingsNoPricedItems(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"total": 9, "itemSummaries": [{"itemId": "i1", "title": "x"}]}`))
	})

	band, err := c.SearchCurrentListings(context.Background(), "query", 5)
	if err != nil {
		t.Fatalf("SearchCurrentListings failed: %v", err)
	}
	if band.Total != 0 || band.MinPrice != "" || band.MaxPrice != "" || band.Currency != "" {
		t.Errorf("expected canonical empty band, got %+v", band)
	}
}

func TestSearchCurrentListingsTotalFallback(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"itemSummaries": [
			{"itemId": "i1", "title": "a", "price": {"value": "3", "currency": "USD"}},
			{"itemId": "i2", "title": "b", "price": {"value": "4", "currency": "USD"}}
		]}`))
	})

	band, err := c.SearchCurrentListings(context.Background(), "query", 5)
	if err != nil {
		t.Fatalf("SearchCurrentListings failed: %v", err)
	}
	if band.Total != 2 {
		t.Errorf("expected total fallback to 2, got %d", band.Total)
	}
	if band.MinPrice != "$3.0" || band.MaxPrice != "$4.0" {
		t.Errorf("unexpected band prices %s / %s", band.MinPrice, band.MaxPrice)
	}
}

func TestSearchCurrentListingsClampsAndTruncates(t *testing.T) {
	long := strings.Repeat("x", 400)
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("limit"); got != "50" {
			t.Errorf("expected clamped limit 50, got %s", got)
		}
		if got := len(r.URL.Query().Get("q")); got != maxQueryLen {
			t.Errorf("expected query truncated to %d, got %d", maxQueryLen, got)
		}
		_, _ = w.Write([]byte(`{"itemSummaries": []}`))
	})

	if _, err := c.SearchCurrentListings(context.Background(), long, 500); err != nil {
		t.Fatalf("SearchCurrentListings failed: %v", err)
	}
}

func TestSearchCurrentListingsAPIError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errors":[{"errorId":10001}]}`, http.StatusTooManyRequests)
	})

	_, err := c.SearchCurrentListings(context.Background(), "query", 5)
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.Status != http.StatusTooManyRequests {
		t.Errorf("expected status 429, got %d", apiErr.Status)
	}
	if !strings.Contains(apiErr.Body, "10001") {
		t.Errorf("expected body excerpt, got %q", apiErr.Body)
	}
}

func TestFormatPrice(t *testing.T) {
	cases := []struct {
		value    float64
		currency string
		want     string
	}{
		{8, "EUR", "€8.0"},
		{12.5, "EUR", "€12.5"},
		{8, "USD", "$8.0"},
		{9.99, "usd", "$9.99"},
		{8, "GBP", "8.0 GBP"},
		{8, "", "$8.0"},
	}
	for _, tc := range cases {
		if got := FormatPrice(tc.value, tc.currency); got != tc.want {
			t.Errorf("FormatPrice(%v, %q) = %q, want %q", tc.value, tc.currency, got, tc.want)
		}
	}
}

func TestBuildSearchLink(t *testing.T) {
	c := NewClient(Options{MarketplaceID: "EBAY_ES"})

	if got := c.BuildSearchLink(""); got != "" {
		t.Errorf("expected empty link for empty title, got %s", got)
	}

	link := c.BuildSearchLink("2022 Leaf Multi-Sport Rookie")
	if !strings.HasPrefix(link, "https://www.ebay.es/sch/i.html?_nkw=") {
		t.Errorf("unexpected link %s", link)
	}

	long := strings.Repeat("a", 100)
	link = c.BuildSearchLink(long)
	if strings.Contains(link, strings.Repeat("a", 81)) {
		t.Errorf("expected title capped at 80 chars in %s", link)
	}
}

func TestBrowseRemaining(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/rate_limit/") {
			t.Errorf("expected app rate_limit path, got %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("api_name"); got != "browse" {
			t.Errorf("expected api_name browse, got %s", got)
		}
		_, _ = w.Write([]byte(`{"rateLimits": [
			{"apiContext": "buy", "apiName": "browse", "resources": [
				{"name": "buy.browse", "rates": [{"remaining": 4123}]},
				{"name": "buy.browse.item", "rates": [{"remaining": 87}]}
			]}
		]}`))
	})

	remaining, err := c.BrowseRemaining(context.Background())
	if err != nil {
		t.Fatalf("BrowseRemaining failed: %v", err)
	}
	if remaining != 87 {
		t.Errorf("expected smallest remaining 87, got %d", remaining)
	}
}

func TestBrowseRemainingUserLevel(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/user_rate_limit/") {
			t.Errorf("expected user_rate_limit path, got %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"rateLimits": [
			{"apiContext": "buy", "apiName": "browse", "resources": [
				{"name": "buy.browse", "rates": [{"remaining": 0}]}
			]}
		]}`))
	})
	c.refreshToken = "long-lived"

	remaining, err := c.BrowseRemaining(context.Background())
	if err != nil {
		t.Fatalf("BrowseRemaining failed: %v", err)
	}
	if remaining != 0 {
		t.Errorf("expected remaining 0, got %d", remaining)
	}
}

func TestBrowseRemainingEmptyPayload(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"rateLimits": []}`))
	})

	if _, err := c.BrowseRemaining(context.Background()); err == nil {
		t.Error("expected error for empty rateLimits")
	}
}
