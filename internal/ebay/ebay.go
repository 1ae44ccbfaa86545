// Package ebay provides the price-reference side of the pipeline: an OAuth
// token cache, the Browse item-summary search that turns a listing title into
// a price band, and the Analytics quota check that gates harvest cycles.
package ebay

import (
	"errors"
	"fmt"
)

// Production endpoints. Tests point the client at an httptest server instead.
const (
	defaultTokenURL     = "https://api.ebay.com/identity/v1/oauth2/token"
	defaultBrowseURL    = "https://api.ebay.com/buy/browse/v1/item_summary/search"
	defaultAnalyticsURL = "https://api.ebay.com/developer/analytics/v1_beta"

	oauthScope = "https://api.ebay.com/oauth/api_scope"

	// maxQueryLen is the Browse API's accepted q length.
	maxQueryLen = 350
	// maxErrorBody bounds the response excerpt carried by APIError.
	maxErrorBody = 200
)

// marketplaceDomains maps an X-EBAY-C-MARKETPLACE-ID to the public site
// domain used for listing and search links.
var marketplaceDomains = map[string]string{
	"EBAY_US": "ebay.com",
	"EBAY_GB": "ebay.co.uk",
	"EBAY_DE": "ebay.de",
	"EBAY_ES": "ebay.es",
	"EBAY_FR": "ebay.fr",
	"EBAY_IT": "ebay.it",
	"EBAY_NL": "ebay.nl",
	"EBAY_PL": "ebay.pl",
}

// ErrMissingCredentials is returned when a token is requested without a
// configured client id/secret pair. It aborts the operation that needed the
// token and is never retried.
var ErrMissingCredentials = errors.New("EBAY_CLIENT_ID and EBAY_CLIENT_SECRET must be set")

// AuthError reports a rejected OAuth token exchange. Remaining enrichment
// calls for the current harvest are pointless once this is seen.
type AuthError struct {
	Status int
	Body   string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("ebay token failed: %d %s", e.Status, e.Body)
}

// APIError reports a non-success response from a Browse or Analytics call.
// It is item-scoped: the caller skips the current listing and continues.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ebay request failed: %d %s", e.Status, e.Body)
}

func domainFor(marketplaceID string) string {
	if d, ok := marketplaceDomains[marketplaceID]; ok {
		return d
	}
	return "ebay.com"
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
