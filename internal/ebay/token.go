package ebay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TokenSource obtains and caches an application access token via the
// client-credentials grant. One TokenSource is shared by all enrichment
// calls of a run; the pipeline is single-threaded, so the read-then-refresh
// check needs no locking.
type TokenSource struct {
	httpClient   *http.Client
	tokenURL     string
	clientID     string
	clientSecret string
	now          func() time.Time

	value     string
	expiresAt time.Time
}

// NewTokenSource creates a token source for the given client credentials.
func NewTokenSource(clientID, clientSecret string, httpClient *http.Client) *TokenSource {
	return &TokenSource{
		httpClient:   httpClient,
		tokenURL:     defaultTokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		now:          time.Now,
	}
}

// Token returns the cached application token, refreshing it when the cache
// is empty or within the expiry margin. The token is cached until 60 seconds
// before its reported expiry; inside that margin a fresh exchange runs.
func (ts *TokenSource) Token(ctx context.Context) (string, error) {
	if ts.value != "" && ts.now().Before(ts.expiresAt) {
		return ts.value, nil
	}

	tok, expiresIn, err := ts.exchange(ctx, url.Values{
		"grant_type": {"client_credentials"},
		"scope":      {oauthScope},
	})
	if err != nil {
		return "", err
	}

	ts.value = tok
	ts.expiresAt = ts.now().Add(time.Duration(expiresIn)*time.Second - 60*time.Second)
	return ts.value, nil
}

// UserToken exchanges a long-lived refresh token for a user access token.
// Used only by the user-level quota check, once per cycle, so it is not cached.
func (ts *TokenSource) UserToken(ctx context.Context, refreshToken string) (string, error) {
	tok, _, err := ts.exchange(ctx, url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"scope":         {oauthScope},
	})
	return tok, err
}

func (ts *TokenSource) exchange(ctx context.Context, form url.Values) (string, int, error) {
	if ts.clientID == "" || ts.clientSecret == "" {
		return "", 0, ErrMissingCredentials
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(ts.clientID, ts.clientSecret)

	resp, err := ts.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("ebay token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", 0, &AuthError{Status: resp.StatusCode, Body: string(body)}
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", 0, fmt.Errorf("ebay token decode: %w", err)
	}
	if payload.AccessToken == "" {
		return "", 0, &AuthError{Status: resp.StatusCode, Body: "empty access_token"}
	}
	if payload.ExpiresIn <= 0 {
		payload.ExpiresIn = 7200
	}
	return payload.AccessToken, payload.ExpiresIn, nil
}
