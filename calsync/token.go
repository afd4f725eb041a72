// ABOUTME: OAuth2 access token lifecycle for connected Google accounts
// ABOUTME: Serves cached tokens and performs coalesced refresh exchanges
package calsync

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2/google"
	"golang.org/x/sync/singleflight"

	"github.com/harperreed/daybook/db"
	"github.com/harperreed/daybook/models"
)

// tokenExpirySkew is the safety buffer against clock skew and in-flight
// request latency: a token that expires within the next minute is treated
// as already stale, since it could expire mid-request.
const tokenExpirySkew = 60 * time.Second

// TokenManager owns the access/refresh token state for connected accounts.
// It either returns a valid access token or a well-defined failure; the
// credential record is only ever mutated here after consent time.
type TokenManager struct {
	db           *sql.DB
	clientID     string
	clientSecret string
	tokenURL     string
	httpClient   *http.Client
	clock        Clock
	group        singleflight.Group
}

// NewTokenManager creates a TokenManager against Google's token endpoint.
func NewTokenManager(database *sql.DB, clientID, clientSecret string) *TokenManager {
	return &TokenManager{
		db:           database,
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenURL:     google.Endpoint.TokenURL,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		clock:        SystemClock(),
	}
}

// AccessToken returns a valid access token for the user's Google account,
// refreshing it first when it is expired or about to expire. A cache hit
// performs zero network calls and zero store writes; a refresh performs
// exactly one of each. Concurrent callers for the same user share a single
// refresh.
func (m *TokenManager) AccessToken(ctx context.Context, userID uuid.UUID) (string, error) {
	account, err := db.GetAccount(m.db, userID, models.ProviderGoogle)
	if err != nil {
		return "", fmt.Errorf("failed to load account: %w", err)
	}
	if account == nil {
		return "", ErrAccountNotConnected
	}

	now := m.clock.Now()
	if account.AccessToken != "" && account.ExpiresAt > now.Add(tokenExpirySkew).Unix() {
		return account.AccessToken, nil
	}

	if account.RefreshToken == "" {
		return "", ErrRefreshTokenMissing
	}

	key := userID.String() + "/" + models.ProviderGoogle
	token, err, _ := m.group.Do(key, func() (any, error) {
		// Re-read inside the flight: a caller that queued behind a
		// finished refresh gets the freshly stored token without a
		// second exchange.
		current, err := db.GetAccount(m.db, userID, models.ProviderGoogle)
		if err != nil {
			return "", fmt.Errorf("failed to reload account: %w", err)
		}
		if current == nil {
			return "", ErrAccountNotConnected
		}
		if current.AccessToken != "" && current.ExpiresAt > m.clock.Now().Add(tokenExpirySkew).Unix() {
			return current.AccessToken, nil
		}
		return m.refresh(ctx, current)
	})
	if err != nil {
		return "", err
	}

	return token.(string), nil
}

// tokenResponse is the provider's token endpoint reply. refresh_token is
// optional: Google usually omits it, meaning the stored one stays valid.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
}

// refresh exchanges the refresh token for a new access token and persists
// the result with a single store write.
func (m *TokenManager) refresh(ctx context.Context, account *models.Account) (string, error) {
	form := url.Values{
		"client_id":     {m.clientID},
		"client_secret": {m.clientSecret},
		"grant_type":    {"refresh_token"},
		"refresh_token": {account.RefreshToken},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token endpoint unreachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &TokenRefreshError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned no access token")
	}

	expiresAt := m.clock.Now().Unix() + tr.ExpiresIn
	err = db.UpdateAccountTokens(m.db, account.UserID, account.Provider,
		tr.AccessToken, tr.RefreshToken, expiresAt, tr.Scope, tr.TokenType)
	if err != nil {
		return "", fmt.Errorf("failed to persist refreshed tokens: %w", err)
	}

	return tr.AccessToken, nil
}
