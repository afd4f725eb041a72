// ABOUTME: Database operations for OAuth credential records
// ABOUTME: Reads and writes the accounts table keyed by (user_id, provider)
package db

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/harperreed/daybook/models"
)

// GetAccount retrieves the credential record for a (user, provider) pair.
// Returns nil without error when no record exists.
func GetAccount(db *sql.DB, userID uuid.UUID, provider string) (*models.Account, error) {
	var account models.Account
	var id string

	err := db.QueryRow(`
		SELECT user_id, provider, access_token, refresh_token, expires_at, scope, token_type, created_at, updated_at
		FROM accounts
		WHERE user_id = ? AND provider = ?
	`, userID.String(), provider).Scan(
		&id,
		&account.Provider,
		&account.AccessToken,
		&account.RefreshToken,
		&account.ExpiresAt,
		&account.Scope,
		&account.TokenType,
		&account.CreatedAt,
		&account.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	account.UserID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("failed to parse account user id: %w", err)
	}

	return &account, nil
}

// SaveAccount upserts a credential record. Used by the consent-flow glue
// when a user first connects their Google account.
func SaveAccount(db *sql.DB, account *models.Account) error {
	_, err := db.Exec(`
		INSERT INTO accounts (user_id, provider, access_token, refresh_token, expires_at, scope, token_type, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id, provider) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			scope = excluded.scope,
			token_type = excluded.token_type,
			updated_at = CURRENT_TIMESTAMP
	`, account.UserID.String(), account.Provider, account.AccessToken, account.RefreshToken,
		account.ExpiresAt, account.Scope, account.TokenType)

	if err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}

	return nil
}

// UpdateAccountTokens persists the result of a token refresh. The refresh
// token, scope, and token type are only overwritten when the provider
// returned new values; Google omits the refresh token on most refreshes and
// the stored one must be preserved.
func UpdateAccountTokens(db *sql.DB, userID uuid.UUID, provider, accessToken, refreshToken string, expiresAt int64, scope, tokenType string) error {
	result, err := db.Exec(`
		UPDATE accounts SET
			access_token = ?,
			expires_at = ?,
			refresh_token = COALESCE(NULLIF(?, ''), refresh_token),
			scope = COALESCE(NULLIF(?, ''), scope),
			token_type = COALESCE(NULLIF(?, ''), token_type),
			updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ? AND provider = ?
	`, accessToken, expiresAt, refreshToken, scope, tokenType, userID.String(), provider)

	if err != nil {
		return fmt.Errorf("failed to update account tokens: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check token update: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("no account row for user %s provider %s", userID, provider)
	}

	return nil
}
