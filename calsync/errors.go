// ABOUTME: Error taxonomy for the calendar sync core
// ABOUTME: Sentinel errors for terminal states, structured errors for remote failures
package calsync

import (
	"errors"
	"fmt"
)

var (
	// ErrAccountNotConnected means no credential record exists for the
	// user. Terminal: the user has to connect their Google account.
	ErrAccountNotConnected = errors.New("google account not connected")

	// ErrRefreshTokenMissing means the credential record exists but holds
	// no refresh token, so an expired access token cannot be recovered.
	// Terminal: the user has to re-authenticate.
	ErrRefreshTokenMissing = errors.New("refresh token missing, re-authentication required")
)

// TokenRefreshError is a non-2xx reply from the OAuth token endpoint. The
// response body is carried verbatim for diagnostics. May be transient; the
// core performs no automatic retry.
type TokenRefreshError struct {
	StatusCode int
	Body       string
}

func (e *TokenRefreshError) Error() string {
	return fmt.Sprintf("token refresh failed with status %d: %s", e.StatusCode, e.Body)
}

// Remote operation names used in RemoteError.
const (
	OpList   = "list"
	OpCreate = "create"
)

// RemoteError is a failed calendar API call. The provider's response body is
// carried verbatim; retries are a caller policy.
type RemoteError struct {
	Op         string // OpList or OpCreate
	StatusCode int
	Body       string
	Err        error
}

func (e *RemoteError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("remote %s failed with status %d: %s", e.Op, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("remote %s failed: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}
