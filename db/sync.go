// ABOUTME: Database operations for the per-user sync_state table
// ABOUTME: Tracks sync status, last run time, and reconciliation counters
package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/harperreed/daybook/models"
)

// SyncState represents the last known sync state for a user.
type SyncState struct {
	UserID       uuid.UUID
	LastSyncTime *time.Time
	Status       string
	ErrorMessage *string
	Result       models.SyncResult
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// GetSyncState retrieves the sync state for a user. Returns nil without
// error when the user has never synced.
func GetSyncState(db *sql.DB, userID uuid.UUID) (*SyncState, error) {
	var state SyncState
	var id string
	var lastSyncTime sql.NullTime
	var errorMessage sql.NullString

	err := db.QueryRow(`
		SELECT user_id, last_sync_time, status, error_message, synced, total_from_google, skipped_cancelled, skipped_invalid_time, created_at, updated_at
		FROM sync_state
		WHERE user_id = ?
	`, userID.String()).Scan(
		&id,
		&lastSyncTime,
		&state.Status,
		&errorMessage,
		&state.Result.Synced,
		&state.Result.TotalFromGoogle,
		&state.Result.SkippedCancelled,
		&state.Result.SkippedInvalidTime,
		&state.CreatedAt,
		&state.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync state: %w", err)
	}

	state.UserID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("failed to parse sync state user id: %w", err)
	}

	if lastSyncTime.Valid {
		state.LastSyncTime = &lastSyncTime.Time
	}
	if errorMessage.Valid {
		state.ErrorMessage = &errorMessage.String
	}

	return &state, nil
}

// MarkSyncing flags a user's sync as in progress.
func MarkSyncing(db *sql.DB, userID uuid.UUID) error {
	return updateSyncStatus(db, userID, "syncing", nil)
}

// MarkSyncError records a failed sync pass with its error message.
func MarkSyncError(db *sql.DB, userID uuid.UUID, errMsg string) error {
	return updateSyncStatus(db, userID, "error", &errMsg)
}

func updateSyncStatus(db *sql.DB, userID uuid.UUID, status string, errorMsg *string) error {
	var errorMsgVal sql.NullString
	if errorMsg != nil {
		errorMsgVal = sql.NullString{String: *errorMsg, Valid: true}
	}

	_, err := db.Exec(`
		INSERT INTO sync_state (user_id, status, error_message, created_at, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id) DO UPDATE SET
			status = excluded.status,
			error_message = excluded.error_message,
			updated_at = CURRENT_TIMESTAMP
	`, userID.String(), status, errorMsgVal)

	if err != nil {
		return fmt.Errorf("failed to update sync status: %w", err)
	}

	return nil
}

// MarkSyncComplete records a successful pass: status back to idle, last sync
// time stamped, and the four reconciliation counters stored for the status
// surface.
func MarkSyncComplete(db *sql.DB, userID uuid.UUID, result models.SyncResult) error {
	_, err := db.Exec(`
		INSERT INTO sync_state (user_id, last_sync_time, status, synced, total_from_google, skipped_cancelled, skipped_invalid_time, created_at, updated_at)
		VALUES (?, CURRENT_TIMESTAMP, 'idle', ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id) DO UPDATE SET
			last_sync_time = CURRENT_TIMESTAMP,
			status = 'idle',
			error_message = NULL,
			synced = excluded.synced,
			total_from_google = excluded.total_from_google,
			skipped_cancelled = excluded.skipped_cancelled,
			skipped_invalid_time = excluded.skipped_invalid_time,
			updated_at = CURRENT_TIMESTAMP
	`, userID.String(), result.Synced, result.TotalFromGoogle, result.SkippedCancelled, result.SkippedInvalidTime)

	if err != nil {
		return fmt.Errorf("failed to mark sync complete: %w", err)
	}

	return nil
}
