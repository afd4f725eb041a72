// ABOUTME: Reconciliation pass pulling remote Google events into the local store
// ABOUTME: Normalizes, upserts keyed on (user, external id), and counts outcomes
package calsync

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/harperreed/daybook/db"
	"github.com/harperreed/daybook/models"
)

// Reconciler runs full sync passes: list a bounded window of remote events,
// normalize each, and upsert into the local store. Running a pass twice
// against an unchanged remote set produces the same counts and no duplicate
// rows; the (user_id, external_id) uniqueness is the only dedup key.
type Reconciler struct {
	db     *sql.DB
	tokens *TokenManager
	client *Client
}

// NewReconciler creates a Reconciler over the shared store, token manager,
// and calendar client.
func NewReconciler(database *sql.DB, tokens *TokenManager, client *Client) *Reconciler {
	return &Reconciler{db: database, tokens: tokens, client: client}
}

// SyncEvents runs one reconciliation pass for the user. Token or listing
// failures abort the whole pass — partial counters are meaningless when the
// listing itself failed. Upserts are applied in listing order (start time
// ascending); each is independently idempotent.
func (r *Reconciler) SyncEvents(ctx context.Context, userID uuid.UUID) (models.SyncResult, error) {
	var result models.SyncResult

	if err := db.MarkSyncing(r.db, userID); err != nil {
		return result, err
	}

	token, err := r.tokens.AccessToken(ctx, userID)
	if err != nil {
		return result, r.fail(userID, fmt.Errorf("failed to get access token: %w", err))
	}

	items, err := r.client.ListEvents(ctx, token)
	if err != nil {
		return result, r.fail(userID, fmt.Errorf("failed to list remote events: %w", err))
	}

	result.TotalFromGoogle = len(items)

	for _, item := range items {
		// Cancelled events are skipped, never tombstoned: a
		// previously-synced copy stays in place.
		if item.Id == "" || item.Status == "cancelled" {
			result.SkippedCancelled++
			continue
		}

		startAt, ok := resolveTime(item.Start)
		if !ok {
			result.SkippedInvalidTime++
			continue
		}
		endAt, ok := resolveTime(item.End)
		if !ok {
			result.SkippedInvalidTime++
			continue
		}

		externalID := item.Id
		event := &models.Event{
			UserID:       userID,
			Title:        eventTitle(item),
			StartAt:      startAt,
			EndAt:        endAt,
			Participants: attendeeEmails(item),
			Source:       models.SourceGoogle,
			ExternalID:   &externalID,
		}
		if item.Location != "" {
			location := item.Location
			event.Location = &location
		}
		if link := meetingLink(item); link != "" {
			event.MeetLink = &link
		}

		if err := db.UpsertExternalEvent(r.db, event); err != nil {
			return result, r.fail(userID, fmt.Errorf("failed to upsert event %s: %w", externalID, err))
		}

		result.Synced++
	}

	if err := db.MarkSyncComplete(r.db, userID, result); err != nil {
		return result, err
	}

	log.Printf("synced %d/%d events for user %s (skipped %d cancelled, %d invalid time)",
		result.Synced, result.TotalFromGoogle, userID,
		result.SkippedCancelled, result.SkippedInvalidTime)

	return result, nil
}

func (r *Reconciler) fail(userID uuid.UUID, err error) error {
	if markErr := db.MarkSyncError(r.db, userID, err.Error()); markErr != nil {
		log.Printf("failed to record sync error for user %s: %v", userID, markErr)
	}
	return err
}
