// ABOUTME: Tests for the sync reconciliation pass
// ABOUTME: Verifies counters, skip rules, idempotence, and upsert semantics
package calsync

import (
	"context"
	"database/sql"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/calendar/v3"

	"github.com/harperreed/daybook/db"
	"github.com/harperreed/daybook/models"
)

func setupReconciler(t *testing.T) (*sql.DB, uuid.UUID, *fakeGoogle, *Reconciler) {
	t.Helper()

	database := setupTestDB(t)
	userID := uuid.New()
	connectTestAccount(t, database, userID, "tok", "refresh-1", time.Now().Unix()+3600)

	fake, server := newFakeGoogle(t)
	tokens := NewTokenManager(database, "cid", "secret")
	client := newTestClient(server.URL, nil)

	return database, userID, fake, NewReconciler(database, tokens, client)
}

func timedEvent(id, summary, start, end string) *calendar.Event {
	return &calendar.Event{
		Id:      id,
		Summary: summary,
		Start:   &calendar.EventDateTime{DateTime: start},
		End:     &calendar.EventDateTime{DateTime: end},
	}
}

func TestSyncEventsCounters(t *testing.T) {
	database, userID, fake, reconciler := setupReconciler(t)

	fake.listItems = []*calendar.Event{
		timedEvent("e1", "Standup", "2024-01-02T09:00:00Z", "2024-01-02T09:30:00Z"),
		{
			Id:      "e2",
			Summary: "Cancelled thing",
			Status:  "cancelled",
		},
		{
			Id:      "e3",
			Summary: "No times at all",
		},
		{
			// All-day event: date-only resolves to UTC midnight.
			Id:      "e4",
			Summary: "Conference",
			Start:   &calendar.EventDateTime{Date: "2024-01-10"},
			End:     &calendar.EventDateTime{Date: "2024-01-11"},
		},
		{
			// Missing identity counts with the cancelled skips.
			Summary: "No id",
			Start:   &calendar.EventDateTime{DateTime: "2024-01-03T09:00:00Z"},
			End:     &calendar.EventDateTime{DateTime: "2024-01-03T10:00:00Z"},
		},
	}

	result, err := reconciler.SyncEvents(context.Background(), userID)
	require.NoError(t, err)

	assert.Equal(t, 5, result.TotalFromGoogle)
	assert.Equal(t, 2, result.Synced)
	assert.Equal(t, 2, result.SkippedCancelled)
	assert.Equal(t, 1, result.SkippedInvalidTime)

	count, err := db.CountEventsForUser(database, userID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	conference, err := db.GetEventByExternalID(database, userID, "e4")
	require.NoError(t, err)
	require.NotNil(t, conference)
	assert.True(t, conference.StartAt.Equal(time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)),
		"all-day start resolves to UTC midnight, got %s", conference.StartAt)

	// Counters are persisted for the status surface.
	state, err := db.GetSyncState(database, userID)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, "idle", state.Status)
	assert.Equal(t, result, state.Result)
}

func TestSyncEventsIdempotent(t *testing.T) {
	database, userID, fake, reconciler := setupReconciler(t)

	fake.listItems = []*calendar.Event{
		timedEvent("e1", "Standup", "2024-01-02T09:00:00Z", "2024-01-02T09:30:00Z"),
		timedEvent("e2", "Planning", "2024-01-03T10:00:00Z", "2024-01-03T11:00:00Z"),
		timedEvent("e3", "Retro", "2024-01-04T15:00:00Z", "2024-01-04T16:00:00Z"),
	}

	first, err := reconciler.SyncEvents(context.Background(), userID)
	require.NoError(t, err)
	second, err := reconciler.SyncEvents(context.Background(), userID)
	require.NoError(t, err)

	assert.Equal(t, 3, first.Synced)
	assert.Equal(t, first, second, "unchanged remote set yields identical counts")

	count, err := db.CountEventsForUser(database, userID)
	require.NoError(t, err)
	assert.Equal(t, 3, count, "no duplicate rows after a second pass")
}

func TestSyncEventsUpsertPreservesLocalID(t *testing.T) {
	database, userID, fake, reconciler := setupReconciler(t)

	fake.listItems = []*calendar.Event{
		timedEvent("e1", "Standup", "2024-01-02T09:00:00Z", "2024-01-02T09:30:00Z"),
	}
	_, err := reconciler.SyncEvents(context.Background(), userID)
	require.NoError(t, err)

	before, err := db.GetEventByExternalID(database, userID, "e1")
	require.NoError(t, err)
	require.NotNil(t, before)

	// Remote edits the title and adds a Meet link; the local row is
	// overwritten in place.
	updated := timedEvent("e1", "Standup (moved)", "2024-01-02T10:00:00Z", "2024-01-02T10:30:00Z")
	updated.HangoutLink = "https://meet.google.com/abc-defg-hij"
	fake.listItems = []*calendar.Event{updated}

	_, err = reconciler.SyncEvents(context.Background(), userID)
	require.NoError(t, err)

	after, err := db.GetEventByExternalID(database, userID, "e1")
	require.NoError(t, err)
	require.NotNil(t, after)
	assert.Equal(t, before.ID, after.ID, "local identity survives the upsert")
	assert.Equal(t, "Standup (moved)", after.Title)
	require.NotNil(t, after.MeetLink)
	assert.Equal(t, "https://meet.google.com/abc-defg-hij", *after.MeetLink)
}

func TestSyncEventsKeepsPublishedSource(t *testing.T) {
	database, userID, fake, reconciler := setupReconciler(t)

	// An event the app created and published earlier.
	externalID := "e1"
	published := &models.Event{
		UserID:     userID,
		Title:      "Standup",
		StartAt:    time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC),
		EndAt:      time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC),
		Source:     models.SourceAppGoogle,
		ExternalID: &externalID,
	}
	require.NoError(t, db.CreateEvent(database, published))

	fake.listItems = []*calendar.Event{
		timedEvent("e1", "Standup", "2024-01-02T09:00:00Z", "2024-01-02T09:30:00Z"),
	}
	_, err := reconciler.SyncEvents(context.Background(), userID)
	require.NoError(t, err)

	after, err := db.GetEventByExternalID(database, userID, "e1")
	require.NoError(t, err)
	assert.Equal(t, models.SourceAppGoogle, after.Source, "sync must not downgrade an app-published event")
}

func TestSyncEventsCancelledLeavesLocalCopy(t *testing.T) {
	database, userID, fake, reconciler := setupReconciler(t)

	fake.listItems = []*calendar.Event{
		timedEvent("e1", "Standup", "2024-01-02T09:00:00Z", "2024-01-02T09:30:00Z"),
	}
	_, err := reconciler.SyncEvents(context.Background(), userID)
	require.NoError(t, err)

	// The remote cancels the event; the already-synced copy stays.
	fake.listItems = []*calendar.Event{
		{Id: "e1", Summary: "Standup", Status: "cancelled"},
	}
	result, err := reconciler.SyncEvents(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.SkippedCancelled)
	assert.Equal(t, 0, result.Synced)

	still, err := db.GetEventByExternalID(database, userID, "e1")
	require.NoError(t, err)
	assert.NotNil(t, still, "cancellations are skipped, not tombstoned")
}

func TestSyncEventsListFailureAbortsPass(t *testing.T) {
	database, userID, fake, reconciler := setupReconciler(t)
	fake.listStatus = http.StatusServiceUnavailable

	_, err := reconciler.SyncEvents(context.Background(), userID)
	require.Error(t, err)

	state, err := db.GetSyncState(database, userID)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, "error", state.Status)
	require.NotNil(t, state.ErrorMessage)
}

func TestSyncEventsNotConnectedAbortsPass(t *testing.T) {
	database := setupTestDB(t)
	userID := uuid.New() // no account row

	_, server := newFakeGoogle(t)
	tokens := NewTokenManager(database, "cid", "secret")
	reconciler := NewReconciler(database, tokens, newTestClient(server.URL, nil))

	_, err := reconciler.SyncEvents(context.Background(), userID)
	assert.ErrorIs(t, err, ErrAccountNotConnected)
}
