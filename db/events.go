// ABOUTME: Database operations for local calendar events
// ABOUTME: Implements the (user_id, external_id) keyed upsert used by sync
package db

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/harperreed/daybook/models"
)

// CreateEvent inserts a new local event. Assigns an ID when the caller
// didn't set one.
func CreateEvent(db *sql.DB, event *models.Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	now := time.Now().UTC()
	event.CreatedAt = now
	event.UpdatedAt = now

	_, err := db.Exec(`
		INSERT INTO events (id, user_id, title, start_at, end_at, participants, location, meet_link, source, external_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, event.ID.String(), event.UserID.String(), event.Title, event.StartAt, event.EndAt,
		joinParticipants(event.Participants), event.Location, event.MeetLink,
		event.Source, event.ExternalID, event.CreatedAt, event.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}

	return nil
}

// UpsertExternalEvent creates or updates an event keyed on
// (user_id, external_id). On conflict the mutable fields are overwritten in
// place and the local id is preserved. A row the app itself published keeps
// its 'app+google' source rather than being downgraded to 'google'.
func UpsertExternalEvent(db *sql.DB, event *models.Event) error {
	if event.ExternalID == nil || *event.ExternalID == "" {
		return fmt.Errorf("upsert requires an external id")
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}

	_, err := db.Exec(`
		INSERT INTO events (id, user_id, title, start_at, end_at, participants, location, meet_link, source, external_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id, external_id) DO UPDATE SET
			title = excluded.title,
			start_at = excluded.start_at,
			end_at = excluded.end_at,
			participants = excluded.participants,
			location = excluded.location,
			meet_link = excluded.meet_link,
			source = CASE WHEN events.source = 'app+google' THEN events.source ELSE excluded.source END,
			updated_at = CURRENT_TIMESTAMP
	`, event.ID.String(), event.UserID.String(), event.Title, event.StartAt, event.EndAt,
		joinParticipants(event.Participants), event.Location, event.MeetLink,
		event.Source, *event.ExternalID)

	if err != nil {
		return fmt.Errorf("failed to upsert event: %w", err)
	}

	return nil
}

// GetEventByExternalID retrieves an event by its reconciliation key.
// Returns nil without error when no record exists.
func GetEventByExternalID(db *sql.DB, userID uuid.UUID, externalID string) (*models.Event, error) {
	row := db.QueryRow(`
		SELECT id, user_id, title, start_at, end_at, participants, location, meet_link, source, external_id, created_at, updated_at
		FROM events
		WHERE user_id = ? AND external_id = ?
	`, userID.String(), externalID)

	event, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	return event, nil
}

// ListEventsForUser returns all events for a user ordered by start time.
func ListEventsForUser(db *sql.DB, userID uuid.UUID) ([]models.Event, error) {
	rows, err := db.Query(`
		SELECT id, user_id, title, start_at, end_at, participants, location, meet_link, source, external_id, created_at, updated_at
		FROM events
		WHERE user_id = ?
		ORDER BY start_at ASC
	`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []models.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, *event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}

// CountEventsForUser returns the number of stored events for a user.
func CountEventsForUser(db *sql.DB, userID uuid.UUID) (int, error) {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM events WHERE user_id = ?`, userID.String()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*models.Event, error) {
	var event models.Event
	var id, userID, participants string
	var location, meetLink, externalID sql.NullString

	err := row.Scan(
		&id,
		&userID,
		&event.Title,
		&event.StartAt,
		&event.EndAt,
		&participants,
		&location,
		&meetLink,
		&event.Source,
		&externalID,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	event.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("failed to parse event id: %w", err)
	}
	event.UserID, err = uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to parse event user id: %w", err)
	}

	event.Participants = splitParticipants(participants)
	if location.Valid {
		event.Location = &location.String
	}
	if meetLink.Valid {
		event.MeetLink = &meetLink.String
	}
	if externalID.Valid {
		event.ExternalID = &externalID.String
	}

	return &event, nil
}

// joinParticipants flattens the ordered email list into one TEXT column.
// Emails cannot contain commas, so a plain join round-trips safely.
func joinParticipants(participants []string) string {
	return strings.Join(participants, ",")
}

func splitParticipants(column string) []string {
	if column == "" {
		return nil
	}
	return strings.Split(column, ",")
}
