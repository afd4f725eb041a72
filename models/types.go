// ABOUTME: Data models for daybook entities
// ABOUTME: Defines Account, Event, EventDraft, Task, and sync result structs
package models

import (
	"time"

	"github.com/google/uuid"
)

// ProviderGoogle is the only calendar provider daybook talks to.
const ProviderGoogle = "google"

// Event source constants.
const (
	SourceApp       = "app"        // created locally, never published
	SourceGoogle    = "google"     // pulled in by a sync pass
	SourceAppGoogle = "app+google" // created locally and published to Google
)

// Account is the OAuth credential record for a (user, provider) pair.
// Created at consent time; only TokenManager mutates the token fields.
type Account struct {
	UserID       uuid.UUID `json:"user_id"`
	Provider     string    `json:"provider"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	ExpiresAt    int64     `json:"expires_at"` // epoch seconds
	Scope        string    `json:"scope,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Event is a local calendar event. ExternalID is the Google event id when
// the event has a remote counterpart; (UserID, ExternalID) is the sole
// deduplication key for reconciliation.
type Event struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"user_id"`
	Title        string    `json:"title"`
	StartAt      time.Time `json:"start_at"`
	EndAt        time.Time `json:"end_at"`
	Participants []string  `json:"participants,omitempty"`
	Location     *string   `json:"location,omitempty"`
	MeetLink     *string   `json:"meet_link,omitempty"`
	Source       string    `json:"source"`
	ExternalID   *string   `json:"external_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// EventDraft is user input for a new event. Participants may arrive as an
// already-split list or as one comma-separated string from a form field.
type EventDraft struct {
	Title           string    `json:"title"`
	StartAt         time.Time `json:"start_at"`
	EndAt           time.Time `json:"end_at"`
	Participants    []string  `json:"participants,omitempty"`
	ParticipantsRaw string    `json:"participants_raw,omitempty"`
	Location        string    `json:"location,omitempty"`
	MeetLink        string    `json:"meet_link,omitempty"`
}

type Task struct {
	ID        uuid.UUID  `json:"id"`
	Title     string     `json:"title"`
	Notes     string     `json:"notes,omitempty"`
	Done      bool       `json:"done"`
	DueAt     *time.Time `json:"due_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// SyncResult reports the outcome of one reconciliation pass. Every remote
// item is accounted for: synced + skipped counters add up to the total.
type SyncResult struct {
	Synced             int `json:"synced"`
	TotalFromGoogle    int `json:"total_from_google"`
	SkippedCancelled   int `json:"skipped_cancelled"`
	SkippedInvalidTime int `json:"skipped_invalid_time"`
}

// PublishResult carries the locally created event plus the remote error, if
// any. RemoteSyncError is nil on full success; a non-nil value means the
// event exists locally but could not be pushed to Google.
type PublishResult struct {
	Event           *Event  `json:"event"`
	RemoteSyncError *string `json:"remote_sync_error,omitempty"`
}
