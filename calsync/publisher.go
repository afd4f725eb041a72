// ABOUTME: Outbound event creation with best-effort remote publish
// ABOUTME: Local write always succeeds; Google failures degrade to a warning
package calsync

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/harperreed/daybook/db"
	"github.com/harperreed/daybook/models"
)

// Publisher creates locally entered events and pushes them to Google. The
// policy is local-first, remote-best-effort: a user's data entry is never
// lost because of a remote outage or an unrefreshable token.
type Publisher struct {
	db     *sql.DB
	tokens *TokenManager
	client *Client
}

// NewPublisher creates a Publisher over the shared store, token manager,
// and calendar client.
func NewPublisher(database *sql.DB, tokens *TokenManager, client *Client) *Publisher {
	return &Publisher{db: database, tokens: tokens, client: client}
}

// CreateAndPublish stores a drafted event locally and attempts to create it
// on the user's Google calendar. Input validation (non-blank title, end
// after start) is the caller's responsibility. The remote attempt is allowed
// to fail: on failure the local record is still created with source "app"
// and the error message is reported back; only a local store failure is
// fatal.
func (p *Publisher) CreateAndPublish(ctx context.Context, userID uuid.UUID, draft models.EventDraft) (models.PublishResult, error) {
	participants := normalizeParticipants(draft)

	event := &models.Event{
		UserID:       userID,
		Title:        draft.Title,
		StartAt:      draft.StartAt,
		EndAt:        draft.EndAt,
		Participants: participants,
		Source:       models.SourceApp,
	}
	if draft.Location != "" {
		location := draft.Location
		event.Location = &location
	}
	if draft.MeetLink != "" {
		link := draft.MeetLink
		event.MeetLink = &link
	}

	var remoteSyncError *string

	remote, err := p.publish(ctx, userID, draft, participants)
	if err != nil {
		msg := err.Error()
		remoteSyncError = &msg
		log.Printf("remote publish failed for user %s, keeping local copy: %v", userID, err)
	} else {
		event.Source = models.SourceAppGoogle
		externalID := remote.Id
		event.ExternalID = &externalID
		if remote.HangoutLink != "" {
			link := remote.HangoutLink
			event.MeetLink = &link
		}
	}

	if err := db.CreateEvent(p.db, event); err != nil {
		return models.PublishResult{}, fmt.Errorf("failed to create local event: %w", err)
	}

	return models.PublishResult{Event: event, RemoteSyncError: remoteSyncError}, nil
}

func (p *Publisher) publish(ctx context.Context, userID uuid.UUID, draft models.EventDraft, participants []string) (*remoteEvent, error) {
	token, err := p.tokens.AccessToken(ctx, userID)
	if err != nil {
		return nil, err
	}

	payload := EventPayload{
		Title:     draft.Title,
		Start:     draft.StartAt,
		End:       draft.EndAt,
		Attendees: participants,
		Location:  draft.Location,
	}
	if draft.MeetLink != "" {
		payload.Description = "Meeting link: " + draft.MeetLink
	}

	created, err := p.client.CreateEvent(ctx, token, payload)
	if err != nil {
		return nil, err
	}

	return &remoteEvent{Id: created.Id, HangoutLink: created.HangoutLink}, nil
}

// remoteEvent is the slice of the provider response the publisher cares
// about.
type remoteEvent struct {
	Id          string
	HangoutLink string
}

// normalizeParticipants flattens the draft's participants — either an
// already-split list or one comma-separated form value — into a trimmed,
// deduplicated sequence, first occurrence winning.
func normalizeParticipants(draft models.EventDraft) []string {
	raw := draft.Participants
	if len(raw) == 0 && draft.ParticipantsRaw != "" {
		raw = strings.Split(draft.ParticipantsRaw, ",")
	}

	seen := make(map[string]bool)
	var participants []string
	for _, entry := range raw {
		email := strings.TrimSpace(entry)
		if email == "" || seen[email] {
			continue
		}
		seen[email] = true
		participants = append(participants, email)
	}

	return participants
}
