// ABOUTME: Stateless Google Calendar API client for sync and publish
// ABOUTME: Wraps calendar/v3 list, insert, and profile lookups with a bearer token
package calsync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	calendarID = "primary"
	maxResults = 250 // Google Calendar API max per page

	// Sync window: 30 days back to 180 days ahead of the call time.
	syncWindowPast   = 30
	syncWindowFuture = 180
)

// EventPayload is the outbound shape for creating a remote event.
// Description carries a meeting link as plain text when the caller supplies
// one out-of-band.
type EventPayload struct {
	Title       string
	Start       time.Time
	End         time.Time
	Attendees   []string
	Location    string
	Description string
}

// Client is a stateless wrapper around the Google Calendar API. It holds no
// token and no retry logic; every call takes a bearer token from
// TokenManager and retries are a caller policy.
type Client struct {
	clock    Clock
	endpoint string // overrides the API base URL in tests
}

// NewClient creates a calendar client against the production API.
func NewClient() *Client {
	return &Client{clock: SystemClock()}
}

func (c *Client) service(ctx context.Context, token string) (*calendar.Service, error) {
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))

	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if c.endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.endpoint))
	}

	service, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	return service, nil
}

// ListEvents fetches the user's primary calendar for the sliding sync
// window, with recurring events expanded to single occurrences, ordered by
// start time ascending.
func (c *Client) ListEvents(ctx context.Context, token string) ([]*calendar.Event, error) {
	service, err := c.service(ctx, token)
	if err != nil {
		return nil, err
	}

	now := c.clock.Now()
	timeMin := now.AddDate(0, 0, -syncWindowPast).Format(time.RFC3339)
	timeMax := now.AddDate(0, 0, syncWindowFuture).Format(time.RFC3339)

	events, err := service.Events.List(calendarID).
		SingleEvents(true).
		OrderBy("startTime").
		TimeMin(timeMin).
		TimeMax(timeMax).
		MaxResults(maxResults).
		Context(ctx).
		Do()
	if err != nil {
		return nil, remoteError(OpList, err)
	}

	return events.Items, nil
}

// CreateEvent inserts a new event into the user's primary calendar and
// returns the created remote event, including its assigned id.
func (c *Client) CreateEvent(ctx context.Context, token string, payload EventPayload) (*calendar.Event, error) {
	service, err := c.service(ctx, token)
	if err != nil {
		return nil, err
	}

	event := &calendar.Event{
		Summary: payload.Title,
		Start:   &calendar.EventDateTime{DateTime: payload.Start.Format(time.RFC3339)},
		End:     &calendar.EventDateTime{DateTime: payload.End.Format(time.RFC3339)},
	}
	if payload.Location != "" {
		event.Location = payload.Location
	}
	if payload.Description != "" {
		event.Description = payload.Description
	}
	for _, email := range payload.Attendees {
		email = strings.TrimSpace(email)
		if email == "" {
			continue
		}
		event.Attendees = append(event.Attendees, &calendar.EventAttendee{Email: email})
	}

	created, err := service.Events.Insert(calendarID, event).Context(ctx).Do()
	if err != nil {
		return nil, remoteError(OpCreate, err)
	}

	return created, nil
}

// ProfileEmail returns the email of the account's primary calendar. Strictly
// diagnostic: any failure is swallowed and reported as an empty string so it
// can never interrupt a sync or publish flow.
func (c *Client) ProfileEmail(ctx context.Context, token string) string {
	service, err := c.service(ctx, token)
	if err != nil {
		return ""
	}

	entry, err := service.CalendarList.Get(calendarID).Context(ctx).Do()
	if err != nil {
		return ""
	}

	return entry.Id
}

// remoteError converts a calendar API failure into a RemoteError, surfacing
// the provider's status and response body verbatim.
func remoteError(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return &RemoteError{Op: op, StatusCode: apiErr.Code, Body: apiErr.Body, Err: err}
	}
	return &RemoteError{Op: op, Err: err}
}
