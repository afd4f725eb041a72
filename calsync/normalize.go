// ABOUTME: Pure normalization of remote Google events into the local shape
// ABOUTME: Resolves timed vs all-day times and meeting-link precedence
package calsync

import (
	"net/url"
	"strings"
	"time"

	"google.golang.org/api/calendar/v3"
)

// untitledEvent is the placeholder title for remote events with a blank
// summary.
const untitledEvent = "(no title)"

// resolveTime turns a remote date spec into an instant. A precise timestamp
// wins; a date-only value (all-day event) is interpreted as UTC midnight.
// Absence of both marks the event unusable — no default is synthesized.
func resolveTime(spec *calendar.EventDateTime) (time.Time, bool) {
	if spec == nil {
		return time.Time{}, false
	}

	if spec.DateTime != "" {
		t, err := time.Parse(time.RFC3339, spec.DateTime)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}

	if spec.Date != "" {
		t, err := time.ParseInLocation("2006-01-02", spec.Date, time.UTC)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}

	return time.Time{}, false
}

// meetingLink resolves the best link for joining an event. Precedence: the
// dedicated Meet link, then a location that is itself an http(s) URL, then
// the generic web link to the event. An explicit meeting link beats an
// incidentally URL-shaped location, which beats a fallback link to the
// event page.
func meetingLink(event *calendar.Event) string {
	if event.HangoutLink != "" {
		return event.HangoutLink
	}
	if isHTTPURL(event.Location) {
		return event.Location
	}
	if event.HtmlLink != "" {
		return event.HtmlLink
	}
	return ""
}

func isHTTPURL(s string) bool {
	if s == "" {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// attendeeEmails extracts non-empty attendee emails, order preserved.
func attendeeEmails(event *calendar.Event) []string {
	var emails []string
	for _, attendee := range event.Attendees {
		if attendee == nil {
			continue
		}
		email := strings.TrimSpace(attendee.Email)
		if email == "" {
			continue
		}
		emails = append(emails, email)
	}
	return emails
}

// eventTitle returns the remote summary or the placeholder when blank.
func eventTitle(event *calendar.Event) string {
	title := strings.TrimSpace(event.Summary)
	if title == "" {
		return untitledEvent
	}
	return title
}
