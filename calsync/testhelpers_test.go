// ABOUTME: Shared test fixtures for the calsync package
// ABOUTME: Temp SQLite databases, a fixed clock, and a fake Google API server
package calsync

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"google.golang.org/api/calendar/v3"

	"github.com/harperreed/daybook/db"
	"github.com/harperreed/daybook/models"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	database, err := db.OpenDatabase(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	return database
}

// connectTestAccount stores a credential record for userID. expiresAt is
// epoch seconds; pass a future value for a fresh token.
func connectTestAccount(t *testing.T, database *sql.DB, userID uuid.UUID, accessToken, refreshToken string, expiresAt int64) {
	t.Helper()

	err := db.SaveAccount(database, &models.Account{
		UserID:       userID,
		Provider:     models.ProviderGoogle,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
	})
	if err != nil {
		t.Fatalf("failed to save test account: %v", err)
	}
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

// fakeGoogle fakes the calendar API surface the client touches: the events
// collection of the primary calendar and the calendar list entry used for
// the profile email.
type fakeGoogle struct {
	mu sync.Mutex

	listItems    []*calendar.Event
	listStatus   int // 0 means 200
	createStatus int // 0 means 200
	profileEmail string

	listCalls     int
	createCalls   int
	lastListQuery url.Values
	created       []*calendar.Event

	// createID is assigned to inserted events; defaults to "evt_1".
	createID string
}

func newFakeGoogle(t *testing.T) (*fakeGoogle, *httptest.Server) {
	t.Helper()

	fake := &fakeGoogle{createID: "evt_1"}

	mux := http.NewServeMux()
	mux.HandleFunc("/calendars/primary/events", fake.handleEvents)
	mux.HandleFunc("/users/me/calendarList/primary", fake.handleCalendarList)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return fake, server
}

func (f *fakeGoogle) handleEvents(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodGet:
		f.listCalls++
		f.lastListQuery = r.URL.Query()
		if f.listStatus != 0 {
			http.Error(w, `{"error": {"message": "list failed"}}`, f.listStatus)
			return
		}
		writeTestJSON(w, &calendar.Events{Items: f.listItems})

	case http.MethodPost:
		f.createCalls++
		if f.createStatus != 0 {
			http.Error(w, `{"error": {"message": "create failed"}}`, f.createStatus)
			return
		}
		var event calendar.Event
		if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		event.Id = f.createID
		f.created = append(f.created, &event)
		writeTestJSON(w, &event)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (f *fakeGoogle) handleCalendarList(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.profileEmail == "" {
		http.Error(w, `{"error": {"message": "unavailable"}}`, http.StatusInternalServerError)
		return
	}
	writeTestJSON(w, &calendar.CalendarListEntry{Id: f.profileEmail})
}

func writeTestJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// newTestClient returns a Client pointed at the fake API.
func newTestClient(serverURL string, clock Clock) *Client {
	if clock == nil {
		clock = SystemClock()
	}
	return &Client{clock: clock, endpoint: serverURL + "/"}
}
