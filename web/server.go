// ABOUTME: JSON API server exposing sync, publish, and task operations
// ABOUTME: Thin HTTP glue over the calsync core; UI rendering lives elsewhere
package web

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/harperreed/daybook/calsync"
	"github.com/harperreed/daybook/db"
	"github.com/harperreed/daybook/models"
)

type Server struct {
	db         *sql.DB
	tokens     *calsync.TokenManager
	reconciler *calsync.Reconciler
	publisher  *calsync.Publisher
	client     *calsync.Client
}

func NewServer(database *sql.DB, tokens *calsync.TokenManager, reconciler *calsync.Reconciler, publisher *calsync.Publisher, client *calsync.Client) *Server {
	return &Server{
		db:         database,
		tokens:     tokens,
		reconciler: reconciler,
		publisher:  publisher,
		client:     client,
	}
}

// Handler builds the API routing table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/sync", s.handleSync)
	mux.HandleFunc("/api/events", s.handleEvents)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/tasks", s.handleTasks)
	mux.HandleFunc("/api/tasks/", s.handleTaskDone)
	return mux
}

func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	log.Printf("Starting daybook API at http://localhost%s", addr)
	return http.ListenAndServe(addr, s.Handler())
}

// handleSync runs a reconciliation pass and returns its counters.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, ok := s.userParam(w, r)
	if !ok {
		return
	}

	result, err := s.reconciler.SyncEvents(r.Context(), userID)
	if err != nil {
		s.writeSyncError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleEvents serves the local event list and event creation with
// best-effort publish.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		userID, ok := s.userParam(w, r)
		if !ok {
			return
		}
		events, err := db.ListEventsForUser(s.db, userID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"events": events})

	case http.MethodPost:
		var req struct {
			UserID string            `json:"user_id"`
			Draft  models.EventDraft `json:"event"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		userID, err := uuid.Parse(req.UserID)
		if err != nil {
			http.Error(w, "invalid user_id", http.StatusBadRequest)
			return
		}
		if err := validateDraft(req.Draft); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		result, err := s.publisher.CreateAndPublish(r.Context(), userID, req.Draft)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, result)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleStatus reports the user's last sync state plus the connected
// account's profile email when it can be fetched.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, ok := s.userParam(w, r)
	if !ok {
		return
	}

	state, err := db.GetSyncState(s.db, userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := map[string]any{
		"connected":     false,
		"profile_email": nil,
	}
	if state != nil {
		resp["status"] = state.Status
		resp["last_sync_time"] = state.LastSyncTime
		resp["last_result"] = state.Result
		if state.ErrorMessage != nil {
			resp["error_message"] = *state.ErrorMessage
		}
	}

	// Profile email is diagnostics only; failures show as unavailable.
	if token, err := s.tokens.AccessToken(r.Context(), userID); err == nil {
		resp["connected"] = true
		if email := s.client.ProfileEmail(r.Context(), token); email != "" {
			resp["profile_email"] = email
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		tasks, err := db.ListTasks(s.db)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})

	case http.MethodPost:
		var task models.Task
		if err := json.NewDecoder(r.Body).Decode(&task); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(task.Title) == "" {
			http.Error(w, "title is required", http.StatusBadRequest)
			return
		}
		if err := db.CreateTask(s.db, &task); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, task)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleTaskDone handles POST /api/tasks/{id}/done.
func (s *Server) handleTaskDone(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/tasks/")
	idStr, action, found := strings.Cut(path, "/")
	if !found || action != "done" {
		http.NotFound(w, r)
		return
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		http.Error(w, "invalid task id", http.StatusBadRequest)
		return
	}

	if err := db.SetTaskDone(s.db, id, true); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) userParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, err := uuid.Parse(r.URL.Query().Get("user"))
	if err != nil {
		http.Error(w, "missing or invalid user parameter", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return userID, true
}

// writeSyncError maps core errors to HTTP statuses: terminal auth states
// need the user to reconnect, everything else is an upstream failure.
func (s *Server) writeSyncError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	if errors.Is(err, calsync.ErrAccountNotConnected) || errors.Is(err, calsync.ErrRefreshTokenMissing) {
		status = http.StatusUnauthorized
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func validateDraft(draft models.EventDraft) error {
	if strings.TrimSpace(draft.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if draft.StartAt.IsZero() || draft.EndAt.IsZero() {
		return fmt.Errorf("start and end times are required")
	}
	if !draft.EndAt.After(draft.StartAt) {
		return fmt.Errorf("end time must be after start time")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}
