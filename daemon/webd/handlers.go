package webd

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/halocircle/guardd/params"
	"github.com/halocircle/guardd/types/fix"
)

func pingPong(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("pong"))
}

type webDaemonStatus struct {
	StartedAt time.Time               `json:"started_at"`
	Uptime    string                  `json:"uptime"`
	Config    *params.WebDaemonConfig `json:"config"`
	Sessions  int                     `json:"sessions"`
	WSOpen    bool                    `json:"ws_open"`
	WSConns   int                     `json:"ws_conns"`
}

func (s *WebDaemon) statusReport(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	sessions := len(s.sessions)
	s.mu.Unlock()
	st := webDaemonStatus{
		StartedAt: s.started,
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		Config:    s.Config,
		Sessions:  sessions,
		WSOpen:    !s.melodyInstance.IsClosed(),
		WSConns:   s.melodyInstance.Len(),
	}
	j, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		s.logger.Error("Failed to marshal status", "error", err)
		http.Error(w, "Failed to marshal status", http.StatusInternalServerError)
		return
	}
	_, err = w.Write(j)
	if err != nil {
		s.logger.Error("Failed to write response", "error", err)
	}
}

func getRequestUserID(r *http.Request) fix.UserID {
	vars := mux.Vars(r)
	user, ok := vars["user"]
	if ok {
		return fix.UserID(user)
	}
	user = r.URL.Query().Get("user")
	return fix.UserID(user)
}

func handleGetUserForRequest(w http.ResponseWriter, r *http.Request) (fix.UserID, bool) {
	user := getRequestUserID(r)
	if user == "" {
		slog.Warn("Missing user", "url", r.URL)
		http.Error(w, "Missing user", http.StatusBadRequest)
		return "", false
	}
	return user, true
}

// handleLastKnown returns the user's current-location record.
func (s *WebDaemon) handleLastKnown(w http.ResponseWriter, r *http.Request) {
	user, ok := handleGetUserForRequest(w, r)
	if !ok {
		return
	}
	f, err := s.store.LastKnown(user)
	if err != nil {
		slog.Warn("Failed to get last known", "error", err)
		http.Error(w, "Failed to get last known", http.StatusInternalServerError)
		return
	}
	if f == nil {
		http.Error(w, "No location found", http.StatusNotFound)
		return
	}
	if err := json.NewEncoder(w).Encode(f); err != nil {
		slog.Warn("Failed to write response", "error", err)
	}
}

// handleRewardState returns the user's reward ledger.
func (s *WebDaemon) handleRewardState(w http.ResponseWriter, r *http.Request) {
	user, ok := handleGetUserForRequest(w, r)
	if !ok {
		return
	}
	state, err := s.store.RewardState(user)
	if err != nil {
		slog.Warn("Failed to get reward state", "error", err)
		http.Error(w, "Failed to get reward state", http.StatusInternalServerError)
		return
	}
	if state == nil {
		http.Error(w, "No reward state found", http.StatusNotFound)
		return
	}
	if err := json.NewEncoder(w).Encode(state); err != nil {
		slog.Warn("Failed to write response", "error", err)
	}
}
