// Package api exposes the derived views and slot commands over HTTP. It is
// a thin transport: all semantics live in the schedule and journal packages.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"pilldock/internal/journal"
	"pilldock/internal/schedule"
	"pilldock/internal/syncer"
)

// HTTPServer serves the status API.
type HTTPServer struct {
	ctrl    *syncer.Controller
	svc     *schedule.Service
	journal *journal.Journal
	logger  zerolog.Logger
}

// NewHTTPServer creates the API server over the running controller and
// the state machine.
func NewHTTPServer(ctrl *syncer.Controller, svc *schedule.Service, jrnl *journal.Journal, logger *zerolog.Logger) *HTTPServer {
	return &HTTPServer{
		ctrl:    ctrl,
		svc:     svc,
		journal: jrnl,
		logger:  logger.With().Str("component", "api").Logger(),
	}
}

// Routes returns the handler for all API endpoints.
func (s *HTTPServer) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/schedules", s.handleSchedules)
	mux.HandleFunc("/api/logs", s.handleLogs)
	mux.HandleFunc("/api/logs/clear", s.handleClearLogs)
	mux.HandleFunc("/api/logs/export", s.handleExportLogs)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/slots/configure", s.handleConfigure)
	mux.HandleFunc("/api/slots/disable", s.handleDisable)
	mux.HandleFunc("/api/slots/trigger", s.handleTrigger)
	mux.HandleFunc("/api/slots/reset", s.handleReset)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
