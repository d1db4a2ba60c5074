package api

import (
	"net/http"

	"pilldock/internal/journal"
)

// LogResponse represents one activity log entry in API responses.
type LogResponse struct {
	Timestamp string `json:"timestamp"`
	Status    string `json:"status"`
	Slot      int    `json:"slot"`
	Details   string `json:"details,omitempty"`
	Date      string `json:"date,omitempty"`
}

// handleLogs returns the journal view, most recent entry first.
// GET /api/logs
func (s *HTTPServer) handleLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	entries := s.ctrl.Logs()
	logs := make([]LogResponse, 0, len(entries))
	for _, entry := range entries {
		logs = append(logs, LogResponse{
			Timestamp: entry.Timestamp,
			Status:    string(entry.Status),
			Slot:      entry.Slot,
			Details:   entry.Details,
			Date:      entry.Date,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"logs":  logs,
		"count": len(logs),
	})
}

// handleClearLogs removes the whole journal. Irreversible.
// POST /api/logs/clear
func (s *HTTPServer) handleClearLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	if err := s.journal.Clear(r.Context()); err != nil {
		s.logger.Error().Err(err).Msg("clear journal failed")
		writeError(w, http.StatusBadGateway, "remote store operation failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// handleExportLogs downloads the journal view as an Excel workbook.
// GET /api/logs/export
func (s *HTTPServer) handleExportLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	entries := s.ctrl.Logs()
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="activity-log.xlsx"`)
	if err := journal.ExportXLSX(entries, w); err != nil {
		// Headers are already out; log and drop the connection.
		s.logger.Error().Err(err).Msg("export journal failed")
	}
}

// handleStatus reports connectivity and view sizes.
// GET /api/status
func (s *HTTPServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"connection":       string(s.ctrl.Connection()),
		"active_schedules": len(s.ctrl.Schedules()),
		"total_logs":       len(s.ctrl.Logs()),
		"slots":            s.svc.SlotCount(),
	})
}
