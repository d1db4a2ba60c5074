package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"pilldock/internal/schedule"
)

// ScheduleResponse represents one active schedule in API responses.
type ScheduleResponse struct {
	Time           string `json:"time"`
	Slot           int    `json:"slot"`
	Status         string `json:"status"`
	MedicationName string `json:"medication_name"`
	ManualTrigger  bool   `json:"manual_trigger"`
	LastUpdated    string `json:"last_updated,omitempty"`
}

// ConfigureRequest is the request body for configuring a slot.
type ConfigureRequest struct {
	Slot           int    `json:"slot"`
	Hour           int    `json:"hour"`
	Minute         int    `json:"minute"`
	MedicationName string `json:"medication_name,omitempty"`
}

// SlotRequest addresses a single slot.
type SlotRequest struct {
	Slot int `json:"slot"`
}

// handleSchedules returns the current display mapping in time order.
// GET /api/schedules
func (s *HTTPServer) handleSchedules(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	view := s.ctrl.Schedules()
	schedules := make([]ScheduleResponse, 0, len(view))
	for _, key := range schedule.SortedKeys(view) {
		slot := view[key]
		schedules = append(schedules, ScheduleResponse{
			Time:           key,
			Slot:           slot.SlotID,
			Status:         string(slot.Status),
			MedicationName: slot.MedicationName,
			ManualTrigger:  slot.ManualTrigger,
			LastUpdated:    slot.LastUpdated,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"schedules": schedules,
		"count":     len(schedules),
	})
}

// handleConfigure writes a full slot configuration.
// POST /api/slots/configure
func (s *HTTPServer) handleConfigure(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	var req ConfigureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	err := s.svc.Configure(r.Context(), req.Slot, req.Hour, req.Minute, req.MedicationName)
	s.finishCommand(w, "configure", req.Slot, err)
}

// handleDisable disables a slot, keeping its journal history.
// POST /api/slots/disable
func (s *HTTPServer) handleDisable(w http.ResponseWriter, r *http.Request) {
	s.slotCommand(w, r, "disable", s.svc.Disable)
}

// handleTrigger requests a manual dispense.
// POST /api/slots/trigger
func (s *HTTPServer) handleTrigger(w http.ResponseWriter, r *http.Request) {
	s.slotCommand(w, r, "trigger", s.svc.TriggerDispense)
}

// handleReset moves a slot back to pending after a completed cycle.
// POST /api/slots/reset
func (s *HTTPServer) handleReset(w http.ResponseWriter, r *http.Request) {
	s.slotCommand(w, r, "reset", s.svc.ResetStatus)
}

func (s *HTTPServer) slotCommand(w http.ResponseWriter, r *http.Request, name string, cmd func(ctx context.Context, slotID int) error) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	var req SlotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	err := cmd(r.Context(), req.Slot)
	s.finishCommand(w, name, req.Slot, err)
}

func (s *HTTPServer) finishCommand(w http.ResponseWriter, name string, slot int, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "slot": slot})
	case errors.Is(err, schedule.ErrSlotOutOfRange), errors.Is(err, schedule.ErrInvalidTime):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, schedule.ErrTriggerInFlight):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, schedule.ErrTriggerRateLimited):
		writeError(w, http.StatusTooManyRequests, err.Error())
	default:
		s.logger.Error().Err(err).Str("command", name).Int("slot", slot).Msg("slot command failed")
		writeError(w, http.StatusBadGateway, "remote store operation failed")
	}
}
