package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/lumen-core/internal/eventlog"
)

// History query bounds. Charts render a day by default; a week is the
// most the dashboard ever asks for.
const (
	defaultHistoryHours = 24
	maxHistoryHours     = 168
)

// handleLogs returns the device's event log, most recent first.
//
// GET /api/logs/{deviceId}?limit=&type=
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceId")

	filter := eventlog.Filter{DeviceID: deviceID}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		filter.Limit = limit
	}

	if raw := r.URL.Query().Get("type"); raw != "" {
		kind := eventlog.EventType(raw)
		if !kind.Valid() {
			writeBadRequest(w, "unknown event type: "+raw)
			return
		}
		filter.Type = kind
	}

	events, err := s.events.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("event query failed", "device_id", deviceID, "error", err)
		writeInternalError(w, "failed to query events")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": deviceID,
		"events":    events,
		"count":     len(events),
	})
}

// handleHistory returns sensor readings for charting, oldest first.
//
// GET /api/history/{deviceId}?hours=
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceId")

	hours := defaultHistoryHours
	if raw := r.URL.Query().Get("hours"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeBadRequest(w, "hours must be a positive integer")
			return
		}
		hours = parsed
	}
	if hours > maxHistoryHours {
		hours = maxHistoryHours
	}

	since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
	readings, err := s.readings.ListSince(r.Context(), deviceID, since)
	if err != nil {
		s.logger.Error("reading query failed", "device_id", deviceID, "error", err)
		writeInternalError(w, "failed to query readings")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": deviceID,
		"since":     since.Format(time.RFC3339),
		"readings":  readings,
		"count":     len(readings),
	})
}
