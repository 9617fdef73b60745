package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/lumen-core/internal/device"
)

// sensorResponse is returned to the controller after a telemetry push
// so it can self-adjust to the committed light state and config.
type sensorResponse struct {
	Status  string        `json:"status"`
	LightOn bool          `json:"light_on"`
	Config  device.Config `json:"config"`
}

// handleStatus returns the device, creating it on first contact.
//
// GET /api/status/{deviceId}
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceId")

	result, err := s.reconciler.GetOrCreate(r.Context(), deviceID)
	if err != nil {
		s.writeReconcileError(w, deviceID, err)
		return
	}

	s.broadcastIfCreated(result)
	writeJSON(w, http.StatusOK, result.Device)
}

// handleToggle flips the light on operator request.
//
// POST /api/toggle/{deviceId}
func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceId")

	result, err := s.reconciler.Toggle(r.Context(), deviceID)
	if err != nil {
		s.writeReconcileError(w, deviceID, err)
		return
	}

	// Fanout only after the state is committed.
	s.hub.BroadcastUpdate(result)
	writeJSON(w, http.StatusOK, result.Device)
}

// handleConfig applies a partial config update.
//
// POST /api/config/{deviceId}
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceId")

	var update device.ConfigUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	result, err := s.reconciler.UpdateConfig(r.Context(), deviceID, update)
	if err != nil {
		switch {
		case errors.Is(err, device.ErrEmptyUpdate):
			writeBadRequest(w, "no config fields provided")
		case errors.Is(err, device.ErrInvalidConfig):
			writeBadRequest(w, err.Error())
		default:
			s.writeReconcileError(w, deviceID, err)
		}
		return
	}

	s.hub.BroadcastUpdate(result)
	writeJSON(w, http.StatusOK, result.Device)
}

// handleSensor ingests a telemetry push from a controller.
//
// POST /api/sensor/{deviceId}
func (s *Server) handleSensor(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceId")

	var telemetry device.Telemetry
	if err := json.NewDecoder(r.Body).Decode(&telemetry); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	result, err := s.reconciler.ApplyTelemetry(r.Context(), deviceID, telemetry)
	if err != nil {
		s.writeReconcileError(w, deviceID, err)
		return
	}

	s.hub.BroadcastUpdate(result)

	writeJSON(w, http.StatusOK, sensorResponse{
		Status:  "ok",
		LightOn: result.Device.State.LightOn,
		Config:  result.Device.Config,
	})
}

// broadcastIfCreated fans out first-contact creation so watching
// dashboards see the device appear.
func (s *Server) broadcastIfCreated(result *device.Result) {
	if result.Created {
		s.hub.BroadcastUpdate(result)
	}
}

// writeReconcileError maps reconciler errors to HTTP responses.
func (s *Server) writeReconcileError(w http.ResponseWriter, deviceID string, err error) {
	switch {
	case errors.Is(err, device.ErrInvalidDeviceID):
		writeBadRequest(w, "invalid device id")
	case errors.Is(err, device.ErrDeviceNotFound):
		writeNotFound(w, "device not found")
	default:
		s.logger.Error("reconciliation failed", "device_id", deviceID, "error", err)
		writeInternalError(w, "device update failed")
	}
}
